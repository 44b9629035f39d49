// Package crop lets a Lua script act as crop URL builder.
//
// Script either defines global function `build_crop_url` or returns a function
// as its chunk result. The function receives a descriptor table and returns URL
// string, or nil plus an error message. Module `lazyimg` is available for
// requiring, its `default_url` function builds URL the default way. Module
// `urlpath` provides slash separated path helpers.
package crop

import (
	"errors"
	"fmt"
	"net/url"
	"sync"

	img_crop "github.com/SirZenith/lazyimg/crop"
	luamodule "github.com/SirZenith/lazyimg/lua_module"
	"github.com/SirZenith/lazyimg/lua_module/urlpath"
	lua "github.com/yuin/gopher-lua"
)

const BuilderFuncName = "build_crop_url"

var ErrNoBuilderFunc = errors.New("script provides no crop builder function")

func Loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), exports)

	L.Push(mod)

	return 1
}

var exports = map[string]lua.LGFunction{
	"default_url":  defaultURL,
	"query_escape": queryEscape,
}

// defaultURL builds URL for descriptor table with default query builder.
func defaultURL(L *lua.LState) int {
	desc := TableToDescriptor(L.CheckTable(1))

	result, err := img_crop.QueryBuilder{}.BuildCropURL(desc)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LString(result))
	return 1
}

func queryEscape(L *lua.LState) int {
	L.Push(lua.LString(url.QueryEscape(L.CheckString(1))))
	return 1
}

// Builder is a crop.Builder running a Lua function. Calls are serialized since
// a Lua state can't be shared between goroutines.
type Builder struct {
	mu sync.Mutex
	L  *lua.LState
	fn *lua.LFunction
}

func NewBuilder(scriptPath string) (*Builder, error) {
	L, err := luamodule.NewScriptState(scriptPath, map[string]lua.LGFunction{
		"lazyimg": Loader,
		"urlpath": urlpath.Loader,
	})
	if err != nil {
		return nil, err
	}

	if err := L.DoFile(scriptPath); err != nil {
		L.Close()
		return nil, fmt.Errorf("crop script executation error:\n%s", err)
	}

	fn, ok := L.GetGlobal(BuilderFuncName).(*lua.LFunction)
	if !ok && L.GetTop() > 0 {
		fn, ok = L.Get(-1).(*lua.LFunction)
	}
	L.SetTop(0)

	if !ok {
		L.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoBuilderFunc, scriptPath)
	}

	return &Builder{L: L, fn: fn}, nil
}

func (b *Builder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.L.Close()
}

func (b *Builder) BuildCropURL(desc img_crop.Descriptor) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	L := b.L
	defer L.SetTop(0)

	err := L.CallByParam(lua.P{
		Fn:      b.fn,
		NRet:    2,
		Protect: true,
	}, DescriptorToTable(L, desc))
	if err != nil {
		return "", fmt.Errorf("crop script error: %s", err)
	}

	result, errMsg := L.Get(-2), L.Get(-1)
	if errMsg != lua.LNil {
		return "", fmt.Errorf("crop script failed: %s", errMsg.String())
	}

	str, ok := result.(lua.LString)
	if !ok {
		return "", fmt.Errorf("crop script returns %s, expecting string", result.Type())
	}

	return string(str), nil
}

// DescriptorToTable converts descriptor into Lua table, zero values are left out.
func DescriptorToTable(L *lua.LState, desc img_crop.Descriptor) *lua.LTable {
	tbl := L.NewTable()

	setString := func(key, value string) {
		if value != "" {
			tbl.RawSetString(key, lua.LString(value))
		}
	}
	setInt := func(key string, value int) {
		if value != 0 {
			tbl.RawSetString(key, lua.LNumber(value))
		}
	}

	setString("source", desc.Source)
	setInt("width", desc.Width)
	setInt("height", desc.Height)
	setInt("quality", desc.Quality)
	setString("mode", string(desc.Mode))
	setString("anchor", string(desc.Anchor))
	tbl.RawSetString("prefer_focal_point", lua.LBool(desc.PreferFocalPoint))
	setString("format", desc.Format)
	setString("background_color", desc.BackgroundColor)
	setString("extra_params", desc.ExtraParams)
	setString("cache_bust", desc.CacheBust)
	setString("domain_prefix", desc.DomainPrefix)

	if fp := desc.FocalPoint; fp != nil {
		fpTbl := L.NewTable()
		fpTbl.RawSetString("left", lua.LNumber(fp.Left))
		fpTbl.RawSetString("top", lua.LNumber(fp.Top))
		tbl.RawSetString("focal_point", fpTbl)
	}

	if c := desc.Crop; c != nil {
		cropTbl := L.NewTable()
		cropTbl.RawSetString("x1", lua.LNumber(c.X1))
		cropTbl.RawSetString("y1", lua.LNumber(c.Y1))
		cropTbl.RawSetString("x2", lua.LNumber(c.X2))
		cropTbl.RawSetString("y2", lua.LNumber(c.Y2))
		tbl.RawSetString("crop", cropTbl)
	}

	return tbl
}

func getString(tbl *lua.LTable, key string) string {
	if value, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(value)
	}
	return ""
}

func getNumber(tbl *lua.LTable, key string) float64 {
	if value, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return float64(value)
	}
	return 0
}

// TableToDescriptor reads descriptor fields back from a Lua table, fields with
// unexpected type are ignored.
func TableToDescriptor(tbl *lua.LTable) img_crop.Descriptor {
	desc := img_crop.Descriptor{
		Source:           getString(tbl, "source"),
		Width:            int(getNumber(tbl, "width")),
		Height:           int(getNumber(tbl, "height")),
		Quality:          int(getNumber(tbl, "quality")),
		Mode:             img_crop.Mode(getString(tbl, "mode")),
		Anchor:           img_crop.Anchor(getString(tbl, "anchor")),
		PreferFocalPoint: lua.LVAsBool(tbl.RawGetString("prefer_focal_point")),
		Format:           getString(tbl, "format"),
		BackgroundColor:  getString(tbl, "background_color"),
		ExtraParams:      getString(tbl, "extra_params"),
		CacheBust:        getString(tbl, "cache_bust"),
		DomainPrefix:     getString(tbl, "domain_prefix"),
	}

	if fpTbl, ok := tbl.RawGetString("focal_point").(*lua.LTable); ok {
		desc.FocalPoint = &img_crop.FocalPoint{
			Left: getNumber(fpTbl, "left"),
			Top:  getNumber(fpTbl, "top"),
		}
	}

	if cropTbl, ok := tbl.RawGetString("crop").(*lua.LTable); ok {
		desc.Crop = &img_crop.Coordinates{
			X1: getNumber(cropTbl, "x1"),
			Y1: getNumber(cropTbl, "y1"),
			X2: getNumber(cropTbl, "x2"),
			Y2: getNumber(cropTbl, "y2"),
		}
	}

	return desc
}
