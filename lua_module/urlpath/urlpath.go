// Package urlpath exposes slash separated path helpers to Lua scripts.
package urlpath

import (
	"path"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

func Loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), exports)

	L.Push(mod)

	return 1
}

var exports = map[string]lua.LGFunction{
	"join":      join,
	"split":     split,
	"split_ext": splitExt,
	"dirname":   dirname,
	"basename":  basename,
	"ext":       ext,
	"with_ext":  withExt,
	"split_url": splitURL,
}

func join(L *lua.LState) int {
	cnt := L.GetTop()
	parts := []string{}

	for i := 1; i <= cnt; i++ {
		parts = append(parts, L.CheckString(i))
	}

	result := path.Join(parts...)
	L.Push(lua.LString(result))

	return 1
}

func split(L *lua.LState) int {
	target := L.CheckString(1)
	dirname, basename := path.Split(target)
	L.Push(lua.LString(dirname))
	L.Push(lua.LString(basename))
	return 2
}

func splitExt(L *lua.LState) int {
	target := L.CheckString(1)
	ext := path.Ext(target)
	stem := target[:len(target)-len(ext)]
	L.Push(lua.LString(stem))
	L.Push(lua.LString(ext))
	return 2
}

func dirname(L *lua.LState) int {
	L.Push(lua.LString(path.Dir(L.CheckString(1))))
	return 1
}

func basename(L *lua.LState) int {
	L.Push(lua.LString(path.Base(L.CheckString(1))))
	return 1
}

func ext(L *lua.LState) int {
	L.Push(lua.LString(path.Ext(L.CheckString(1))))
	return 1
}

// withExt replaces extension of path part of a URL, query string is kept.
func withExt(L *lua.LState) int {
	target := L.CheckString(1)
	newExt := L.CheckString(2)
	if newExt != "" && !strings.HasPrefix(newExt, ".") {
		newExt = "." + newExt
	}

	pathPart, query, hasQuery := strings.Cut(target, "?")
	result := strings.TrimSuffix(pathPart, path.Ext(pathPart)) + newExt
	if hasQuery {
		result += "?" + query
	}

	L.Push(lua.LString(result))
	return 1
}

// splitURL returns path part and raw query of a URL, query is returned without
// leading `?`.
func splitURL(L *lua.LState) int {
	pathPart, query, _ := strings.Cut(L.CheckString(1), "?")
	L.Push(lua.LString(pathPart))
	L.Push(lua.LString(query))
	return 2
}
