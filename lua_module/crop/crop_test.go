package crop_test

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	img_crop "github.com/SirZenith/lazyimg/crop"
	lua_crop "github.com/SirZenith/lazyimg/lua_module/crop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

var testDesc = img_crop.Descriptor{
	Source:           "/media/a.jpg",
	Width:            320,
	Height:           192,
	Quality:          90,
	Mode:             img_crop.ModeCrop,
	PreferFocalPoint: true,
	FocalPoint:       &img_crop.FocalPoint{Left: 0.5, Top: 0.25},
	Format:           "webp",
}

func TestGlobalBuilderFunc(t *testing.T) {
	path := writeScript(t, t.TempDir(), "crop.lua", `
		function build_crop_url(desc)
			return string.format("https://cdn.example.com/%dx%d/q%d%s", desc.width, desc.height, desc.quality, desc.source)
		end
	`)

	builder, err := lua_crop.NewBuilder(path)
	require.NoError(t, err)
	defer builder.Close()

	result, err := builder.BuildCropURL(testDesc)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/320x192/q90/media/a.jpg", result)
}

func TestReturnedBuilderFuncAndRequire(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "helper.lua", `
		return { suffix = "&from=lua" }
	`)
	path := writeScript(t, dir, "crop.lua", `
		local lazyimg = require "lazyimg"
		local helper = require "helper"

		return function(desc)
			local url, err = lazyimg.default_url(desc)
			if not url then
				return nil, err
			end
			return url .. helper.suffix
		end
	`)

	builder, err := lua_crop.NewBuilder(path)
	require.NoError(t, err)
	defer builder.Close()

	expected, err := img_crop.QueryBuilder{}.BuildCropURL(testDesc)
	require.NoError(t, err)

	result, err := builder.BuildCropURL(testDesc)
	require.NoError(t, err)
	assert.Equal(t, expected+"&from=lua", result)

	_, err = builder.BuildCropURL(img_crop.Descriptor{Width: 10})
	assert.ErrorContains(t, err, img_crop.ErrUnknownSource.Error())
}

func TestScriptCanUseURLPath(t *testing.T) {
	path := writeScript(t, t.TempDir(), "crop.lua", `
		local urlpath = require "urlpath"

		function build_crop_url(desc)
			local source = urlpath.with_ext(desc.source, desc.format)
			return urlpath.join("/resized", tostring(desc.width), source)
		end
	`)

	builder, err := lua_crop.NewBuilder(path)
	require.NoError(t, err)
	defer builder.Close()

	result, err := builder.BuildCropURL(testDesc)
	require.NoError(t, err)
	assert.Equal(t, "/resized/320/media/a.webp", result)
}

func TestBuilderIsSerialized(t *testing.T) {
	path := writeScript(t, t.TempDir(), "crop.lua", `
		function build_crop_url(desc)
			return desc.source .. "?w=" .. desc.width
		end
	`)

	builder, err := lua_crop.NewBuilder(path)
	require.NoError(t, err)
	defer builder.Close()

	wg := sync.WaitGroup{}
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(width int) {
			defer wg.Done()

			result, err := builder.BuildCropURL(img_crop.Descriptor{Source: "/a.png", Width: width})
			assert.NoError(t, err)
			assert.Equal(t, "/a.png?w="+strconv.Itoa(width), result)
		}(i * 100)
	}
	wg.Wait()
}

func TestDescriptorTable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	desc := testDesc
	desc.Crop = &img_crop.Coordinates{X1: 0.1, Y1: 0.2, X2: 0.3, Y2: 0.4}
	desc.ExtraParams = "&filter=grey"

	tbl := lua_crop.DescriptorToTable(L, desc)
	assert.Equal(t, desc, lua_crop.TableToDescriptor(tbl))
}

func TestBuilderErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := lua_crop.NewBuilder(filepath.Join(dir, "missing.lua"))
	assert.Error(t, err)

	_, err = lua_crop.NewBuilder(writeScript(t, dir, "empty.lua", `local x = 1`))
	assert.ErrorIs(t, err, lua_crop.ErrNoBuilderFunc)

	_, err = lua_crop.NewBuilder(writeScript(t, dir, "broken.lua", `function (`))
	assert.Error(t, err)

	builder, err := lua_crop.NewBuilder(writeScript(t, dir, "bad.lua", `
		function build_crop_url(desc)
			if desc.format == "webp" then
				return nil, "webp unsupported"
			elseif desc.format == "png" then
				error("boom")
			end
			return 42
		end
	`))
	require.NoError(t, err)
	defer builder.Close()

	_, err = builder.BuildCropURL(img_crop.Descriptor{Format: "webp"})
	assert.ErrorContains(t, err, "webp unsupported")

	_, err = builder.BuildCropURL(img_crop.Descriptor{Format: "png"})
	assert.ErrorContains(t, err, "boom")

	_, err = builder.BuildCropURL(img_crop.Descriptor{Format: "jpg"})
	assert.ErrorContains(t, err, "expecting string")
}
