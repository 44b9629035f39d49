package database_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SirZenith/lazyimg/crop"
	"github.com/SirZenith/lazyimg/database"
	"github.com/SirZenith/lazyimg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *database.Store {
	t.Helper()

	store, err := database.OpenStore(filepath.Join(t.TempDir(), "media.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestStoreLookup(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	info := media.Info{
		Ref:        "umb://media/a",
		URL:        "/media/a.jpg",
		Width:      2000,
		Height:     1200,
		Extension:  ".JPEG",
		FocalPoint: &crop.FocalPoint{Left: 0.25, Top: 0.75},
		Crops: []crop.CropDefinition{
			{Alias: "square", Width: 400, Height: 400, Coordinates: &crop.Coordinates{X1: 0.1, Y1: 0.2, X2: 0.3, Y2: 0.4}},
		},
	}
	require.NoError(t, store.Upsert(ctx, info))

	got, err := store.Lookup(ctx, "umb://media/a")
	require.NoError(t, err)

	info.Extension = "jpg"
	assert.Equal(t, info, got)

	_, err = store.Lookup(ctx, "umb://media/none")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Upsert(ctx, media.Info{Ref: "r", URL: "/old.png", Width: 10, Height: 10}))
	require.NoError(t, store.Upsert(ctx, media.Info{Ref: "r", URL: "/new.png", Width: 20, Height: 30}))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "/new.png", list[0].URL)
	assert.Nil(t, list[0].FocalPoint)
	assert.Empty(t, list[0].Crops)

	assert.Error(t, store.Upsert(ctx, media.Info{URL: "/x.png"}))
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Upsert(ctx, media.Info{Ref: "r", URL: "/a.png"}))
	require.NoError(t, store.Delete(ctx, "r"))
	assert.ErrorIs(t, store.Delete(ctx, "r"), media.ErrNotFound)

	require.NoError(t, store.Upsert(ctx, media.Info{Ref: "r", URL: "/b.png"}))
	got, err := store.Lookup(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "/b.png", got.URL)
}

func TestStoreInChain(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Upsert(ctx, media.Info{Ref: "db", URL: "/db.png"}))

	chain := media.Chain{
		media.MapLookup{"mem": {Ref: "mem", URL: "/mem.png"}},
		store,
	}

	got, err := chain.Lookup(ctx, "db")
	require.NoError(t, err)
	assert.Equal(t, "/db.png", got.URL)

	_, err = chain.Lookup(ctx, "none")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Upsert(ctx, media.Info{Ref: "b", URL: "/b.png", Width: 3, Height: 4, Extension: "png"}))
	require.NoError(t, store.Upsert(ctx, media.Info{
		Ref: "a", URL: "/a.jpg", Width: 1, Height: 2, Extension: "jpg",
		FocalPoint: &crop.FocalPoint{Left: 0.5, Top: 0.5},
	}))

	buffer := &bytes.Buffer{}
	require.NoError(t, database.NewCsvExporter().Write(ctx, store, buffer))

	records, err := csv.NewReader(buffer).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"ref", "url", "width", "height", "extension", "focal_left", "focal_top", "crops"},
		{"a", "/a.jpg", "1", "2", "jpg", "0.5", "0.5", ""},
		{"b", "/b.png", "3", "4", "png", "", "", ""},
	}, records)
}

func TestImportCSV(t *testing.T) {
	ctx := context.Background()
	source := openTestStore(t)

	require.NoError(t, source.Upsert(ctx, media.Info{
		Ref: "a", URL: "/a.jpg", Width: 1, Height: 2, Extension: "jpg",
		FocalPoint: &crop.FocalPoint{Left: 0.25, Top: 0.75},
		Crops:      []crop.CropDefinition{{Alias: "square", Width: 100, Height: 100}},
	}))
	require.NoError(t, source.Upsert(ctx, media.Info{Ref: "b", URL: "/b.png", Width: 3, Height: 4, Extension: "png"}))

	buffer := &bytes.Buffer{}
	require.NoError(t, database.NewCsvExporter().Write(ctx, source, buffer))

	target := openTestStore(t)
	cnt, err := database.NewCsvImporter().Read(ctx, target, buffer)
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)

	expected, err := source.List(ctx)
	require.NoError(t, err)
	imported, err := target.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, imported)
}

func TestImportCSVReorderedColumns(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	cnt, err := database.NewCsvImporter().Read(ctx, store, strings.NewReader("url,Ref,extension\n/a.JPEG,a,JPEG\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	info, err := store.Lookup(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "/a.JPEG", info.URL)
	assert.Equal(t, "jpg", info.Extension)
	assert.Nil(t, info.FocalPoint)
}

func TestImportCSVRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := database.NewCsvImporter().Read(ctx, store, strings.NewReader("ref,width\na,1\nb,wide\n"))
	assert.ErrorContains(t, err, "line 3")

	_, err = store.Lookup(ctx, "a")
	assert.ErrorIs(t, err, media.ErrNotFound)

	_, err = database.NewCsvImporter().Read(ctx, store, strings.NewReader("ref,size\na,1\n"))
	assert.ErrorContains(t, err, "invalid field name size")
}
