package media

import (
	"context"
	"image"
	"image/color/palette"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/SirZenith/lazyimg/database"
	"github.com/SirZenith/lazyimg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

func newTestStore(t *testing.T) *database.Store {
	store, err := database.OpenStore(filepath.Join(t.TempDir(), "media.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func writePNG(t *testing.T, filePath string, width, height int) {
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))

	file, err := os.Create(filePath)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, png.Encode(file, image.NewRGBA(image.Rect(0, 0, width, height))))
}

func writeGIF(t *testing.T, filePath string, width, height int) {
	file, err := os.Create(filePath)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, gif.Encode(file, image.NewPaletted(image.Rect(0, 0, width, height), palette.Plan9), nil))
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 40, 30)
	writePNG(t, filepath.Join(root, "sub", "b.png"), 12, 8)
	writeGIF(t, filepath.Join(root, "c.gif"), 5, 7)
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.jpg"), []byte("not an image"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0o644))

	store := newTestStore(t)
	ctx := context.Background()

	saved, failed, err := scanDirectory(ctx, store, scanOptions{
		root:      root,
		baseURL:   "/media/",
		refPrefix: "umb://media/",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, saved)
	assert.Equal(t, 1, failed)

	info, err := store.Lookup(ctx, "umb://media/sub/b.png")
	require.NoError(t, err)
	assert.Equal(t, "/media/sub/b.png", info.URL)
	assert.Equal(t, 12, info.Width)
	assert.Equal(t, 8, info.Height)
	assert.Equal(t, "png", info.Extension)

	info, err = store.Lookup(ctx, "umb://media/c.gif")
	require.NoError(t, err)
	assert.Equal(t, 5, info.Width)
	assert.Equal(t, 7, info.Height)
	assert.Equal(t, "gif", info.Extension)

	_, err = store.Lookup(ctx, "umb://media/broken.jpg")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestImportLibrary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cnt, err := importLibrary(ctx, store, media.MapLookup{
		"b": {Ref: "b", URL: "/b.png", Width: 10, Height: 10, Extension: "png"},
		"a": {Ref: "a", URL: "/a.jpg", Width: 20, Height: 10, Extension: "jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Ref)
	assert.Equal(t, "b", infos[1].Ref)
}

func TestParseFocalPoint(t *testing.T) {
	point, err := parseFocalPoint("0.25, 0.75")
	require.NoError(t, err)
	assert.Equal(t, 0.25, point.Left)
	assert.Equal(t, 0.75, point.Top)

	for _, value := range []string{"0.5", "a,b", "1.5,0", "0,0,0"} {
		_, err := parseFocalPoint(value)
		assert.Error(t, err, value)
	}
}

func TestMediaListCollation(t *testing.T) {
	list := MediaList{{Ref: "b"}, {Ref: "B"}, {Ref: "a"}, {Ref: "é"}, {Ref: "e"}}
	collate.New(language.AmericanEnglish).Sort(list)

	refs := []string{}
	for _, info := range list {
		refs = append(refs, info.Ref)
	}
	assert.Equal(t, []string{"a", "b", "B", "e", "é"}, refs)
}

func TestDetectSortLanguage(t *testing.T) {
	assert.Equal(t, language.Japanese, detectSortLanguage("ja"))
	assert.Equal(t, language.AmericanEnglish, detectSortLanguage("not a tag!"))
}
