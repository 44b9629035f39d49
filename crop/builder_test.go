package crop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuilderFull(t *testing.T) {
	url, err := QueryBuilder{}.BuildCropURL(Descriptor{
		Source:          "/media/a.jpg",
		Width:           320,
		Height:          107,
		Quality:         90,
		Mode:            ModeCrop,
		FocalPoint:      &FocalPoint{Left: 0.5, Top: 0.25},
		Format:          "webp",
		BackgroundColor: "fff",
		ExtraParams:     "&filter=grey",
		CacheBust:       "123",
		DomainPrefix:    "https://cdn.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"https://cdn.example.com/media/a.jpg?rxy=0.5,0.25&width=320&height=107&rmode=crop&quality=90&format=webp&bgcolor=fff&filter=grey&v=123",
		url,
	)
}

func TestQueryBuilderReplacesExistingParams(t *testing.T) {
	desc := Descriptor{
		Source: "/media/a.jpg?width=500.5&height=300&mode=max",
		Width:  160,
		Height: 96,
	}

	url, err := QueryBuilder{}.BuildCropURL(desc)
	require.NoError(t, err)
	assert.Equal(t, "/media/a.jpg?width=160&height=96&mode=max", url)

	again, err := QueryBuilder{}.BuildCropURL(Descriptor{Source: url, Width: 160, Height: 96})
	require.NoError(t, err)
	assert.Equal(t, url, again)
}

func TestQueryBuilderOmitsZeroHeight(t *testing.T) {
	url, err := QueryBuilder{}.BuildCropURL(Descriptor{Source: "/a.png", Width: 160})
	require.NoError(t, err)
	assert.Equal(t, "/a.png?width=160", url)
}

func TestQueryBuilderCropCoordinates(t *testing.T) {
	desc := Descriptor{
		Source:     "/a.jpg",
		Width:      100,
		Height:     100,
		Anchor:     AnchorTop,
		Crop:       &Coordinates{X1: 0.1, Y1: 0.2, X2: 0.3, Y2: 0},
		FocalPoint: &FocalPoint{Left: 0.5, Top: 0.5},
	}

	url, err := QueryBuilder{}.BuildCropURL(desc)
	require.NoError(t, err)
	assert.Equal(t, "/a.jpg?cc=0.1,0.2,0.3,0&width=100&height=100&ranchor=top", url)

	desc.PreferFocalPoint = true
	url, err = QueryBuilder{}.BuildCropURL(desc)
	require.NoError(t, err)
	assert.Equal(t, "/a.jpg?rxy=0.5,0.5&width=100&height=100", url)
}

func TestQueryBuilderRequiresSource(t *testing.T) {
	_, err := QueryBuilder{}.BuildCropURL(Descriptor{Width: 100})
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestQualityOr(t *testing.T) {
	assert.Equal(t, 75, QualityDefault.Or(75))
	assert.Equal(t, 90, Quality(90).Or(75))
	assert.False(t, QualityDefault.IsSet())
	assert.True(t, Quality(90).IsSet())
}

func TestParseModeAndAnchor(t *testing.T) {
	mode, err := ParseMode("pad")
	require.NoError(t, err)
	assert.Equal(t, ModePad, mode)

	_, err = ParseMode("squash")
	assert.Error(t, err)

	anchor, err := ParseAnchor("")
	require.NoError(t, err)
	assert.Equal(t, Anchor(""), anchor)

	_, err = ParseAnchor("middle")
	assert.Error(t, err)
}

func TestGetCrop(t *testing.T) {
	value := ImageCropperValue{
		Src:   "/a.jpg",
		Crops: []CropDefinition{{Alias: "Hero", Width: 1600, Height: 900}},
	}

	crop, ok := value.GetCrop("hero")
	assert.True(t, ok)
	assert.Equal(t, 1600, crop.Width)

	_, ok = value.GetCrop("thumb")
	assert.False(t, ok)
}
