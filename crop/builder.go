package crop

import (
	"errors"
	"strconv"
	"strings"
)

var ErrUnknownSource = errors.New("crop descriptor has no source image")

// Builder turns a crop descriptor into a final image URL. Implementations must
// be deterministic: identical descriptors produce identical URLs.
type Builder interface {
	BuildCropURL(desc Descriptor) (string, error)
}

// BuilderFunc adapts a plain function to Builder.
type BuilderFunc func(desc Descriptor) (string, error)

func (f BuilderFunc) BuildCropURL(desc Descriptor) (string, error) {
	return f(desc)
}

// Query keys emitted by QueryBuilder.
const (
	KeyCropCoordinates = "cc"
	KeyFocalPoint      = "rxy"
	KeyWidth           = "width"
	KeyHeight          = "height"
	KeyMode            = "rmode"
	KeyAnchor          = "ranchor"
	KeyQuality         = "quality"
	KeyFormat          = "format"
	KeyBackgroundColor = "bgcolor"
	KeyCacheBust       = "v"
)

// QueryBuilder is the default Builder. It writes descriptor fields as query
// parameters on top of whatever query the source URL already has.
type QueryBuilder struct{}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatFloatList(values ...float64) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = formatFloat(value)
	}
	return strings.Join(parts, ",")
}

func (QueryBuilder) BuildCropURL(desc Descriptor) (string, error) {
	if desc.Source == "" {
		return "", ErrUnknownSource
	}

	path, rawQuery := SplitURL(desc.Source)
	query := ParseQueryLenient(rawQuery)

	useFocalPoint := desc.FocalPoint != nil && (desc.Crop == nil || desc.PreferFocalPoint)
	switch {
	case useFocalPoint:
		query.Del(KeyCropCoordinates)
		query.Set(KeyFocalPoint, formatFloatList(desc.FocalPoint.Left, desc.FocalPoint.Top))
	case desc.Crop != nil:
		query.Del(KeyFocalPoint)
		crop := desc.Crop
		query.Set(KeyCropCoordinates, formatFloatList(crop.X1, crop.Y1, crop.X2, crop.Y2))
	}

	if desc.Width > 0 {
		query.Set(KeyWidth, strconv.Itoa(desc.Width))
	}
	if desc.Height > 0 {
		query.Set(KeyHeight, strconv.Itoa(desc.Height))
	}

	if desc.Mode != "" {
		query.Set(KeyMode, string(desc.Mode))
	}
	if desc.Anchor != "" && !useFocalPoint {
		query.Set(KeyAnchor, string(desc.Anchor))
	}

	if desc.Quality > 0 {
		query.Set(KeyQuality, strconv.Itoa(desc.Quality))
	}
	if desc.Format != "" {
		query.Set(KeyFormat, desc.Format)
	}
	if desc.BackgroundColor != "" {
		query.Set(KeyBackgroundColor, desc.BackgroundColor)
	}

	if desc.ExtraParams != "" {
		query.Merge(ParseQueryLenient(desc.ExtraParams))
	}

	if desc.CacheBust != "" {
		query.Set(KeyCacheBust, desc.CacheBust)
	}

	result := desc.DomainPrefix + path
	if query.Len() > 0 {
		result += "?" + query.Encode()
	}

	return result, nil
}
