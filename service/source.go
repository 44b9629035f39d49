package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SirZenith/lazyimg/crop"
	"github.com/SirZenith/lazyimg/media"
)

// DefaultPropertyAlias is the property holding image of a media item.
const DefaultPropertyAlias = "umbracoFile"

var ErrNoImage = errors.New("no image found")

// Content is a published content item exposing its property values.
type Content interface {
	Property(alias string) (any, bool)
}

// ContentMap is a Content backed by a plain map.
type ContentMap map[string]any

func (c ContentMap) Property(alias string) (any, bool) {
	value, ok := c[alias]
	return value, ok
}

// resolvedImage is what every image source boils down to.
type resolvedImage struct {
	value       crop.ImageCropperValue
	sourceWidth int // 0 when unknown
}

// ImageSource identifies the image a facade call works on.
type ImageSource interface {
	resolve(ctx context.Context, lookup media.Lookup) (resolvedImage, error)
}

// ByAlias takes image from a property of content item.
type ByAlias struct {
	Content Content
	Alias   string // DefaultPropertyAlias when empty
}

// ByReference takes image from media store.
type ByReference struct {
	Ref string
}

// ByURL uses a plain image URL, no focal point or crop is known for it.
type ByURL struct {
	URL string
}

// ByValue uses an image cropper value directly.
type ByValue struct {
	Value crop.ImageCropperValue
}

func (s ByAlias) resolve(ctx context.Context, lookup media.Lookup) (resolvedImage, error) {
	alias := s.Alias
	if alias == "" {
		alias = DefaultPropertyAlias
	}

	if s.Content == nil {
		return resolvedImage{}, fmt.Errorf("%w: no content given", ErrNoImage)
	}

	value, ok := s.Content.Property(alias)
	if !ok || value == nil {
		return resolvedImage{}, fmt.Errorf("%w: content has no property %q", ErrNoImage, alias)
	}

	switch v := value.(type) {
	case crop.ImageCropperValue:
		return ByValue{Value: v}.resolve(ctx, lookup)
	case *crop.ImageCropperValue:
		return ByValue{Value: *v}.resolve(ctx, lookup)
	case media.Info:
		return resolvedFromInfo(v), nil
	case *media.Info:
		return resolvedFromInfo(*v), nil
	case string:
		if isImageURL(v) {
			return ByURL{URL: v}.resolve(ctx, lookup)
		}
		return ByReference{Ref: v}.resolve(ctx, lookup)
	default:
		return resolvedImage{}, fmt.Errorf("%w: property %q holds unsupported value %T", ErrNoImage, alias, value)
	}
}

func isImageURL(value string) bool {
	return strings.HasPrefix(value, "/") ||
		strings.HasPrefix(value, "http://") ||
		strings.HasPrefix(value, "https://")
}

func resolvedFromInfo(info media.Info) resolvedImage {
	return resolvedImage{
		value:       info.CropperValue(),
		sourceWidth: info.Width,
	}
}

func (s ByReference) resolve(ctx context.Context, lookup media.Lookup) (resolvedImage, error) {
	if lookup == nil {
		return resolvedImage{}, fmt.Errorf("%w: no media lookup configured", media.ErrNotFound)
	}

	info, err := lookup.Lookup(ctx, strings.TrimSpace(s.Ref))
	if err != nil {
		return resolvedImage{}, err
	}

	return resolvedFromInfo(info), nil
}

func (s ByURL) resolve(_ context.Context, _ media.Lookup) (resolvedImage, error) {
	if s.URL == "" {
		return resolvedImage{}, fmt.Errorf("%w: empty URL", ErrNoImage)
	}
	return resolvedImage{value: crop.ImageCropperValue{Src: s.URL}}, nil
}

func (s ByValue) resolve(_ context.Context, _ media.Lookup) (resolvedImage, error) {
	if s.Value.Src == "" {
		return resolvedImage{}, fmt.Errorf("%w: cropper value has no source", ErrNoImage)
	}
	return resolvedImage{value: s.Value}, nil
}
