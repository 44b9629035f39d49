// Package media resolves content references embedded in markup to stored
// image metadata.
package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/SirZenith/lazyimg/common"
	"github.com/SirZenith/lazyimg/crop"
)

var ErrNotFound = errors.New("media not found")

// Info is metadata of one stored image.
type Info struct {
	Ref        string                `json:"ref" yaml:"ref"`
	URL        string                `json:"url" yaml:"url"`
	Width      int                   `json:"width" yaml:"width"`
	Height     int                   `json:"height" yaml:"height"`
	Extension  string                `json:"extension" yaml:"extension"`
	FocalPoint *crop.FocalPoint      `json:"focal_point,omitempty" yaml:"focal_point,omitempty"`
	Crops      []crop.CropDefinition `json:"crops,omitempty" yaml:"crops,omitempty"`
}

// Format returns normalized image format of this media, derived from URL when
// extension is not recorded.
func (info Info) Format() string {
	if info.Extension != "" {
		return common.NormalizeImageFormat(info.Extension)
	}
	return common.GetURLImageFormat(info.URL)
}

// CropperValue converts media info into image cropper value.
func (info Info) CropperValue() crop.ImageCropperValue {
	return crop.ImageCropperValue{
		Src:        info.URL,
		FocalPoint: info.FocalPoint,
		Crops:      info.Crops,
	}
}

// Lookup resolves a content reference. Implementations return ErrNotFound
// (possibly wrapped) when reference is unknown.
type Lookup interface {
	Lookup(ctx context.Context, ref string) (Info, error)
}

// LookupFunc adapts a plain function to Lookup.
type LookupFunc func(ctx context.Context, ref string) (Info, error)

func (f LookupFunc) Lookup(ctx context.Context, ref string) (Info, error) {
	return f(ctx, ref)
}

// MapLookup is an in-memory Lookup keyed by reference.
type MapLookup map[string]Info

func (m MapLookup) Lookup(_ context.Context, ref string) (Info, error) {
	info, ok := m[ref]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return info, nil
}

// Chain tries each lookup in order. A miss moves on to next lookup, any other
// error stops the chain.
type Chain []Lookup

func (c Chain) Lookup(ctx context.Context, ref string) (Info, error) {
	for _, lookup := range c {
		info, err := lookup.Lookup(ctx, ref)
		if err == nil {
			return info, nil
		} else if !errors.Is(err, ErrNotFound) {
			return Info{}, err
		}
	}

	return Info{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}
