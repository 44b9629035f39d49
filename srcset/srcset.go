// Package srcset generates width-stepped image variants for responsive images.
package srcset

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/SirZenith/lazyimg/crop"
)

// Geometry is the target size of an image. Height 0 leaves height unconstrained.
type Geometry struct {
	Width  int
	Height int
}

// Variant is one srcset candidate.
type Variant struct {
	Width int
	URL   string
}

// Overrides carries per-call values layered on top of a RenderPolicy.
type Overrides struct {
	Source      string // base URL of source image
	SourceWidth int    // intrinsic width of source image, 0 when unknown

	Quality crop.Quality
	Format  string

	Mode             crop.Mode
	Anchor           crop.Anchor
	PreferFocalPoint bool
	FocalPoint       *crop.FocalPoint
	Crop             *crop.Coordinates

	ExtraParams string
	CacheBust   string
}

// Descriptor builds crop descriptor for one target size, filling unset values
// from policy.
func (o Overrides) Descriptor(policy *RenderPolicy, width, height int) crop.Descriptor {
	format := o.Format
	if format == "" {
		format = policy.Format()
	}

	return crop.Descriptor{
		Source:           o.Source,
		Width:            width,
		Height:           height,
		Quality:          o.Quality.Or(policy.DefaultQuality()),
		Mode:             o.Mode,
		Anchor:           o.Anchor,
		PreferFocalPoint: o.PreferFocalPoint,
		FocalPoint:       o.FocalPoint,
		Crop:             o.Crop,
		Format:           format,
		BackgroundColor:  policy.BackgroundColor(),
		ExtraParams:      o.ExtraParams,
		CacheBust:        o.CacheBust,
		DomainPrefix:     policy.DomainPrefix(),
	}
}

// ScaleHeight returns height matching `width` for given geometry ratio, rounded
// half away from zero. Integer arithmetic keeps every step exact.
func ScaleHeight(geometry Geometry, width int) int {
	if geometry.Height <= 0 || geometry.Width <= 0 {
		return 0
	}

	numerator := 2*int64(width)*int64(geometry.Height) + int64(geometry.Width)
	return int(numerator / (2 * int64(geometry.Width)))
}

const maxPreallocVariants = 64

// Generate produces variants from width step up to effective max width, both
// inclusive, in ascending order.
func Generate(geometry Geometry, builder crop.Builder, policy *RenderPolicy, overrides Overrides) ([]Variant, error) {
	if policy == nil {
		return nil, fmt.Errorf("%w: policy is nil", ErrInvalidPolicy)
	}

	if geometry.Width <= 0 || geometry.Height < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, geometry.Width, geometry.Height)
	}

	step := policy.WidthStep()
	maxWidth := policy.EffectiveMaxWidth(overrides.SourceWidth)

	variants := make([]Variant, 0, min(maxWidth/step, maxPreallocVariants))
	for width := step; width <= maxWidth; width += step {
		height := ScaleHeight(geometry, width)

		url, err := builder.BuildCropURL(overrides.Descriptor(policy, width, height))
		if err != nil {
			return nil, fmt.Errorf("failed to build crop URL for width %d: %w", width, err)
		}

		variants = append(variants, Variant{Width: width, URL: url})

		// next step would overflow
		if width > maxWidth-step {
			break
		}
	}

	return variants, nil
}

// Join formats variants as srcset attribute value. When `escape` is true, URLs
// are HTML escaped for direct use in markup.
func Join(variants []Variant, escape bool) string {
	buffer := &strings.Builder{}
	for i, variant := range variants {
		if i > 0 {
			buffer.WriteString(", ")
		}

		url := variant.URL
		if escape {
			url = html.EscapeString(url)
		}

		buffer.WriteString(url)
		buffer.WriteByte(' ')
		buffer.WriteString(strconv.Itoa(variant.Width))
		buffer.WriteByte('w')
	}
	return buffer.String()
}
