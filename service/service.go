// Package service is the high level entry point for templates: it resolves an
// image from content, media store or plain URL, and produces srcset values,
// single crop URLs and responsive markup for it.
package service

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/SirZenith/lazyimg/crop"
	"github.com/SirZenith/lazyimg/media"
	"github.com/SirZenith/lazyimg/rewrite"
	"github.com/SirZenith/lazyimg/srcset"
)

var ErrUnknownCrop = errors.New("unknown crop alias")

// AspectRatio describes target shape of a srcset without fixing its size.
type AspectRatio struct {
	Width  int
	Height int
}

type Service struct {
	lookup  media.Lookup
	builder crop.Builder
	render  *srcset.RenderPolicy
}

func New(lookup media.Lookup, builder crop.Builder, render *srcset.RenderPolicy) *Service {
	return &Service{
		lookup:  lookup,
		builder: builder,
		render:  render,
	}
}

func (s *Service) RenderPolicy() *srcset.RenderPolicy {
	return s.render
}

func (o options) overrides(img resolvedImage) srcset.Overrides {
	return srcset.Overrides{
		Source:           img.value.Src,
		SourceWidth:      img.sourceWidth,
		Quality:          o.quality,
		Format:           o.format,
		Mode:             o.mode,
		Anchor:           o.anchor,
		PreferFocalPoint: true,
		FocalPoint:       img.value.FocalPoint,
		ExtraParams:      o.furtherOptions,
		CacheBust:        o.cacheBust,
	}
}

func (s *Service) generate(geometry srcset.Geometry, overrides srcset.Overrides, o options) (string, error) {
	variants, err := srcset.Generate(geometry, s.builder, s.render, overrides)
	if err != nil {
		return "", err
	}
	return srcset.Join(variants, o.encode(false)), nil
}

// SrcSet returns srcset for image cropped to width x height around its focal
// point. Crop mode defaults to crop.
func (s *Service) SrcSet(ctx context.Context, source ImageSource, width, height int, opts ...Option) (string, error) {
	img, err := source.resolve(ctx, s.lookup)
	if err != nil {
		return "", err
	}

	return s.srcSetForImage(img, width, height, collectOptions(opts))
}

func (s *Service) srcSetForImage(img resolvedImage, width, height int, o options) (string, error) {
	overrides := o.overrides(img)
	if overrides.Mode == "" {
		overrides.Mode = crop.ModeCrop
	}

	return s.generate(srcset.Geometry{Width: width, Height: height}, overrides, o)
}

// SrcSetForRatio returns srcset whose every variant has given aspect ratio.
func (s *Service) SrcSetForRatio(ctx context.Context, source ImageSource, ratio AspectRatio, opts ...Option) (string, error) {
	if ratio.Width <= 0 || ratio.Height <= 0 {
		return "", fmt.Errorf("%w: aspect ratio %d:%d", srcset.ErrInvalidGeometry, ratio.Width, ratio.Height)
	}

	return s.SrcSet(ctx, source, ratio.Width, ratio.Height, opts...)
}

// SrcSetForCrop returns srcset for a saved crop of image. When editor never
// saved coordinates for that crop, image is cropped around focal point at the
// size configured for the crop.
func (s *Service) SrcSetForCrop(ctx context.Context, source ImageSource, cropAlias string, opts ...Option) (string, error) {
	img, err := source.resolve(ctx, s.lookup)
	if err != nil {
		return "", err
	}

	definition, ok := img.value.GetCrop(cropAlias)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCrop, cropAlias)
	}

	o := collectOptions(opts)
	if definition.Coordinates == nil {
		return s.srcSetForImage(img, definition.Width, definition.Height, o)
	}

	overrides := o.overrides(img)
	overrides.PreferFocalPoint = false
	overrides.Crop = definition.Coordinates
	if overrides.Mode == "" {
		overrides.Mode = crop.ModeCrop
	}

	geometry := srcset.Geometry{Width: definition.Width, Height: definition.Height}
	return s.generate(geometry, overrides, o)
}

// CropURL returns one image URL. Size comes from WithSize, or from selected
// crop when WithUseCropDimensions is set. Result is HTML escaped unless
// WithHTMLEncode(false) is given.
func (s *Service) CropURL(ctx context.Context, source ImageSource, opts ...Option) (string, error) {
	img, err := source.resolve(ctx, s.lookup)
	if err != nil {
		return "", err
	}

	o := collectOptions(opts)
	overrides := o.overrides(img)
	overrides.PreferFocalPoint = o.preferFocalPoint
	width, height := o.width, o.height

	if o.cropAlias != "" {
		definition, ok := img.value.GetCrop(o.cropAlias)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownCrop, o.cropAlias)
		}

		overrides.Crop = definition.Coordinates
		if o.useCropDimensions || (width == 0 && height == 0) {
			width, height = definition.Width, definition.Height
		}
	}

	if overrides.Mode == "" && height > 0 && (overrides.Crop != nil || overrides.FocalPoint != nil) {
		overrides.Mode = crop.ModeCrop
	}

	url, err := s.builder.BuildCropURL(overrides.Descriptor(s.render, width, height))
	if err != nil {
		return "", err
	}

	if o.encode(true) {
		url = html.EscapeString(url)
	}

	return url, nil
}

// ConvertImgToResponsive rewrites every <img> in markup into lazy loading
// responsive form.
func (s *Service) ConvertImgToResponsive(ctx context.Context, markup string, policy rewrite.Policy) string {
	return rewrite.New(s.lookup, s.builder, s.render, policy).Rewrite(ctx, markup)
}

// ConvertPropertyToResponsive rewrites rich text stored in a content property.
func (s *Service) ConvertPropertyToResponsive(ctx context.Context, content Content, alias string, policy rewrite.Policy) (string, error) {
	if content == nil {
		return "", fmt.Errorf("no content given")
	}

	value, ok := content.Property(alias)
	if !ok || value == nil {
		return "", fmt.Errorf("content has no property %q", alias)
	}

	var markup string
	switch v := value.(type) {
	case string:
		markup = v
	case fmt.Stringer:
		markup = v.String()
	default:
		return "", fmt.Errorf("property %q holds %T, expecting markup", alias, value)
	}

	return s.ConvertImgToResponsive(ctx, markup, policy), nil
}
