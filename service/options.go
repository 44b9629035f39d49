package service

import "github.com/SirZenith/lazyimg/crop"

type options struct {
	quality        crop.Quality
	format         string
	mode           crop.Mode
	anchor         crop.Anchor
	furtherOptions string
	cacheBust      string
	htmlEncode     *bool

	width             int
	height            int
	cropAlias         string
	preferFocalPoint  bool
	useCropDimensions bool
}

// Option tweaks a single facade call.
type Option func(*options)

func collectOptions(opts []Option) options {
	result := options{}
	for _, opt := range opts {
		opt(&result)
	}
	return result
}

func (o options) encode(fallback bool) bool {
	if o.htmlEncode == nil {
		return fallback
	}
	return *o.htmlEncode
}

// WithQuality overrides policy default quality.
func WithQuality(quality int) Option {
	return func(o *options) { o.quality = crop.Quality(quality) }
}

// WithFormat overrides policy output format.
func WithFormat(format string) Option {
	return func(o *options) { o.format = format }
}

func WithMode(mode crop.Mode) Option {
	return func(o *options) { o.mode = mode }
}

func WithAnchor(anchor crop.Anchor) Option {
	return func(o *options) { o.anchor = anchor }
}

// WithFurtherOptions appends raw query fragment to every generated URL,
// e.g. "&filter=greyscale".
func WithFurtherOptions(furtherOptions string) Option {
	return func(o *options) { o.furtherOptions = furtherOptions }
}

func WithCacheBust(value string) Option {
	return func(o *options) { o.cacheBust = value }
}

// WithHTMLEncode decides whether result is HTML escaped.
func WithHTMLEncode(encode bool) Option {
	return func(o *options) { o.htmlEncode = &encode }
}

// WithSize sets target size for CropURL.
func WithSize(width, height int) Option {
	return func(o *options) {
		o.width = width
		o.height = height
	}
}

// WithCropAlias selects a saved crop for CropURL.
func WithCropAlias(alias string) Option {
	return func(o *options) { o.cropAlias = alias }
}

// WithPreferFocalPoint makes CropURL crop around focal point even when a saved
// crop is selected.
func WithPreferFocalPoint(prefer bool) Option {
	return func(o *options) { o.preferFocalPoint = prefer }
}

// WithUseCropDimensions makes CropURL take target size from selected crop.
func WithUseCropDimensions(use bool) Option {
	return func(o *options) { o.useCropDimensions = use }
}
