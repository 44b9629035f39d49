// Package crop describes requests made to an image cropping backend and
// provides a default backend that encodes them as URL query parameters.
package crop

import "fmt"

// Mode describes how a source image is fitted into target dimensions.
type Mode string

const (
	ModeCrop    Mode = "crop"
	ModeMax     Mode = "max"
	ModeStretch Mode = "stretch"
	ModePad     Mode = "pad"
	ModeBoxPad  Mode = "boxpad"
	ModeMin     Mode = "min"
)

// Anchor decides which part of image is kept when cropping.
type Anchor string

const (
	AnchorCenter      Anchor = "center"
	AnchorTop         Anchor = "top"
	AnchorRight       Anchor = "right"
	AnchorBottom      Anchor = "bottom"
	AnchorLeft        Anchor = "left"
	AnchorTopLeft     Anchor = "topleft"
	AnchorTopRight    Anchor = "topright"
	AnchorBottomLeft  Anchor = "bottomleft"
	AnchorBottomRight Anchor = "bottomright"
)

var allModes = []Mode{ModeCrop, ModeMax, ModeStretch, ModePad, ModeBoxPad, ModeMin}

var allAnchors = []Anchor{
	AnchorCenter, AnchorTop, AnchorRight, AnchorBottom, AnchorLeft,
	AnchorTopLeft, AnchorTopRight, AnchorBottomLeft, AnchorBottomRight,
}

// ParseMode converts user input to Mode, empty string is accepted as "no mode".
func ParseMode(value string) (Mode, error) {
	if value == "" {
		return "", nil
	}
	for _, mode := range allModes {
		if string(mode) == value {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unknown crop mode %q", value)
}

// ParseAnchor converts user input to Anchor, empty string is accepted as "no anchor".
func ParseAnchor(value string) (Anchor, error) {
	if value == "" {
		return "", nil
	}
	for _, anchor := range allAnchors {
		if string(anchor) == value {
			return anchor, nil
		}
	}
	return "", fmt.Errorf("unknown crop anchor %q", value)
}

// Quality is an optional encoding quality. QualityDefault means no explicit
// value was given and policy default should be used.
type Quality int

const QualityDefault Quality = 0

// Or returns explicit quality value, or `fallback` when quality is unset.
func (q Quality) Or(fallback int) int {
	if q == QualityDefault {
		return fallback
	}
	return int(q)
}

func (q Quality) IsSet() bool {
	return q != QualityDefault
}

// FocalPoint is a point of interest in relative image coordinates, both values
// are in range [0, 1].
type FocalPoint struct {
	Left float64 `json:"left" yaml:"left"`
	Top  float64 `json:"top" yaml:"top"`
}

// Coordinates of a saved crop, given as relative insets from each edge.
type Coordinates struct {
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
	X2 float64 `json:"x2" yaml:"x2"`
	Y2 float64 `json:"y2" yaml:"y2"`
}

// Descriptor is everything a cropping backend needs to produce one image URL.
// Zero values mean "not specified".
type Descriptor struct {
	Source string // base URL of source image, may already carry a query string

	Width   int
	Height  int
	Quality int

	Mode             Mode
	Anchor           Anchor
	PreferFocalPoint bool
	FocalPoint       *FocalPoint
	Crop             *Coordinates

	Format          string
	BackgroundColor string
	ExtraParams     string // raw query fragment appended after generated parameters, e.g. "&filter=grey"
	CacheBust       string
	DomainPrefix    string
}
