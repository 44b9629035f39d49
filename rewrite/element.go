package rewrite

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SirZenith/lazyimg/common"
	"github.com/SirZenith/lazyimg/common/html_util"
	"github.com/SirZenith/lazyimg/crop"
	"github.com/SirZenith/lazyimg/media"
	"github.com/SirZenith/lazyimg/srcset"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// imageElement is the per-element state collected before any mutation happens.
// `err` records why this element must be left untouched.
type imageElement struct {
	node *html.Node

	src      string
	ref      string
	geometry srcset.Geometry
	info     media.Info

	err error
}

func readImageElement(node *html.Node, refAttr string) *imageElement {
	el := &imageElement{node: node}

	if _, ok := html_util.GetNodeAttrVal(node, AttrDataSrc, ""); ok {
		el.err = errAlreadyLazy
		return el
	}

	src, ok := html_util.GetNodeAttrVal(node, AttrSrc, "")
	if !ok {
		el.err = fmt.Errorf("%w: no src attribute", ErrMalformedSource)
		return el
	}

	// rich text editors tend to encode entities twice
	el.src = html.UnescapeString(strings.TrimSpace(src))

	geometry, err := ReadSourceGeometry(el.src)
	if err != nil {
		el.err = err
		return el
	}
	el.geometry = geometry

	ref, _ := html_util.GetNodeAttrVal(node, refAttr, "")
	el.ref = strings.TrimSpace(ref)
	if el.ref == "" {
		el.err = fmt.Errorf("%w: image has no %s attribute", media.ErrNotFound, refAttr)
	}

	return el
}

func (el *imageElement) resolve(ctx context.Context, lookup media.Lookup) {
	if el.err != nil {
		return
	}

	if err := ctx.Err(); err != nil {
		el.err = err
		return
	}

	if lookup == nil {
		el.err = fmt.Errorf("%w: no media lookup configured", media.ErrNotFound)
		return
	}

	info, err := lookup.Lookup(ctx, el.ref)
	if err != nil {
		el.err = err
		return
	}

	el.info = info
}

func (el *imageElement) insidePicture() bool {
	parent := el.node.Parent
	return parent != nil && parent.Type == html.ElementNode && parent.DataAtom == atom.Picture
}

// format returns normalized format of underlying image, media metadata takes
// precedence over src extension.
func (el *imageElement) format() string {
	if format := el.info.Format(); format != "" {
		return format
	}
	return common.GetURLImageFormat(el.src)
}

// baseOverrides returns generation overrides shared by every URL built for
// this element.
func (el *imageElement) baseOverrides() srcset.Overrides {
	source := el.info.URL
	if source == "" {
		source, _ = crop.SplitURL(el.src)
	}

	overrides := srcset.Overrides{
		Source:           source,
		SourceWidth:      el.info.Width,
		PreferFocalPoint: true,
		FocalPoint:       el.info.FocalPoint,
	}

	if el.geometry.Height > 0 {
		overrides.Mode = crop.ModeCrop
	}

	return overrides
}

// ReadSourceGeometry extracts `width` and `height` query parameters from an
// image URL. Decimal values are rounded to nearest integer, missing height
// reads as 0.
func ReadSourceGeometry(src string) (srcset.Geometry, error) {
	geometry := srcset.Geometry{}

	_, rawQuery := crop.SplitURL(src)
	query, err := crop.ParseQuery(rawQuery)
	if err != nil {
		return geometry, fmt.Errorf("%w: %s", ErrMalformedSource, err)
	}

	widthStr, _ := query.Get("width")
	if strings.TrimSpace(widthStr) == "" {
		return geometry, fmt.Errorf("%w: no width in %q", ErrMalformedSource, src)
	}

	width, err := parseDimension(widthStr)
	if err != nil {
		return geometry, fmt.Errorf("%w: width: %s", ErrMalformedSource, err)
	} else if width <= 0 {
		return geometry, fmt.Errorf("%w: non-positive width %q", ErrMalformedSource, widthStr)
	}

	height := 0
	if heightStr, _ := query.Get("height"); strings.TrimSpace(heightStr) != "" {
		height, err = parseDimension(heightStr)
		if err != nil {
			return geometry, fmt.Errorf("%w: height: %s", ErrMalformedSource, err)
		} else if height < 0 {
			return geometry, fmt.Errorf("%w: negative height %q", ErrMalformedSource, heightStr)
		}
	}

	geometry.Width = width
	geometry.Height = height

	return geometry, nil
}

const maxDimension = math.MaxInt32

func parseDimension(value string) (int, error) {
	number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", value)
	}

	if math.IsNaN(number) || math.IsInf(number, 0) || math.Abs(number) > maxDimension {
		return 0, fmt.Errorf("dimension out of range %q", value)
	}

	return int(math.Round(number)), nil
}
