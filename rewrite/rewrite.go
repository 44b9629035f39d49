// Package rewrite converts <img> elements in HTML fragments into lazy loading
// responsive markup.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SirZenith/lazyimg/common"
	"github.com/SirZenith/lazyimg/common/html_util"
	"github.com/SirZenith/lazyimg/crop"
	"github.com/SirZenith/lazyimg/media"
	"github.com/SirZenith/lazyimg/srcset"
	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMalformedSource = errors.New("malformed image source")
	ErrParseFailure    = errors.New("failed to parse HTML fragment")

	errAlreadyLazy = errors.New("image is already lazy loaded")
)

const byteOrderMark = "\ufeff"

const (
	DefaultReferenceAttr = "data-udi"
	DefaultLqipQuality   = 30
	LazyLoadClass        = "lazyload"
)

const (
	AttrSrc        = "src"
	AttrSrcset     = "srcset"
	AttrDataSrc    = "data-src"
	AttrDataSrcset = "data-srcset"
	AttrDataSizes  = "data-sizes"
	AttrType       = "type"
	AttrStyle      = "style"
)

// Policy controls how image elements are rewritten.
type Policy struct {
	GenerateLqip         bool
	RemoveStyleAttribute bool
	RemoveIDAttribute    bool // removes content reference attribute
	RoundWidthHeight     bool
	RenderPicture        bool
	PictureSources       []string // extra <source> formats, in output order

	ReferenceAttr string // attribute holding content reference, data-udi by default
	LqipQuality   int
	LookupJobs    int // concurrent media lookups, <= 1 means sequential
}

func (p Policy) referenceAttr() string {
	return common.GetStrOr(p.ReferenceAttr, DefaultReferenceAttr)
}

func (p Policy) lqipQuality() int {
	return common.GetIntOr(p.LqipQuality, DefaultLqipQuality)
}

// Rewriter holds collaborators and policies used for rewriting. It keeps no
// state between calls and is safe for concurrent use as long as its lookup and
// builder are.
type Rewriter struct {
	lookup  media.Lookup
	builder crop.Builder
	render  *srcset.RenderPolicy
	policy  Policy
}

func New(lookup media.Lookup, builder crop.Builder, render *srcset.RenderPolicy, policy Policy) *Rewriter {
	return &Rewriter{
		lookup:  lookup,
		builder: builder,
		render:  render,
		policy:  policy,
	}
}

// Rewrite is a one-shot shorthand of New(...).Rewrite(ctx, source).
func Rewrite(ctx context.Context, source string, lookup media.Lookup, builder crop.Builder, render *srcset.RenderPolicy, policy Policy) string {
	return New(lookup, builder, render, policy).Rewrite(ctx, source)
}

// Rewrite returns rewritten fragment. Input starting with a doctype or an
// <html> tag is handled as a whole document and rendered back with its
// doctype, head and body. When no image gets modified, or fragment
// can't be handled at all, `source` is returned as is.
func (r *Rewriter) Rewrite(ctx context.Context, source string) string {
	output, modified, err := r.rewrite(ctx, source)
	if err != nil {
		log.Debugf("fragment left unchanged: %s", err)
		return source
	}

	if !modified {
		return source
	}

	return output
}

func (r *Rewriter) rewrite(ctx context.Context, source string) (string, bool, error) {
	isDocument := html_util.IsDocument(source)

	// BOM before doctype would be parsed as body text
	bom := ""
	if isDocument && strings.HasPrefix(source, byteOrderMark) {
		bom = byteOrderMark
	}

	var container *html.Node
	var err error
	if isDocument {
		container, err = html_util.ParseDocument(source[len(bom):])
	} else {
		container, err = html_util.ParseFragment(source)
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %s", ErrParseFailure, err)
	}

	nodes := html_util.FindAllMatchingNodes(&html_util.NodeMatchArgs{
		Type: map[html.NodeType]bool{html.ElementNode: true},
		Tag:  map[atom.Atom]bool{atom.Img: true},
		Root: container,
	})
	if len(nodes) == 0 {
		return "", false, nil
	}

	refAttr := r.policy.referenceAttr()
	elements := make([]*imageElement, len(nodes))
	for i, node := range nodes {
		elements[i] = readImageElement(node, refAttr)
	}

	r.resolveAll(ctx, elements)

	modified := false
	for _, el := range elements {
		if el.err != nil {
			log.Debug("image skipped", "src", el.src, "ref", el.ref, "reason", el.err)
			continue
		}

		m, err := r.plan(el)
		if err != nil {
			log.Debug("image skipped", "src", el.src, "ref", el.ref, "reason", err)
			continue
		}

		r.apply(el, m)
		modified = true
	}

	if !modified {
		return "", false, nil
	}

	var output string
	if isDocument {
		output, err = html_util.RenderDocument(container)
		output = bom + output
	} else {
		output, err = html_util.RenderChildren(container)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to render rewritten fragment: %s", err)
	}

	return output, true, nil
}

// resolveAll looks up media of every element. Lookups may run concurrently but
// each result is stored on its own element, so document order is untouched.
func (r *Rewriter) resolveAll(ctx context.Context, elements []*imageElement) {
	if r.policy.LookupJobs <= 1 {
		for _, el := range elements {
			el.resolve(ctx, r.lookup)
		}
		return
	}

	group := &errgroup.Group{}
	group.SetLimit(r.policy.LookupJobs)

	for _, el := range elements {
		if el.err != nil {
			continue
		}

		el := el
		group.Go(func() error {
			el.resolve(ctx, r.lookup)
			return nil
		})
	}

	group.Wait()
}

type sourceSpec struct {
	srcset   string
	mimeType string
}

// mutation holds every value an element needs, computed before touching the tree.
type mutation struct {
	dataSrc string
	srcset  string
	lqip    string
	picture bool         // wrap element with a new <picture>
	sources []sourceSpec // in insertion order, each one is inserted as first child
}

func (r *Rewriter) buildURL(overrides srcset.Overrides, geometry srcset.Geometry) (string, error) {
	return r.builder.BuildCropURL(overrides.Descriptor(r.render, geometry.Width, geometry.Height))
}

func (r *Rewriter) plan(el *imageElement) (mutation, error) {
	m := mutation{dataSrc: el.src}
	base := el.baseOverrides()

	if r.policy.RoundWidthHeight {
		overrides := base
		overrides.Mode = crop.ModePad

		url, err := r.buildURL(overrides, el.geometry)
		if err != nil {
			return m, fmt.Errorf("failed to build rounded URL: %w", err)
		}
		m.dataSrc = url
	}

	if r.policy.GenerateLqip {
		overrides := base
		overrides.Quality = crop.Quality(r.policy.lqipQuality())
		overrides.Format = common.ImageFormatAuto

		url, err := r.buildURL(overrides, el.geometry)
		if err != nil {
			return m, fmt.Errorf("failed to build placeholder URL: %w", err)
		}
		m.lqip = url
	}

	// author's <picture> is left as is, element gets plain srcset
	m.picture = r.policy.RenderPicture && !el.insidePicture()

	if !m.picture {
		variants, err := srcset.Generate(el.geometry, r.builder, r.render, base)
		if err != nil {
			return m, err
		}
		m.srcset = srcset.Join(variants, false)

		return m, nil
	}

	formats := []string{}
	for _, format := range r.policy.PictureSources {
		if format = common.NormalizeImageFormat(format); format != "" {
			formats = append(formats, format)
		}
	}

	defaultFormat := el.format()
	if !containsFormat(formats, defaultFormat) {
		entry, err := r.planSource(el, base, defaultFormat)
		if err != nil {
			return m, err
		}
		m.sources = append(m.sources, entry)
	}

	for i := len(formats) - 1; i >= 0; i-- {
		entry, err := r.planSource(el, base, formats[i])
		if err != nil {
			return m, err
		}
		m.sources = append(m.sources, entry)
	}

	return m, nil
}

func (r *Rewriter) planSource(el *imageElement, base srcset.Overrides, format string) (sourceSpec, error) {
	overrides := base
	overrides.Format = format

	variants, err := srcset.Generate(el.geometry, r.builder, r.render, overrides)
	if err != nil {
		return sourceSpec{}, fmt.Errorf("failed to generate %s source: %w", format, err)
	}

	return sourceSpec{
		srcset:   srcset.Join(variants, false),
		mimeType: common.GetImageMimeType(format),
	}, nil
}

func containsFormat(formats []string, target string) bool {
	for _, format := range formats {
		if format == target {
			return true
		}
	}
	return false
}

func (r *Rewriter) apply(el *imageElement, m mutation) {
	img := el.node

	var picture *html.Node
	if m.picture {
		picture = html_util.NewElement(atom.Picture)
		html_util.WrapNode(img, picture)
	}

	html_util.RenameNodeAttr(img, AttrSrc, AttrDataSrc)
	html_util.SetNodeAttr(img, AttrDataSrc, m.dataSrc)

	if picture != nil {
		for _, entry := range m.sources {
			attrs := []html.Attribute{
				{Key: AttrDataSrcset, Val: entry.srcset},
				{Key: AttrType, Val: entry.mimeType},
			}
			if m.lqip != "" {
				attrs = append(attrs, html.Attribute{Key: AttrSrcset, Val: m.lqip})
			}

			html_util.PrependChild(picture, html_util.NewElement(atom.Source, attrs...))
		}
	} else {
		html_util.SetNodeAttr(img, AttrDataSrcset, m.srcset)
	}

	html_util.SetNodeAttr(img, AttrDataSizes, "auto")

	if m.lqip != "" {
		html_util.SetNodeAttr(img, AttrSrc, m.lqip)
	}

	html_util.AddClass(img, LazyLoadClass)

	if r.policy.RemoveStyleAttribute {
		html_util.RemoveNodeAttr(img, AttrStyle)
	}

	if r.policy.RemoveIDAttribute {
		html_util.RemoveNodeAttr(img, r.policy.referenceAttr())
	}
}
