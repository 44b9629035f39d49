package rewrite_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/SirZenith/lazyimg/crop"
	"github.com/SirZenith/lazyimg/media"
	"github.com/SirZenith/lazyimg/rewrite"
	"github.com/SirZenith/lazyimg/srcset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLibrary = media.MapLookup{
	"umb://media/a": {Ref: "umb://media/a", URL: "/media/a.jpg", Width: 2000, Height: 1200, Extension: "jpg"},
	"umb://media/b": {Ref: "umb://media/b", URL: "/media/b.png", Width: 300, Height: 300, Extension: "png"},
	"umb://media/c": {Ref: "umb://media/c", URL: "/media/c.jpg", Width: 1000, Height: 500, Extension: "jpg", FocalPoint: &crop.FocalPoint{Left: 0.3, Top: 0.6}},
}

func testRenderPolicy(t *testing.T) *srcset.RenderPolicy {
	t.Helper()
	policy, err := srcset.NewRenderPolicy(srcset.PolicyOptions{
		WidthStep:      160,
		MaxWidth:       320,
		DefaultQuality: 90,
		Format:         "auto",
	})
	require.NoError(t, err)
	return policy
}

func defaultPolicy() rewrite.Policy {
	return rewrite.Policy{
		GenerateLqip:         true,
		RemoveStyleAttribute: true,
	}
}

func newRewriter(t *testing.T, policy rewrite.Policy) *rewrite.Rewriter {
	return rewrite.New(testLibrary, crop.QueryBuilder{}, testRenderPolicy(t), policy)
}

func parseOutput(t *testing.T, output string) *goquery.Document {
	t.Helper()
	document, err := goquery.NewDocumentFromReader(strings.NewReader(output))
	require.NoError(t, err)
	return document
}

func TestRewriteExactOutput(t *testing.T) {
	source := `<p><img src="/media/a.jpg?width=500&amp;height=300" data-udi="umb://media/a" style="width: 500px;" alt="A"></p>`

	output := newRewriter(t, defaultPolicy()).Rewrite(context.Background(), source)

	expected := `<p><img data-src="/media/a.jpg?width=500&amp;height=300" data-udi="umb://media/a" alt="A" ` +
		`data-srcset="/media/a.jpg?width=160&amp;height=96&amp;rmode=crop&amp;quality=90&amp;format=auto 160w, ` +
		`/media/a.jpg?width=320&amp;height=192&amp;rmode=crop&amp;quality=90&amp;format=auto 320w" ` +
		`data-sizes="auto" src="/media/a.jpg?width=500&amp;height=300&amp;rmode=crop&amp;quality=30&amp;format=auto" ` +
		`class="lazyload"/></p>`
	assert.Equal(t, expected, output)
}

func TestRewriteDeterministic(t *testing.T) {
	source := `<div><img src="/media/a.jpg?width=500&height=300" data-udi="umb://media/a"><img src="/media/b.png?width=200" data-udi="umb://media/b"></div>`

	first := newRewriter(t, defaultPolicy()).Rewrite(context.Background(), source)
	second := newRewriter(t, defaultPolicy()).Rewrite(context.Background(), source)
	assert.Equal(t, first, second)
	assert.NotEqual(t, source, first)
}

func TestNoImageIsNoop(t *testing.T) {
	sources := []string{
		"",
		"plain text",
		`<P CLASS=x>Hello<br>world</P>`,
		`<div><picture></picture><!-- img --></div>`,
	}

	for _, source := range sources {
		assert.Equal(t, source, newRewriter(t, defaultPolicy()).Rewrite(context.Background(), source))
	}
}

func TestUntransformableImagesAreNoop(t *testing.T) {
	sources := []string{
		`<IMG SRC="/media/a.jpg?width=500" data-udi="umb://media/missing">`,
		`<img src="/media/a.jpg" data-udi="umb://media/a">`,
		`<img src="/media/a.jpg?width=0&height=100" data-udi="umb://media/a">`,
		`<img src="/media/a.jpg?width=0.4" data-udi="umb://media/a">`,
		`<img src="/media/a.jpg?width=500">`,
		`<img data-udi="umb://media/a">`,
	}

	for _, source := range sources {
		assert.Equal(t, source, newRewriter(t, defaultPolicy()).Rewrite(context.Background(), source))
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	source := `<p><img src="/media/a.jpg?width=500&height=300" data-udi="umb://media/a" class="left"></p>`

	policies := []rewrite.Policy{
		defaultPolicy(),
		{GenerateLqip: false},
		{GenerateLqip: true, RenderPicture: true, PictureSources: []string{"webp"}},
		{GenerateLqip: true, RemoveIDAttribute: true, RoundWidthHeight: true},
	}

	for _, policy := range policies {
		rewriter := newRewriter(t, policy)

		once := rewriter.Rewrite(context.Background(), source)
		require.NotEqual(t, source, once)

		twice := rewriter.Rewrite(context.Background(), once)
		assert.Equal(t, once, twice, "%+v", policy)
	}
}

func TestMalformedWidthOnlySkipsThatImage(t *testing.T) {
	source := `<div><img src="/media/a.jpg?width=abc&height=300" data-udi="umb://media/a" style="float: left" class="x">` +
		`<img src="/media/b.png?width=200&height=200" data-udi="umb://media/b" style="float: left"></div>`

	output := newRewriter(t, defaultPolicy()).Rewrite(context.Background(), source)
	document := parseOutput(t, output)

	images := document.Find("img")
	require.Equal(t, 2, images.Length())

	bad := images.Eq(0)
	require.Len(t, bad.Nodes[0].Attr, 4)
	assert.Equal(t, "/media/a.jpg?width=abc&height=300", bad.AttrOr("src", ""))
	assert.Equal(t, "umb://media/a", bad.AttrOr("data-udi", ""))
	assert.Equal(t, "float: left", bad.AttrOr("style", ""))
	assert.Equal(t, "x", bad.AttrOr("class", ""))

	good := images.Eq(1)
	assert.Equal(t, "/media/b.png?width=200&height=200", good.AttrOr("data-src", ""))
	assert.True(t, good.HasClass("lazyload"))
	_, hasStyle := good.Attr("style")
	assert.False(t, hasStyle)
}

func TestUnresolvedReferenceOnlySkipsThatImage(t *testing.T) {
	source := `<img src="/media/x.jpg?width=200" data-udi="umb://media/missing"><img src="/media/b.png?width=200" data-udi="umb://media/b">`

	output := newRewriter(t, defaultPolicy()).Rewrite(context.Background(), source)
	images := parseOutput(t, output).Find("img")

	assert.Equal(t, "/media/x.jpg?width=200", images.Eq(0).AttrOr("src", ""))
	assert.False(t, images.Eq(0).HasClass("lazyload"))
	assert.True(t, images.Eq(1).HasClass("lazyload"))
}

func TestLazyAttributes(t *testing.T) {
	source := `<img src="/media/b.png?width=200&amp;amp;height=200" data-udi="umb://media/b" class="left  wide" style="x">`

	output := newRewriter(t, rewrite.Policy{RemoveIDAttribute: true}).Rewrite(context.Background(), source)
	img := parseOutput(t, output).Find("img")

	assert.Equal(t, "/media/b.png?width=200&height=200", img.AttrOr("data-src", ""))
	assert.Equal(t, "auto", img.AttrOr("data-sizes", ""))
	assert.Equal(t, "left wide lazyload", img.AttrOr("class", ""))
	assert.Equal(t, "x", img.AttrOr("style", ""))

	_, hasSrc := img.Attr("src")
	assert.False(t, hasSrc, "src must be renamed when no placeholder is generated")

	_, hasRef := img.Attr("data-udi")
	assert.False(t, hasRef)

	// source image is only 300px wide, so 320 is out of range
	assert.Equal(t,
		"/media/b.png?width=160&height=160&rmode=crop&quality=90&format=auto 160w",
		img.AttrOr("data-srcset", ""),
	)
}

func TestMissingHeightLeavesHeightUnconstrained(t *testing.T) {
	source := `<img src="/media/a.jpg?width=500" data-udi="umb://media/a">`

	output := newRewriter(t, rewrite.Policy{}).Rewrite(context.Background(), source)
	img := parseOutput(t, output).Find("img")

	assert.Equal(t,
		"/media/a.jpg?width=160&quality=90&format=auto 160w, /media/a.jpg?width=320&quality=90&format=auto 320w",
		img.AttrOr("data-srcset", ""),
	)
}

func TestFocalPointIsUsed(t *testing.T) {
	source := `<img src="/media/c.jpg?width=400&height=200" data-udi="umb://media/c">`

	output := newRewriter(t, rewrite.Policy{GenerateLqip: true}).Rewrite(context.Background(), source)
	img := parseOutput(t, output).Find("img")

	assert.Equal(t, "/media/c.jpg?rxy=0.3,0.6&width=400&height=200&rmode=crop&quality=30&format=auto", img.AttrOr("src", ""))
}

func TestRoundWidthHeight(t *testing.T) {
	source := `<img src="/media/a.jpg?width=500.4&height=299.6" data-udi="umb://media/a">`

	output := newRewriter(t, rewrite.Policy{RoundWidthHeight: true}).Rewrite(context.Background(), source)
	img := parseOutput(t, output).Find("img")

	assert.Equal(t, "/media/a.jpg?width=500&height=300&rmode=pad&quality=90&format=auto", img.AttrOr("data-src", ""))
}

func TestPictureSources(t *testing.T) {
	source := `<p><img src="/media/a.jpg?width=500&height=300" data-udi="umb://media/a" alt="A"></p>`

	policy := rewrite.Policy{
		GenerateLqip:   true,
		RenderPicture:  true,
		PictureSources: []string{"webp"},
	}
	output := newRewriter(t, policy).Rewrite(context.Background(), source)
	document := parseOutput(t, output)

	picture := document.Find("p > picture")
	require.Equal(t, 1, picture.Length())
	assert.Empty(t, picture.Nodes[0].Attr)

	children := picture.Children()
	require.Equal(t, 3, children.Length())

	webp := children.Eq(0)
	jpeg := children.Eq(1)
	img := children.Eq(2)

	assert.True(t, webp.Is("source"))
	assert.Equal(t, "image/webp", webp.AttrOr("type", ""))
	assert.Contains(t, webp.AttrOr("data-srcset", ""), "format=webp 160w")

	assert.True(t, jpeg.Is("source"))
	assert.Equal(t, "image/jpeg", jpeg.AttrOr("type", ""))
	assert.Contains(t, jpeg.AttrOr("data-srcset", ""), "format=jpg 160w")

	lqip := img.AttrOr("src", "")
	assert.NotEmpty(t, lqip)
	assert.Equal(t, lqip, webp.AttrOr("srcset", ""))
	assert.Equal(t, lqip, jpeg.AttrOr("srcset", ""))

	assert.True(t, img.Is("img"))
	assert.True(t, img.HasClass("lazyload"))
	assert.Equal(t, "A", img.AttrOr("alt", ""))
	_, hasSrcset := img.Attr("data-srcset")
	assert.False(t, hasSrcset)
}

func TestPictureSourcesDeclarationOrder(t *testing.T) {
	source := `<img src="/media/b.png?width=200&height=200" data-udi="umb://media/b">`

	policy := rewrite.Policy{
		RenderPicture:  true,
		PictureSources: []string{"avif", ".WEBP", "png"},
	}
	output := newRewriter(t, policy).Rewrite(context.Background(), source)
	sources := parseOutput(t, output).Find("picture > source")

	types := []string{}
	sources.Each(func(_ int, s *goquery.Selection) {
		types = append(types, s.AttrOr("type", ""))
		_, hasLqip := s.Attr("srcset")
		assert.False(t, hasLqip)
	})

	// png is declared explicitly, so no extra default source is emitted
	assert.Equal(t, []string{"image/jpeg", "image/webp", "image/png"}, types)
}

func TestBuilderFailureLeavesImageUntouched(t *testing.T) {
	source := `<img src="/media/a.jpg?width=500" data-udi="umb://media/a">`

	failing := crop.BuilderFunc(func(desc crop.Descriptor) (string, error) {
		if desc.Format == "webp" {
			return "", errors.New("webp not supported")
		}
		return crop.QueryBuilder{}.BuildCropURL(desc)
	})

	policy := rewrite.Policy{GenerateLqip: true, RenderPicture: true, PictureSources: []string{"webp"}}
	output := rewrite.New(testLibrary, failing, testRenderPolicy(t), policy).Rewrite(context.Background(), source)
	assert.Equal(t, source, output)
}

func TestCustomReferenceAttribute(t *testing.T) {
	source := `<img src="/media/a.jpg?width=500" data-media="umb://media/a">`

	policy := rewrite.Policy{ReferenceAttr: "data-media", RemoveIDAttribute: true}
	output := newRewriter(t, policy).Rewrite(context.Background(), source)
	img := parseOutput(t, output).Find("img")

	assert.True(t, img.HasClass("lazyload"))
	_, hasRef := img.Attr("data-media")
	assert.False(t, hasRef)
}

func TestConcurrentLookupKeepsDocumentOrder(t *testing.T) {
	refs := []string{"umb://media/a", "umb://media/b", "umb://media/c", "umb://media/a", "umb://media/b"}

	builder := &strings.Builder{}
	builder.WriteString("<div>")
	for _, ref := range refs {
		builder.WriteString(`<img src="/x.jpg?width=300&height=200" data-udi="` + ref + `">`)
	}
	builder.WriteString("</div>")
	source := builder.String()

	delays := map[string]time.Duration{
		"umb://media/a": 30 * time.Millisecond,
		"umb://media/b": 15 * time.Millisecond,
		"umb://media/c": 0,
	}
	slowLookup := media.LookupFunc(func(ctx context.Context, ref string) (media.Info, error) {
		time.Sleep(delays[ref])
		return testLibrary.Lookup(ctx, ref)
	})

	render := testRenderPolicy(t)
	sequential := rewrite.New(slowLookup, crop.QueryBuilder{}, render, rewrite.Policy{GenerateLqip: true}).Rewrite(context.Background(), source)
	concurrent := rewrite.New(slowLookup, crop.QueryBuilder{}, render, rewrite.Policy{GenerateLqip: true, LookupJobs: 4}).Rewrite(context.Background(), source)

	assert.Equal(t, sequential, concurrent)

	images := parseOutput(t, concurrent).Find("img")
	require.Equal(t, len(refs), images.Length())
	images.Each(func(i int, s *goquery.Selection) {
		info := testLibrary[refs[i]]
		assert.True(t, strings.HasPrefix(s.AttrOr("src", ""), info.URL), "image %d", i)
	})
}

func TestCancelledContextLeavesFragment(t *testing.T) {
	source := `<img src="/media/a.jpg?width=500" data-udi="umb://media/a">`

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, source, newRewriter(t, defaultPolicy()).Rewrite(ctx, source))
}

func TestReadSourceGeometry(t *testing.T) {
	cases := []struct {
		src    string
		width  int
		height int
		err    bool
	}{
		{"/a.jpg?width=500&height=300", 500, 300, false},
		{"/a.jpg?WIDTH=500.5&Height=300.49", 501, 300, false},
		{"/a.jpg?width=500", 500, 0, false},
		{"/a.jpg?width=500&height=", 500, 0, false},
		{"/a.jpg?width=abc", 0, 0, true},
		{"/a.jpg?width=500&height=abc", 0, 0, true},
		{"/a.jpg?width=500&height=-1", 0, 0, true},
		{"/a.jpg?width=-5", 0, 0, true},
		{"/a.jpg?width=NaN", 0, 0, true},
		{"/a.jpg?width=%zz", 0, 0, true},
		{"/a.jpg", 0, 0, true},
	}

	for _, c := range cases {
		geometry, err := rewrite.ReadSourceGeometry(c.src)
		if c.err {
			assert.ErrorIs(t, err, rewrite.ErrMalformedSource, c.src)
			continue
		}

		require.NoError(t, err, c.src)
		assert.Equal(t, srcset.Geometry{Width: c.width, Height: c.height}, geometry, c.src)
	}
}

func TestRewriteDocument(t *testing.T) {
	source := `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>T</title></head>` +
		`<body class="page"><p><img src="/media/a.jpg?width=500&height=300" data-udi="umb://media/a"></p></body></html>`

	for _, prefix := range []string{"", "\ufeff", "\n  "} {
		output := newRewriter(t, defaultPolicy()).Rewrite(context.Background(), prefix+source)

		if prefix == "\ufeff" {
			assert.True(t, strings.HasPrefix(output, "\ufeff<!DOCTYPE html>"), output)
		} else {
			assert.True(t, strings.HasPrefix(output, "<!DOCTYPE html>"), output)
		}

		document := parseOutput(t, strings.TrimPrefix(output, "\ufeff"))
		assert.Equal(t, "en", document.Find("html").AttrOr("lang", ""))
		assert.Equal(t, "T", document.Find("head > title").Text())
		assert.Equal(t, "page", document.Find("body").AttrOr("class", ""))
		assert.True(t, document.Find("body > p > img").HasClass("lazyload"))
	}
}

func TestDocumentWithoutImageIsNoop(t *testing.T) {
	source := "<!doctype html>\n<html><head></head><body><p>text</p></body></html>"
	assert.Equal(t, source, newRewriter(t, defaultPolicy()).Rewrite(context.Background(), source))
}

func TestImageInsideExistingPicture(t *testing.T) {
	source := `<picture><source srcset="/x.webp" type="image/webp">` +
		`<img src="/media/a.jpg?width=500&height=300" data-udi="umb://media/a"></picture>`

	policy := rewrite.Policy{
		GenerateLqip:   true,
		RenderPicture:  true,
		PictureSources: []string{"webp"},
	}
	output := newRewriter(t, policy).Rewrite(context.Background(), source)
	document := parseOutput(t, output)

	require.Equal(t, 1, document.Find("picture").Length())

	sources := document.Find("picture > source")
	require.Equal(t, 1, sources.Length())
	assert.Equal(t, "/x.webp", sources.AttrOr("srcset", ""))

	img := document.Find("picture > img")
	assert.True(t, img.HasClass("lazyload"))
	assert.Contains(t, img.AttrOr("data-srcset", ""), "160w")
}
