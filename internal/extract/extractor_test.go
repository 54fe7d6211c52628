package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/event-harvest/internal/entity"
)

const festivalHTML = `<html><body>
<h1 id="festival_head">  Seoul  Lantern
	Festival </h1>
<div class="schedule"><span>Date</span><span>2024.11.01 ~ 2024.11.17</span></div>
<div class="preview">Lights on the stream 더보기</div>
<a href="tel:02-123-4567"><p class="info_content">02-123-4567</p></a>
<img alt="행사 포스터" src="/images/poster.jpg?w=300">
<div class="visula_bg" style="background:url(https://x/y.jpg);color:red"></div>
<div class="plain" style="color:blue"></div>
</body></html>`

func page(html string) *entity.Page {
	return &entity.Page{URL: "https://example.com/detail/1", HTML: html}
}

// TestNormalizeText verifies newline and tab are deleted rather than replaced with a space.
func TestNormalizeText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"Title\n\tSubtitle", "TitleSubtitle"},
		{"  padded  ", "padded"},
		{"\n\tA\nB\tC \n", "ABC"},
		{"keep  inner  spaces", "keep  inner  spaces"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeText(tc.in), "input %q", tc.in)
	}
}

// TestParseStyleURL verifies the background:url(...) value is returned and absence is reported.
func TestParseStyleURL(t *testing.T) {
	t.Parallel()

	v, ok := ParseStyleURL("background:url(https://x/y.jpg);color:red", "background:url(", ")")
	require.True(t, ok)
	assert.Equal(t, "https://x/y.jpg", v)

	_, ok = ParseStyleURL("color:red;background-color:#fff", "background:url(", ")")
	assert.False(t, ok)

	v, ok = ParseStyleURL("background:url(unterminated", "background:url(", ")")
	require.True(t, ok)
	assert.Equal(t, "unterminated", v)
}

// TestExtract_AllRuleKinds covers text, attr and styleAttr rules together.
func TestExtract_AllRuleKinds(t *testing.T) {
	t.Parallel()

	sm := entity.SelectorMap{
		{Field: "name", Text: "#festival_head", StripSpaces: true},
		{Field: "date", Text: "div.schedule > span:nth-child(2)"},
		{Field: "content1", Text: "div.preview", Remove: []string{"더보기"}},
		{Field: "contact", Text: `a[href^="tel:"] > p.info_content`},
		{Field: "image", Attr: "img[alt*='포스터']"},
		{Field: "background", StyleAttr: "div.visula_bg"},
	}

	rec, err := Extract(page(festivalHTML), sm)
	require.NoError(t, err)

	want := map[string]string{
		"name":       "SeoulLanternFestival",
		"date":       "2024.11.01 ~ 2024.11.17",
		"content1":   "Lights on the stream ",
		"contact":    "02-123-4567",
		"image":      "/images/poster.jpg?w=300",
		"background": "https://x/y.jpg",
	}
	for field, w := range want {
		got, ok := rec.Get(field)
		require.True(t, ok, "field %s should be present", field)
		assert.Equal(t, w, got, "field %s", field)
	}
	assert.Equal(t, entity.DetailURL("https://example.com/detail/1"), rec.DetailURL)
}

// TestExtract_NullSafety verifies each missing target resolves to null without failing the record.
func TestExtract_NullSafety(t *testing.T) {
	t.Parallel()

	sm := entity.SelectorMap{
		{Field: "name", Text: "#festival_head"},
		{Field: "missing_text", Text: "#does-not-exist"},
		{Field: "missing_attr", Attr: "img.none"},
		{Field: "attr_not_set", Attr: "img", Attribute: "data-src"},
		{Field: "no_background", StyleAttr: "div.plain"},
		{Field: "no_style", StyleAttr: "h1"},
		{Field: "bad_selector", Text: "div[[["},
		{Field: "no_rule"},
	}

	rec, err := Extract(page(festivalHTML), sm)
	require.NoError(t, err)

	_, ok := rec.Get("name")
	assert.True(t, ok)
	for _, field := range []string{"missing_text", "missing_attr", "attr_not_set", "no_background", "no_style", "bad_selector", "no_rule"} {
		v, present := rec.Fields[field]
		assert.True(t, present, "field %s should be recorded", field)
		assert.Nil(t, v, "field %s should be null", field)
	}
}

// TestExtract_DoesNotMutatePage verifies the page snapshot is left untouched.
func TestExtract_DoesNotMutatePage(t *testing.T) {
	t.Parallel()

	p := page(festivalHTML)
	before := *p
	_, err := Extract(p, entity.SelectorMap{{Field: "name", Text: "#festival_head"}})
	require.NoError(t, err)
	assert.Equal(t, before, *p)
}

// TestExtract_FirstMatchWins verifies only the first matching element is read.
func TestExtract_FirstMatchWins(t *testing.T) {
	t.Parallel()

	html := `<ul><li class="v">first</li><li class="v">second</li></ul>`
	rec, err := Extract(page(html), entity.SelectorMap{{Field: "v", Text: "li.v"}})
	require.NoError(t, err)
	got, _ := rec.Get("v")
	assert.Equal(t, "first", got)
}

// TestExtract_AttrRawValue verifies attribute values are not resolved against the page URL.
func TestExtract_AttrRawValue(t *testing.T) {
	t.Parallel()

	html := `<img id="p" src="  ../relative/img.png ">`
	rec, err := Extract(page(html), entity.SelectorMap{{Field: "image", Attr: "#p"}})
	require.NoError(t, err)
	got, _ := rec.Get("image")
	assert.Equal(t, "  ../relative/img.png ", got)
}

// TestExtract_CustomStylePattern verifies a non-default prefix/suffix pair.
func TestExtract_CustomStylePattern(t *testing.T) {
	t.Parallel()

	html := `<div id="hero" data-bg="background-image: url('https://cdn/hero.png')"></div>`
	rule := entity.Rule{
		Field:     "background",
		StyleAttr: "#hero",
		Attribute: "data-bg",
		Pattern:   &entity.StylePattern{Prefix: "url('", Suffix: "')"},
	}
	rec, err := Extract(page(html), entity.SelectorMap{rule})
	require.NoError(t, err)
	got, ok := rec.Get("background")
	require.True(t, ok)
	assert.Equal(t, "https://cdn/hero.png", got)
}
