package policy

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metaContent(t *testing.T, markup string) string {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	sel := doc.Find(`head meta[http-equiv="Content-Security-Policy"]`)
	require.Equal(t, 1, sel.Length(), "expected exactly one policy tag inside head")
	content, ok := sel.Attr("content")
	require.True(t, ok)
	return content
}

func TestInjectIntoExistingHead(t *testing.T) {
	in := `<!DOCTYPE html><html><head><title>App</title></head><body>hi</body></html>`
	out := Inject(in, nil)

	assert.Contains(t, out, "<title>App</title>")
	assert.Contains(t, out, "<body>hi</body>")

	headOpen := strings.Index(out, "<head>")
	tagPos := strings.Index(out, "Content-Security-Policy")
	titlePos := strings.Index(out, "<title>")
	assert.Less(t, headOpen, tagPos)
	assert.Less(t, tagPos, titlePos, "policy tag goes immediately after the opening head tag")

	metaContent(t, out)
}

func TestInjectHeadCaseInsensitive(t *testing.T) {
	for _, in := range []string{
		`<html><HEAD></HEAD><body></body></html>`,
		`<html><Head></Head><body></body></html>`,
	} {
		out := Inject(in, nil)
		assert.Contains(t, metaContent(t, out), "default-src 'none'")
	}
}

func TestInjectHeadWithAttributes(t *testing.T) {
	in := `<html><head lang="en" data-x="1"><meta charset="utf-8"></head><body></body></html>`
	out := Inject(in, nil)

	assert.Contains(t, out, `<head lang="en" data-x="1">`)
	assert.Contains(t, out, `<meta charset="utf-8">`)
	metaContent(t, out)
}

func TestInjectAfterDoctypeWithoutHead(t *testing.T) {
	in := `<!DOCTYPE html><p>content</p>`
	out := Inject(in, nil)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html><head>"))
	assert.Contains(t, out, "<p>content</p>")
	metaContent(t, out)
}

func TestInjectAfterHTMLWithoutHead(t *testing.T) {
	in := `<html lang="en"><body><p>content</p></body></html>`
	out := Inject(in, nil)

	htmlPos := strings.Index(out, `<html lang="en">`)
	tagPos := strings.Index(out, "Content-Security-Policy")
	bodyPos := strings.Index(out, "<body>")
	require.GreaterOrEqual(t, htmlPos, 0)
	assert.Less(t, htmlPos, tagPos)
	assert.Less(t, tagPos, bodyPos)
	metaContent(t, out)
}

func TestInjectWrapsBareContent(t *testing.T) {
	in := `<p>just a fragment</p>`
	out := Inject(in, nil)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<body><p>just a fragment</p></body>")
	metaContent(t, out)
}

func TestInjectPreservesOriginalBytes(t *testing.T) {
	in := `<html><head></head><body onload="x()">&amp; <!-- note --></body></html>`
	out := Inject(in, nil)

	// Only insertion: removing the injected tag restores the input.
	tag := metaTag(Build(nil))
	assert.Equal(t, in, strings.Replace(out, tag, "", 1))
}

func TestDefaultPolicyDirectives(t *testing.T) {
	p := Build(nil)

	assert.Contains(t, p, "default-src 'none'")
	assert.Contains(t, p, "script-src 'unsafe-inline'")
	assert.Contains(t, p, "style-src 'unsafe-inline'")
	assert.Contains(t, p, "img-src 'self' data: blob:")
	assert.Contains(t, p, "font-src 'self' data: blob:")
	assert.Contains(t, p, "connect-src 'none'")
	assert.Contains(t, p, "frame-ancestors 'none'")
	assert.Contains(t, p, "form-action 'none'")
}

func TestConnectSrcOverrides(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		want string
	}{
		{"default denies egress", nil, "connect-src 'none'"},
		{"external allowed wildcard", &Config{AllowExternalConnections: true}, "connect-src *"},
		{"empty host list behaves as wildcard", &Config{AllowExternalConnections: true, AllowedHosts: []string{}}, "connect-src *"},
		{
			"host list space-joined",
			&Config{AllowExternalConnections: true, AllowedHosts: []string{"https://a", "https://b"}},
			"connect-src https://a https://b",
		},
		{"flag off ignores hosts", &Config{AllowedHosts: []string{"https://a"}}, "connect-src 'none'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, Build(tt.cfg), tt.want)
		})
	}
}

func TestCustomPolicyReplacesGenerated(t *testing.T) {
	custom := "default-src 'self'"
	assert.Equal(t, custom, Build(&Config{Policy: custom}))

	out := Inject("<html><head></head></html>", &Config{Policy: custom})
	assert.Equal(t, custom, metaContent(t, out))
}

func TestStripActiveContent(t *testing.T) {
	in := `<p onclick="evil()">ok</p><script>evil()</script>`
	out := StripActiveContent(in)

	assert.Contains(t, out, "ok")
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")
}
