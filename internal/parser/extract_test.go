package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBasicFields(t *testing.T) {
	page := `<html><head>
		<title> My Page </title>
		<meta name="description" content="A fine page.">
	</head><body>
		<p>Hello world</p>
		<a href="/next">next</a>
		<a href="mailto:x@y.z">mail</a>
		<a href="#top">top</a>
	</body></html>`

	ex, links := Extract("https://example.com/a", page)
	assert.Equal(t, "My Page", ex.Title)
	assert.Equal(t, "A fine page.", ex.Description)
	assert.Contains(t, ex.Text, "Hello world")
	assert.Equal(t, 1, ex.NumLinks)
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/next", links[0])
}

func TestExtractOGDescriptionFallback(t *testing.T) {
	page := `<html><head><meta property="og:description" content="from og"></head><body></body></html>`
	ex, _ := Extract("https://example.com/", page)
	assert.Equal(t, "from og", ex.Description)
}

func TestExtractNameDescriptionWins(t *testing.T) {
	page := `<html><head>
		<meta name="description" content="plain">
		<meta property="og:description" content="og">
	</head></html>`
	ex, _ := Extract("https://example.com/", page)
	assert.Equal(t, "plain", ex.Description)
}

func TestExtractTruncatesText(t *testing.T) {
	body := strings.Repeat("word ", 2000)
	page := "<html><body><p>" + body + "</p></body></html>"
	ex, _ := Extract("https://example.com/", page)
	assert.Equal(t, MaxTextLen, len([]rune(ex.Text)))
}

func TestExtractTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("héllo wörld ", 1000)
	page := "<html><body>" + body + "</body></html>"
	ex, _ := Extract("https://example.com/", page)
	assert.LessOrEqual(t, len([]rune(ex.Text)), MaxTextLen)
	assert.True(t, strings.HasPrefix(ex.Text, "héllo wörld"))
}

func TestExtractLinkDeduplicationIsNotApplied(t *testing.T) {
	// The extractor reports every anchor; dedup happens at the frontier.
	page := `<html><body><a href="/x">1</a><a href="/x">2</a></body></html>`
	ex, links := Extract("https://example.com/", page)
	assert.Equal(t, 2, ex.NumLinks)
	assert.Len(t, links, 2)
}

func TestExtractManyLinks(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, `<a href="/page/%d">p%d</a>`, i, i)
	}
	sb.WriteString("</body></html>")

	ex, links := Extract("https://example.com/", sb.String())
	assert.Equal(t, 50, ex.NumLinks)
	assert.Equal(t, "https://example.com/page/0", links[0])
	assert.Equal(t, "https://example.com/page/49", links[49])
}

func TestExtractEmptyPage(t *testing.T) {
	ex, links := Extract("https://example.com/", "")
	assert.Empty(t, ex.Title)
	assert.Empty(t, ex.Description)
	assert.Empty(t, ex.Text)
	assert.Zero(t, ex.NumLinks)
	assert.Empty(t, links)
}
