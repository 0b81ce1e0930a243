// Package parser extracts title, description, body text, and outbound links
// from HTML pages.
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/polite-crawler/polite/internal/urlutil"
)

// MaxTextLen caps the extracted body text, in runes.
const MaxTextLen = 4000

// Extraction holds the page fields merged into the crawl record.
type Extraction struct {
	Title       string
	Description string
	Text        string
	NumLinks    int
}

// Extract parses the page and returns its record fields plus the normalized,
// absolute http(s) links discovered in anchor tags. Parsing never fails hard:
// malformed HTML yields whatever fields could be recovered.
func Extract(pageURL, rawHTML string) (Extraction, []string) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return Extraction{}, nil
	}
	doc := goquery.NewDocumentFromNode(root)

	title := strings.TrimSpace(doc.Find("title").First().Text())

	description := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	if description == "" {
		description = strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if runes := []rune(text); len(runes) > MaxTextLen {
		text = string(runes[:MaxTextLen])
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if normalized, ok := urlutil.NormalizeLink(pageURL, href); ok {
			links = append(links, normalized)
		}
	})

	return Extraction{
		Title:       title,
		Description: description,
		Text:        text,
		NumLinks:    len(links),
	}, links
}
