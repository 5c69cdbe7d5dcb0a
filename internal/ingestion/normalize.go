package ingestion

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	// markupTag matches a doctype, a closing tag, or an opening tag of a known
	// element whose attributes, if any, carry values. Comparisons such as
	// "p<0.05" or "a<b and c>d" do not match.
	markupTag = regexp.MustCompile(`(?i)<!doctype\s|</[a-z][a-z0-9]*\s*>|<(html|head|body|title|meta|link|p|div|span|br|hr|a|b|i|em|strong|img|ul|ol|li|h[1-6]|table|tr|td|th|blockquote|section|article|nav|footer|header|aside|script|style)(\s+[a-z-]+=("[^"]*"|'[^']*'|[^\s>]+))*\s*/?>`)
)

const blockElements = "p, div, br, li, h1, h2, h3, h4, h5, h6, tr, td, th, blockquote, section, article"

// NormalizeDocument flattens markup bodies to text, collapses whitespace and
// falls back to the markup's <title> or first <h1> when the title is blank.
func NormalizeDocument(title, body string) (string, string) {
	title = collapse(title)
	if !looksLikeHTML(body) {
		return title, collapse(body)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return title, collapse(body)
	}

	if title == "" {
		title = collapse(doc.Find("title").First().Text())
		if title == "" {
			title = collapse(doc.Find("h1").First().Text())
		}
	}

	doc.Find("script, style, nav, footer, header, aside, title").Remove()
	doc.Find(blockElements).AfterHtml(" ")

	return title, collapse(doc.Find("body").Text())
}

func looksLikeHTML(s string) bool {
	return markupTag.MatchString(s)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
