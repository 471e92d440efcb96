package dataflows

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLToText flattens a Reddit selftext_html fragment into plain text, one
// line per block element.
func HTMLToText(fragment string) string {
	if strings.HasPrefix(strings.TrimSpace(fragment), "&lt;") {
		fragment = html.UnescapeString(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	var lines []string
	doc.Find("p, li, pre, blockquote, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		// nested blocks are reported by their innermost element
		if s.Find("p, li, pre").Length() > 0 {
			return
		}
		if text := collapseSpaces(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		return collapseSpaces(doc.Text())
	}
	return strings.Join(lines, "\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to n runes and marks the cut with "...".
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
