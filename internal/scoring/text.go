package scoring

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// htmlToText converts HTML to plain text, collapsing whitespace.
func htmlToText(html string) string {
	if !strings.ContainsRune(html, '<') {
		return normalizeSpace(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return normalizeSpace(html) // Fallback to original if parsing fails
	}
	return normalizeSpace(doc.Text())
}

// normalizeSpace collapses multiple spaces into one and trims the string.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// foldWords lowercases s and replaces every non letter/digit rune with a
// single space, so "Dept. of Health, Inc." becomes "dept of health inc".
func foldWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
