// Package normalize converts HTML-bearing text into bounded plain text.
package normalize

import (
	"strings"

	"golang.org/x/net/html"
)

// Length bounds used across the service.
const (
	ShortDescription = 140
	FullDescription  = 5000
	PageBody         = 10000
	PagePreview      = 200
)

const ellipsis = "..."

// entities is the fixed decode table. Anything not listed is left as-is.
var entities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&rsquo;", "'",
	"&lsquo;", "'",
	"&rdquo;", `"`,
	"&ldquo;", `"`,
	"&mdash;", "—",
	"&ndash;", "–",
)

// Text strips markup from s, decodes the common entities, collapses
// whitespace and truncates the result to at most maxLength runes. Truncated
// output ends with "...". An empty input yields an empty string.
func Text(s string, maxLength int) string {
	if s == "" || maxLength <= 0 {
		return ""
	}
	plain := strings.Join(strings.Fields(entities.Replace(stripTags(s))), " ")
	return Truncate(plain, maxLength)
}

// Truncate shortens s to maxLength runes, replacing the tail with "...".
// Limits of three or less leave only the marker, cut to fit.
func Truncate(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= len(ellipsis) {
		return ellipsis[:maxLength]
	}
	return string(runes[:maxLength-len(ellipsis)]) + ellipsis
}

// Clip shortens s to at most n runes without adding a marker.
func Clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// stripTags replaces every tag, comment and doctype with a single space and
// keeps text runs undecoded.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		default:
			b.WriteByte(' ')
		}
	}
}
