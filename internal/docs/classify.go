// Package docs resolves links to hosted documents (text documents,
// spreadsheets and PDF-bearing drive files) into plain text.
package docs

import (
	"regexp"
	"strings"
)

// Kind classifies a document URL.
type Kind string

const (
	KindDoc         Kind = "doc"
	KindSpreadsheet Kind = "spreadsheet"
	KindPDF         Kind = "pdf"
	KindUnknown     Kind = "unknown"
)

type shape struct {
	kind   Kind
	prefix string         // host/path marker used for classification
	id     *regexp.Regexp // identifier inside a URL of any shape
}

var shapes = []shape{
	{
		kind:   KindDoc,
		prefix: "docs.google.com/document",
		id:     regexp.MustCompile(`/document/d/([A-Za-z0-9_-]+)`),
	},
	{
		kind:   KindSpreadsheet,
		prefix: "docs.google.com/spreadsheets",
		id:     regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9_-]+)`),
	},
	{
		kind:   KindPDF,
		prefix: "drive.google.com/file",
		id:     regexp.MustCompile(`/file/d/([A-Za-z0-9_-]+)`),
	},
}

// linkPattern finds any of the three canonical shapes in free text.
var linkPattern = regexp.MustCompile(`https://(?:docs\.google\.com/(?:document|spreadsheets)|drive\.google\.com/file)/d/[A-Za-z0-9_-]+`)

// Classify returns the kind of document url points at.
func Classify(url string) Kind {
	for _, s := range shapes {
		if strings.Contains(url, s.prefix) {
			return s.kind
		}
	}
	return KindUnknown
}

// FileID extracts the hosted file identifier from url. The same url always
// yields the same identifier.
func FileID(url string) (string, bool) {
	for _, s := range shapes {
		if m := s.id.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ExtractURLs scans markup for links to hosted documents and returns each
// distinct canonical URL once.
func ExtractURLs(markup string) []string {
	matches := linkPattern.FindAllString(markup, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		urls = append(urls, m)
	}
	return urls
}

// IsHosted reports whether url points at a recognized document host.
func IsHosted(url string) bool {
	return Classify(url) != KindUnknown
}
