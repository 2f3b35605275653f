package common

import (
	"html"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// CleanHTMLText strips markup and collapses whitespace. Search APIs decorate
// snippets with highlight tags (Wikipedia's searchmatch spans, Algolia's em
// elements) that mean nothing once the text leaves their UI.
func CleanHTMLText(raw string) string {
	value := strings.TrimSpace(raw)
	value = html.UnescapeString(value)
	value = tagPattern.ReplaceAllString(value, " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

// CompactSnippet trims cleaned text to maxLen for logs and error messages.
func CompactSnippet(raw string, maxLen int) string {
	value := CleanHTMLText(raw)
	if value == "" {
		return "empty response body"
	}
	if len(value) <= maxLen {
		return value
	}
	if maxLen < 4 {
		return value[:maxLen]
	}
	return value[:maxLen-3] + "..."
}

// Excerpt shortens free text on a word boundary for result snippets.
func Excerpt(raw string, maxLen int) string {
	value := strings.Join(strings.Fields(raw), " ")
	if len(value) <= maxLen {
		return value
	}
	cut := value[:maxLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
