package search

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"omnisearch/searchservice/internal/domain"
)

// NormalizeQuery lowercases a query and collapses internal whitespace runs to
// single spaces. Cache fingerprints and popularity tracking key off this form
// so "Go  Generics" and "go generics" land on the same entry.
func NormalizeQuery(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// dedupeKey identifies a result across providers. Two items with the same
// canonical URL and normalized title are the same document even when
// different upstreams decorate it differently.
func dedupeKey(item domain.ResultItem) string {
	return canonicalURL(item.URL) + "|" + NormalizeQuery(item.Title)
}

// canonicalURL strips the parts of a URL that vary between providers without
// changing the document it points at: scheme and host casing, fragments,
// trailing slashes. Unparseable input falls back to trimmed lowercase.
func canonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(trimmed)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String()
}

// normalizePayload maps the payload shapes providers actually return onto
// result items. Recognized shapes are a bare item list, or an object keyed by
// "results" or "data". Anything else reports ok=false and the caller records
// a zero-result success with a malformed-response reason, so one provider
// changing its schema never fails a round.
func normalizePayload(payload any) ([]domain.ResultItem, bool) {
	switch v := payload.(type) {
	case []domain.ResultItem:
		return v, true
	case []any:
		return itemsFromList(v), true
	case []map[string]any:
		items := make([]domain.ResultItem, 0, len(v))
		for _, m := range v {
			if item, ok := itemFromMap(m); ok {
				items = append(items, item)
			}
		}
		return items, true
	case map[string]any:
		for _, key := range []string{"results", "data"} {
			switch list := v[key].(type) {
			case []any:
				return itemsFromList(list), true
			case []domain.ResultItem:
				return list, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

func itemsFromList(list []any) []domain.ResultItem {
	items := make([]domain.ResultItem, 0, len(list))
	for _, element := range list {
		switch v := element.(type) {
		case domain.ResultItem:
			items = append(items, v)
		case map[string]any:
			if item, ok := itemFromMap(v); ok {
				items = append(items, item)
			}
		}
	}
	return items
}

// itemFromMap lifts one JSON object into a result item using the field
// aliases seen across public search APIs. Objects carrying neither a title
// nor a URL are dropped.
func itemFromMap(m map[string]any) (domain.ResultItem, bool) {
	item := domain.ResultItem{
		Title:   stringField(m, "title", "name", "label", "display_name", "full_name"),
		URL:     stringField(m, "url", "link", "href", "html_url", "web_url", "concepturi"),
		Snippet: stringField(m, "snippet", "description", "abstract", "summary", "excerpt", "content"),
	}
	if item.Title == "" && item.URL == "" {
		return domain.ResultItem{}, false
	}
	if score, ok := floatField(m, "score", "relevance_score", "relevanceScore"); ok {
		item.Score = score
	}
	if raw := stringField(m, "publishedAt", "published_at", "published", "date", "created_at", "issued"); raw != "" {
		if parsed, ok := parseTimestamp(raw); ok {
			item.PublishedAt = &parsed
		}
	}
	return item, true
}

// stringField returns the first alias holding a non-empty string. A field
// holding a list of strings (crossref ships titles that way) contributes its
// first element.
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case []any:
			if len(v) == 0 {
				continue
			}
			if s, ok := v[0].(string); ok {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return ""
}

func floatField(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

var timestampLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006",
}

func parseTimestamp(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
