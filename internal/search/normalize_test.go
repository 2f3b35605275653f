package search

import (
	"testing"
	"time"

	"omnisearch/searchservice/internal/domain"
)

// ---------------------------------------------------------------------------
// Query and URL normalization
// ---------------------------------------------------------------------------

func TestNormalizeQuery(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ubuntu", "ubuntu"},
		{"  Go   Generics  ", "go generics"},
		{"MIXED\tCase\nWords", "mixed case words"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := NormalizeQuery(tc.in); got != tc.want {
			t.Fatalf("NormalizeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/Path/", "https://example.com/Path"},
		{"HTTPS://example.com/page#section-3", "https://example.com/page"},
		{"https://example.com", "https://example.com"},
		{"  https://example.com/x  ", "https://example.com/x"},
		{"not a url at all", "not a url at all"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := canonicalURL(tc.in); got != tc.want {
			t.Fatalf("canonicalURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalURLPreservesQuery(t *testing.T) {
	got := canonicalURL("https://example.com/search?q=go&page=2")
	if got != "https://example.com/search?q=go&page=2" {
		t.Fatalf("query strings identify distinct documents, got %q", got)
	}
}

func TestDedupeKeyMatchesAcrossDecorations(t *testing.T) {
	a := domain.ResultItem{Title: "Go Generics", URL: "https://Example.com/post/"}
	b := domain.ResultItem{Title: "go  generics", URL: "https://example.com/post#intro"}

	if dedupeKey(a) != dedupeKey(b) {
		t.Fatalf("expected matching keys, got %q vs %q", dedupeKey(a), dedupeKey(b))
	}

	c := domain.ResultItem{Title: "Different", URL: "https://example.com/post"}
	if dedupeKey(a) == dedupeKey(c) {
		t.Fatal("different titles must produce different keys")
	}
}

// ---------------------------------------------------------------------------
// Payload shapes
// ---------------------------------------------------------------------------

func TestNormalizePayloadBareItemList(t *testing.T) {
	payload := []domain.ResultItem{{Title: "A", URL: "https://ex.com/a"}}

	items, ok := normalizePayload(payload)
	if !ok || len(items) != 1 || items[0].Title != "A" {
		t.Fatalf("unexpected result: ok=%v items=%+v", ok, items)
	}
}

func TestNormalizePayloadBareJSONList(t *testing.T) {
	payload := []any{
		map[string]any{"title": "A", "url": "https://ex.com/a"},
		map[string]any{"title": "B", "url": "https://ex.com/b"},
	}

	items, ok := normalizePayload(payload)
	if !ok || len(items) != 2 {
		t.Fatalf("unexpected result: ok=%v items=%+v", ok, items)
	}
}

func TestNormalizePayloadResultsEnvelope(t *testing.T) {
	payload := map[string]any{
		"results": []any{
			map[string]any{"title": "A", "url": "https://ex.com/a"},
		},
		"total": 1,
	}

	items, ok := normalizePayload(payload)
	if !ok || len(items) != 1 || items[0].Title != "A" {
		t.Fatalf("unexpected result: ok=%v items=%+v", ok, items)
	}
}

func TestNormalizePayloadDataEnvelope(t *testing.T) {
	payload := map[string]any{
		"data": []any{
			map[string]any{"name": "B", "link": "https://ex.com/b"},
		},
	}

	items, ok := normalizePayload(payload)
	if !ok || len(items) != 1 || items[0].Title != "B" {
		t.Fatalf("unexpected result: ok=%v items=%+v", ok, items)
	}
}

func TestNormalizePayloadTypedEnvelope(t *testing.T) {
	payload := map[string]any{
		"results": []domain.ResultItem{{Title: "C", URL: "https://ex.com/c"}},
	}

	items, ok := normalizePayload(payload)
	if !ok || len(items) != 1 || items[0].Title != "C" {
		t.Fatalf("unexpected result: ok=%v items=%+v", ok, items)
	}
}

func TestNormalizePayloadUnrecognizedShapes(t *testing.T) {
	for _, payload := range []any{
		nil,
		"a plain string",
		42,
		map[string]any{"items": []any{map[string]any{"title": "hidden"}}},
		map[string]any{"results": "not a list"},
		struct{ X int }{X: 1},
	} {
		if _, ok := normalizePayload(payload); ok {
			t.Fatalf("payload %#v must not be recognized", payload)
		}
	}
}

func TestNormalizePayloadSkipsNonObjectElements(t *testing.T) {
	payload := []any{
		map[string]any{"title": "Keep", "url": "https://ex.com/k"},
		"stray string",
		7,
	}

	items, ok := normalizePayload(payload)
	if !ok || len(items) != 1 || items[0].Title != "Keep" {
		t.Fatalf("unexpected result: ok=%v items=%+v", ok, items)
	}
}

// ---------------------------------------------------------------------------
// Field extraction
// ---------------------------------------------------------------------------

func TestItemFromMapAliases(t *testing.T) {
	m := map[string]any{
		"full_name":   "owner/repo",
		"html_url":    "https://github.com/owner/repo",
		"description": "a repository",
		"score":       12.5,
	}

	item, ok := itemFromMap(m)
	if !ok {
		t.Fatal("expected a recognized item")
	}
	if item.Title != "owner/repo" {
		t.Fatalf("full_name alias failed, got %q", item.Title)
	}
	if item.URL != "https://github.com/owner/repo" {
		t.Fatalf("html_url alias failed, got %q", item.URL)
	}
	if item.Snippet != "a repository" {
		t.Fatalf("description alias failed, got %q", item.Snippet)
	}
	if item.Score != 12.5 {
		t.Fatalf("score extraction failed, got %v", item.Score)
	}
}

func TestItemFromMapDropsAnonymousObjects(t *testing.T) {
	if _, ok := itemFromMap(map[string]any{"description": "no title, no url"}); ok {
		t.Fatal("objects without title and url must be dropped")
	}
}

func TestItemFromMapKeepsURLOnlyObjects(t *testing.T) {
	item, ok := itemFromMap(map[string]any{"url": "https://ex.com/bare"})
	if !ok || item.URL != "https://ex.com/bare" {
		t.Fatalf("url-only objects are still useful, got ok=%v item=%+v", ok, item)
	}
}

func TestStringFieldListValue(t *testing.T) {
	// Crossref ships titles as single-element arrays.
	m := map[string]any{"title": []any{"Deep Learning Survey", "alternate"}}

	if got := stringField(m, "title"); got != "Deep Learning Survey" {
		t.Fatalf("expected first list element, got %q", got)
	}
}

func TestStringFieldSkipsEmptyAliases(t *testing.T) {
	m := map[string]any{"title": "   ", "name": "Fallback"}

	if got := stringField(m, "title", "name"); got != "Fallback" {
		t.Fatalf("blank aliases must fall through, got %q", got)
	}
}

func TestFloatFieldVariants(t *testing.T) {
	if got, ok := floatField(map[string]any{"score": 3.5}, "score"); !ok || got != 3.5 {
		t.Fatalf("float64: got %v ok=%v", got, ok)
	}
	if got, ok := floatField(map[string]any{"score": 4}, "score"); !ok || got != 4 {
		t.Fatalf("int: got %v ok=%v", got, ok)
	}
	if got, ok := floatField(map[string]any{"score": "2.25"}, "score"); !ok || got != 2.25 {
		t.Fatalf("numeric string: got %v ok=%v", got, ok)
	}
	if _, ok := floatField(map[string]any{"score": "high"}, "score"); ok {
		t.Fatal("non-numeric strings must not parse")
	}
	if _, ok := floatField(map[string]any{}, "score"); ok {
		t.Fatal("missing fields must not parse")
	}
}

// ---------------------------------------------------------------------------
// Timestamps
// ---------------------------------------------------------------------------

func TestParseTimestampLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05T10:30:00Z", time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)},
		{"2024-03-05 10:30:00", time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)},
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := parseTimestamp(tc.in)
		if !ok {
			t.Fatalf("parseTimestamp(%q) not recognized", tc.in)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "yesterday", "13/45/9999"} {
		if _, ok := parseTimestamp(in); ok {
			t.Fatalf("parseTimestamp(%q) must fail", in)
		}
	}
}

func TestItemFromMapPublishedAt(t *testing.T) {
	item, ok := itemFromMap(map[string]any{
		"title":        "Dated",
		"url":          "https://ex.com/d",
		"published_at": "2023-11-20T08:00:00Z",
	})
	if !ok || item.PublishedAt == nil {
		t.Fatalf("expected a parsed timestamp, got %+v", item)
	}
	want := time.Date(2023, 11, 20, 8, 0, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, item.PublishedAt)
	}
}

func TestItemFromMapIgnoresUnparseableDate(t *testing.T) {
	item, ok := itemFromMap(map[string]any{
		"title":     "Undated",
		"url":       "https://ex.com/u",
		"published": "circa 1990",
	})
	if !ok {
		t.Fatal("the item itself is still valid")
	}
	if item.PublishedAt != nil {
		t.Fatalf("unparseable dates must be dropped, got %v", item.PublishedAt)
	}
}
