package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"omnisearch/searchservice/internal/domain"
)

const samplePayload = `{
	"query": {
		"search": [
			{
				"title": "Go (programming language)",
				"snippet": "<span class=\"searchmatch\">Go</span> is a statically typed language",
				"timestamp": "2024-02-10T15:04:05Z",
				"wordcount": 5120
			},
			{
				"title": "Goroutine",
				"snippet": "lightweight thread managed by the <span class=\"searchmatch\">Go</span> runtime",
				"timestamp": "2023-11-01T09:00:00Z",
				"wordcount": 800
			}
		]
	}
}`

func TestExecuteParsesSearchResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("action") != "query" || query.Get("list") != "search" {
			t.Errorf("unexpected query params: %v", query)
		}
		if query.Get("srsearch") != "golang" {
			t.Errorf("unexpected search term %q", query.Get("srsearch"))
		}
		if query.Get("srlimit") != "10" {
			t.Errorf("unexpected limit %q", query.Get("srlimit"))
		}
		w.Write([]byte(samplePayload))
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, Client: server.Client()})

	payload, err := provider.Execute(context.Background(), "golang", domain.QueryParams{Limit: 10})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	items, ok := payload.([]domain.ResultItem)
	if !ok {
		t.Fatalf("expected []domain.ResultItem, got %T", payload)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Go (programming language)" {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if first.URL != "https://en.wikipedia.org/wiki/Go_(programming_language)" {
		t.Fatalf("unexpected url %q", first.URL)
	}
	if first.Snippet != "Go is a statically typed language" {
		t.Fatalf("markup must be stripped, got %q", first.Snippet)
	}
	if first.PublishedAt == nil || first.PublishedAt.Year() != 2024 {
		t.Fatalf("timestamp lost: %v", first.PublishedAt)
	}
}

func TestExecuteLanguageOverride(t *testing.T) {
	provider := NewProvider(Config{Language: "de"})

	if got := provider.apiURL("de"); got != "https://de.wikipedia.org/w/api.php" {
		t.Fatalf("unexpected api url %q", got)
	}
	if got := articleURL("fr", "Paris"); got != "https://fr.wikipedia.org/wiki/Paris" {
		t.Fatalf("unexpected article url %q", got)
	}
}

func TestExecuteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, Client: server.Client()})

	if _, err := provider.Execute(context.Background(), "golang", domain.QueryParams{}); err == nil {
		t.Fatal("expected an error for a 429")
	}
}

func TestExecuteEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query": {"search": []}}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, Client: server.Client()})

	payload, err := provider.Execute(context.Background(), "nonexistent", domain.QueryParams{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	items := payload.([]domain.ResultItem)
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestProviderID(t *testing.T) {
	if got := NewProvider(Config{}).ID(); got != "wikipedia" {
		t.Fatalf("unexpected id %q", got)
	}
}
