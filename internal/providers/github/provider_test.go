package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"omnisearch/searchservice/internal/domain"
)

const samplePayload = `{
	"total_count": 2,
	"items": [
		{
			"full_name": "golang/go",
			"html_url": "https://github.com/golang/go",
			"description": "The Go programming language",
			"language": "Go",
			"stargazers_count": 120000,
			"score": 1.0,
			"created_at": "2014-08-19T04:33:40Z"
		},
		{
			"full_name": "avelino/awesome-go",
			"html_url": "https://github.com/avelino/awesome-go",
			"description": "",
			"language": "Go",
			"stargazers_count": 100000,
			"score": 0.8,
			"created_at": "2014-07-06T13:42:15Z"
		}
	]
}`

func TestExecuteParsesRepositories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/repositories" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("unexpected query %q", got)
		}
		if got := r.URL.Query().Get("per_page"); got != "10" {
			t.Errorf("unexpected per_page %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("unexpected accept %q", got)
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
	if first.Title != "golang/go" {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if first.URL != "https://github.com/golang/go" {
		t.Fatalf("unexpected url %q", first.URL)
	}
	if !strings.Contains(first.Snippet, "The Go programming language") || !strings.Contains(first.Snippet, "120000 stars") {
		t.Fatalf("unexpected snippet %q", first.Snippet)
	}
	if first.Score != 1.0 {
		t.Fatalf("score lost: %v", first.Score)
	}
	if first.PublishedAt == nil || first.PublishedAt.Year() != 2014 {
		t.Fatalf("created_at lost: %v", first.PublishedAt)
	}

	// Empty description still yields a snippet from language and stars.
	if items[1].Snippet != "Go · 100000 stars" {
		t.Fatalf("unexpected fallback snippet %q", items[1].Snippet)
	}
}

func TestExecuteSendsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ghp_test123" {
			t.Errorf("missing token, got %q", got)
		}
		w.Write([]byte(`{"total_count": 0, "items": []}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, Token: "ghp_test123", Client: server.Client()})

	if _, err := provider.Execute(context.Background(), "q", domain.QueryParams{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestExecuteAnonymousOmitsAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write([]byte(`{"total_count": 0, "items": []}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, Client: server.Client()})

	if _, err := provider.Execute(context.Background(), "q", domain.QueryParams{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestExecuteRateLimitedSurfacesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "API rate limit exceeded"}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, Client: server.Client()})

	_, err := provider.Execute(context.Background(), "q", domain.QueryParams{})
	if err == nil {
		t.Fatal("expected an error for a 403")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Fatalf("expected the upstream message, got %v", err)
	}
}

func TestProviderID(t *testing.T) {
	if got := NewProvider(Config{}).ID(); got != "github" {
		t.Fatalf("unexpected id %q", got)
	}
}
