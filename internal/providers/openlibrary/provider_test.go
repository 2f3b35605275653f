package openlibrary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"omnisearch/searchservice/internal/domain"
)

const samplePayload = `{
	"docs": [
		{
			"key": "/works/OL27448W",
			"title": "The Hitchhiker's Guide to the Galaxy",
			"author_name": ["Douglas Adams"],
			"first_publish_year": 1979
		},
		{
			"key": "/works/OL15626917W",
			"title": "Anonymous Anthology",
			"author_name": []
		},
		{
			"key": "",
			"title": "Keyless Record"
		}
	]
}`

func TestExecuteParsesWorks(t *testing.T) {
	var base string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "hitchhiker" {
			t.Errorf("unexpected query %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("unexpected limit %q", got)
		}
		if got := r.URL.Query().Get("fields"); got != "key,title,author_name,first_publish_year" {
			t.Errorf("unexpected fields %q", got)
		}
		w.Write([]byte(samplePayload))
	}))
	defer server.Close()
	base = server.URL

	provider := NewProvider(Config{Endpoint: server.URL, Client: server.Client()})

	payload, err := provider.Execute(context.Background(), "hitchhiker", domain.QueryParams{Limit: 5})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	items, ok := payload.([]domain.ResultItem)
	if !ok {
		t.Fatalf("expected []domain.ResultItem, got %T", payload)
	}
	if len(items) != 2 {
		t.Fatalf("expected keyless record dropped, got %d items", len(items))
	}

	book := items[0]
	if book.Title != "The Hitchhiker's Guide to the Galaxy" {
		t.Fatalf("unexpected title %q", book.Title)
	}
	if book.URL != base+"/works/OL27448W" {
		t.Fatalf("unexpected url %q", book.URL)
	}
	if book.Snippet != "by Douglas Adams (1979)" {
		t.Fatalf("unexpected snippet %q", book.Snippet)
	}
	if book.PublishedAt == nil || book.PublishedAt.Year() != 1979 {
		t.Fatalf("publish year lost: %v", book.PublishedAt)
	}

	if items[1].Snippet != "" {
		t.Fatalf("expected empty snippet without authors or year, got %q", items[1].Snippet)
	}
	if items[1].PublishedAt != nil {
		t.Fatalf("unexpected published date %v", items[1].PublishedAt)
	}
}

func TestDescribeWorkTruncatesAuthorList(t *testing.T) {
	doc := workDoc{
		AuthorName:       []string{"A", "B", "C", "D", "E"},
		FirstPublishYear: 2001,
	}
	if got := describeWork(doc); got != "by A, B, C (2001)" {
		t.Fatalf("unexpected snippet %q", got)
	}
}

func TestExecuteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, Client: server.Client()})

	if _, err := provider.Execute(context.Background(), "q", domain.QueryParams{}); err == nil {
		t.Fatal("expected an error for a 500")
	}
}

func TestProviderID(t *testing.T) {
	if got := NewProvider(Config{}).ID(); got != "openlibrary" {
		t.Fatalf("unexpected id %q", got)
	}
}
