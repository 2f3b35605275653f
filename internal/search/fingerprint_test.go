package search

import (
	"testing"

	"omnisearch/searchservice/internal/domain"
)

func TestBuildFingerprintNormalizesQuery(t *testing.T) {
	providers := []string{"arxiv", "github"}
	a := buildFingerprint(domain.SearchRequest{Query: "Go  Generics", Limit: 20}, providers)
	b := buildFingerprint(domain.SearchRequest{Query: "go generics", Limit: 20}, providers)

	if a != b {
		t.Fatalf("normalized queries must share a fingerprint:\n%s\n%s", a, b)
	}
}

func TestBuildFingerprintIgnoresProviderOrder(t *testing.T) {
	request := domain.SearchRequest{Query: "q", Limit: 20}

	a := buildFingerprint(request, []string{"github", "arxiv", "wikipedia"})
	b := buildFingerprint(request, []string{"wikipedia", "GitHub", "arxiv", "arxiv"})

	if a != b {
		t.Fatalf("provider order and duplicates must not split the cache:\n%s\n%s", a, b)
	}
}

func TestBuildFingerprintSeparatesPaging(t *testing.T) {
	providers := []string{"arxiv"}
	base := domain.SearchRequest{Query: "q", Limit: 20}

	offsetted := base
	offsetted.Offset = 20
	limited := base
	limited.Limit = 50

	key := buildFingerprint(base, providers)
	if key == buildFingerprint(offsetted, providers) {
		t.Fatal("different offsets must produce different fingerprints")
	}
	if key == buildFingerprint(limited, providers) {
		t.Fatal("different limits must produce different fingerprints")
	}
}

func TestBuildFingerprintSeparatesSortOrder(t *testing.T) {
	providers := []string{"arxiv"}
	relevance := domain.SearchRequest{Query: "q", Limit: 20, SortBy: domain.SearchSortByRelevance}
	title := domain.SearchRequest{Query: "q", Limit: 20, SortBy: domain.SearchSortByTitle}

	if buildFingerprint(relevance, providers) == buildFingerprint(title, providers) {
		t.Fatal("different sort keys must produce different fingerprints")
	}
}

func TestBuildFingerprintSeparatesProviderSets(t *testing.T) {
	request := domain.SearchRequest{Query: "q", Limit: 20}

	if buildFingerprint(request, []string{"arxiv"}) == buildFingerprint(request, []string{"github"}) {
		t.Fatal("different provider sets must produce different fingerprints")
	}
}

func TestNormalizeProviderIDs(t *testing.T) {
	got := normalizeProviderIDs([]string{" GitHub ", "arxiv", "", "ARXIV", "wikipedia"})

	want := []string{"arxiv", "github", "wikipedia"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestNormalizeProviderIDsEmpty(t *testing.T) {
	if got := normalizeProviderIDs(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}
