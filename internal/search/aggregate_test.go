package search

import (
	"errors"
	"testing"
	"time"

	"omnisearch/searchservice/internal/domain"
)

func okResult(id string, latency time.Duration, items ...domain.ResultItem) domain.ProviderResult {
	return domain.ProviderResult{ProviderID: id, Items: items, Latency: latency}
}

// ---------------------------------------------------------------------------
// Merge and dedupe
// ---------------------------------------------------------------------------

func TestAggregateFirstWinsDedupe(t *testing.T) {
	service := newTestService(nil, WithCacheDisabled())
	prepared := preparedSearch{query: "q", limit: 10}

	first := item("Ubuntu Guide", "https://example.com/guide", 1)
	shadowed := item("Ubuntu Guide", "https://example.com/guide", 99)
	shadowed.Snippet = "later copy that must lose"

	response := service.aggregate(prepared, []domain.ProviderResult{
		okResult("alpha", 0, first),
		okResult("beta", 0, shadowed, item("Other", "https://example.com/other", 1)),
	}, time.Now())

	if response.RawCount != 3 {
		t.Fatalf("expected rawCount 3, got %d", response.RawCount)
	}
	if response.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", response.Duplicates)
	}
	if response.TotalItems != 2 {
		t.Fatalf("expected 2 merged items, got %d", response.TotalItems)
	}
	for _, merged := range response.Items {
		if merged.Snippet == "later copy that must lose" {
			t.Fatal("dedupe must keep the first occurrence")
		}
	}
}

func TestAggregateDedupeUsesCanonicalURL(t *testing.T) {
	service := newTestService(nil, WithCacheDisabled())
	prepared := preparedSearch{query: "q", limit: 10}

	response := service.aggregate(prepared, []domain.ProviderResult{
		okResult("alpha", 0, item("Go Generics", "https://Example.com/Post/", 1)),
		okResult("beta", 0, item("go  generics", "https://example.com/Post#section", 1)),
	}, time.Now())

	if response.TotalItems != 1 {
		t.Fatalf("expected canonical dedupe to collapse both, got %d items", response.TotalItems)
	}
	if response.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", response.Duplicates)
	}
}

func TestAggregateSameURLDifferentTitleKept(t *testing.T) {
	service := newTestService(nil, WithCacheDisabled())
	prepared := preparedSearch{query: "q", limit: 10}

	response := service.aggregate(prepared, []domain.ProviderResult{
		okResult("alpha", 0, item("Original", "https://example.com/page", 1)),
		okResult("beta", 0, item("Mirror", "https://example.com/page", 1)),
	}, time.Now())

	if response.TotalItems != 2 {
		t.Fatalf("same URL with different titles must not collapse, got %d items", response.TotalItems)
	}
}

// ---------------------------------------------------------------------------
// Status partitioning
// ---------------------------------------------------------------------------

func TestAggregatePartitionsSources(t *testing.T) {
	service := newTestService(nil, WithCacheDisabled())
	prepared := preparedSearch{query: "q", limit: 10}

	results := []domain.ProviderResult{
		okResult("good", 5*time.Millisecond, item("A", "https://ex.com/a", 1)),
		{ProviderID: "broken", Err: errors.New("boom"), Reason: domain.ReasonUpstream, Latency: 3 * time.Millisecond},
		{ProviderID: "paused", Skipped: true, Reason: domain.ReasonRateLimited, Err: errors.New("rate limit reached")},
	}

	response := service.aggregate(prepared, results, time.Now())

	if len(response.SourcesUsed) != 1 || response.SourcesUsed[0] != "good" {
		t.Fatalf("unexpected used list: %v", response.SourcesUsed)
	}
	if len(response.SourcesFailed) != 1 || response.SourcesFailed[0] != "broken" {
		t.Fatalf("unexpected failed list: %v", response.SourcesFailed)
	}
	if len(response.SourcesSkipped) != 1 || response.SourcesSkipped[0] != "paused" {
		t.Fatalf("unexpected skipped list: %v", response.SourcesSkipped)
	}
	if !response.Success {
		t.Fatal("aggregation itself never fails the round")
	}
	if len(response.Providers) != 3 {
		t.Fatalf("every result needs a status entry, got %d", len(response.Providers))
	}
}

func TestAggregateMalformedCountsAsUsed(t *testing.T) {
	service := newTestService(nil, WithCacheDisabled())
	prepared := preparedSearch{query: "q", limit: 10}

	response := service.aggregate(prepared, []domain.ProviderResult{
		{
			ProviderID: "odd",
			Items:      []domain.ResultItem{},
			Reason:     domain.ReasonMalformed,
			Err:        errors.New("unrecognized response shape"),
			Latency:    time.Millisecond,
		},
	}, time.Now())

	if len(response.SourcesUsed) != 1 || response.SourcesUsed[0] != "odd" {
		t.Fatalf("malformed responses count as used sources, got %v", response.SourcesUsed)
	}
	if len(response.SourcesFailed) != 0 {
		t.Fatalf("malformed responses are not failures, got %v", response.SourcesFailed)
	}
	if !response.Providers[0].OK {
		t.Fatal("malformed status must stay OK")
	}
	if response.Providers[0].Error == "" {
		t.Fatal("malformed status should surface the shape error")
	}
}

// ---------------------------------------------------------------------------
// Latency stats
// ---------------------------------------------------------------------------

func TestAggregateLatencyStats(t *testing.T) {
	service := newTestService(nil, WithCacheDisabled())
	prepared := preparedSearch{query: "q", limit: 10}

	results := []domain.ProviderResult{
		okResult("quick", 10*time.Millisecond, item("A", "https://ex.com/a", 1)),
		{ProviderID: "laggy", Err: errors.New("boom"), Reason: domain.ReasonUpstream, Latency: 40 * time.Millisecond},
		okResult("middle", 25*time.Millisecond, item("B", "https://ex.com/b", 1)),
		{ProviderID: "idle", Skipped: true, Reason: domain.ReasonUnhealthy},
	}

	response := service.aggregate(prepared, results, time.Now())

	if response.AvgLatencyMS != 25 {
		t.Fatalf("expected avg latency 25ms, got %d", response.AvgLatencyMS)
	}
	if response.SlowestProvider != "laggy" {
		t.Fatalf("expected laggy slowest (failures count), got %q", response.SlowestProvider)
	}
	if response.FastestProvider != "quick" {
		t.Fatalf("expected quick fastest, got %q", response.FastestProvider)
	}
}

func TestAggregateNoLatencyWithoutDispatches(t *testing.T) {
	service := newTestService(nil, WithCacheDisabled())
	prepared := preparedSearch{query: "q", limit: 10}

	response := service.aggregate(prepared, []domain.ProviderResult{
		{ProviderID: "idle", Skipped: true, Reason: domain.ReasonUnhealthy},
	}, time.Now())

	if response.AvgLatencyMS != 0 || response.SlowestProvider != "" || response.FastestProvider != "" {
		t.Fatalf("skips carry no latency, got avg=%d slowest=%q fastest=%q",
			response.AvgLatencyMS, response.SlowestProvider, response.FastestProvider)
	}
}

// ---------------------------------------------------------------------------
// Sorting
// ---------------------------------------------------------------------------

func TestSortItemsByScoreDescending(t *testing.T) {
	items := []domain.ResultItem{
		item("Low", "https://ex.com/l", 1),
		item("High", "https://ex.com/h", 9),
		item("Mid", "https://ex.com/m", 5),
	}
	sortItems(items, domain.SearchSortByRelevance, domain.SearchSortOrderDesc, func(it domain.ResultItem) float64 {
		return it.Score
	})

	titles := []string{items[0].Title, items[1].Title, items[2].Title}
	if titles[0] != "High" || titles[1] != "Mid" || titles[2] != "Low" {
		t.Fatalf("unexpected order: %v", titles)
	}
}

func TestSortItemsStableOnEqualScores(t *testing.T) {
	items := []domain.ResultItem{
		item("First", "https://ex.com/1", 5),
		item("Second", "https://ex.com/2", 5),
		item("Third", "https://ex.com/3", 5),
	}
	sortItems(items, domain.SearchSortByRelevance, domain.SearchSortOrderDesc, func(it domain.ResultItem) float64 {
		return it.Score
	})

	if items[0].Title != "First" || items[1].Title != "Second" || items[2].Title != "Third" {
		t.Fatalf("equal scores must keep merge order, got %v %v %v",
			items[0].Title, items[1].Title, items[2].Title)
	}
}

func TestSortItemsCustomScorer(t *testing.T) {
	items := []domain.ResultItem{
		item("Short", "https://ex.com/s", 100),
		item("A much longer title", "https://ex.com/l", 1),
	}
	// Rank by title length, ignoring the provider scores entirely.
	sortItems(items, domain.SearchSortByRelevance, domain.SearchSortOrderDesc, func(it domain.ResultItem) float64 {
		return float64(len(it.Title))
	})

	if items[0].Title != "A much longer title" {
		t.Fatalf("custom scorer ignored, got %q first", items[0].Title)
	}
}

func TestSortItemsByPublishedUndatedLast(t *testing.T) {
	older := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	build := func() []domain.ResultItem {
		undated := item("Undated", "https://ex.com/u", 1)
		oldItem := item("Old", "https://ex.com/o", 1)
		oldItem.PublishedAt = &older
		newItem := item("New", "https://ex.com/n", 1)
		newItem.PublishedAt = &newer
		return []domain.ResultItem{undated, oldItem, newItem}
	}

	desc := build()
	sortItems(desc, domain.SearchSortByPublished, domain.SearchSortOrderDesc, nil)
	if desc[0].Title != "New" || desc[1].Title != "Old" || desc[2].Title != "Undated" {
		t.Fatalf("desc: unexpected order %v %v %v", desc[0].Title, desc[1].Title, desc[2].Title)
	}

	asc := build()
	sortItems(asc, domain.SearchSortByPublished, domain.SearchSortOrderAsc, nil)
	if asc[0].Title != "Old" || asc[1].Title != "New" || asc[2].Title != "Undated" {
		t.Fatalf("asc: undated must trail, got %v %v %v", asc[0].Title, asc[1].Title, asc[2].Title)
	}
}

func TestSortItemsByTitleCaseInsensitive(t *testing.T) {
	items := []domain.ResultItem{
		item("banana", "https://ex.com/b", 1),
		item("Apple", "https://ex.com/a", 1),
		item("cherry", "https://ex.com/c", 1),
	}
	sortItems(items, domain.SearchSortByTitle, domain.SearchSortOrderAsc, nil)

	if items[0].Title != "Apple" || items[1].Title != "banana" || items[2].Title != "cherry" {
		t.Fatalf("unexpected title order: %v %v %v", items[0].Title, items[1].Title, items[2].Title)
	}
}

// ---------------------------------------------------------------------------
// Pagination
// ---------------------------------------------------------------------------

func TestPaginateWindow(t *testing.T) {
	items := []domain.ResultItem{
		item("A", "https://ex.com/a", 1),
		item("B", "https://ex.com/b", 1),
		item("C", "https://ex.com/c", 1),
		item("D", "https://ex.com/d", 1),
	}

	page := paginate(items, 1, 2)
	if len(page) != 2 || page[0].Title != "B" || page[1].Title != "C" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestPaginateOffsetPastEnd(t *testing.T) {
	items := []domain.ResultItem{item("A", "https://ex.com/a", 1)}

	page := paginate(items, 5, 10)
	if page == nil || len(page) != 0 {
		t.Fatalf("expected empty non-nil page, got %#v", page)
	}
}

func TestPaginateZeroLimitReturnsTail(t *testing.T) {
	items := []domain.ResultItem{
		item("A", "https://ex.com/a", 1),
		item("B", "https://ex.com/b", 1),
		item("C", "https://ex.com/c", 1),
	}

	page := paginate(items, 1, 0)
	if len(page) != 2 || page[0].Title != "B" {
		t.Fatalf("expected tail from offset, got %+v", page)
	}
}

func TestPaginateCopies(t *testing.T) {
	items := []domain.ResultItem{item("A", "https://ex.com/a", 1)}

	page := paginate(items, 0, 1)
	page[0].Title = "mutated"
	if items[0].Title != "A" {
		t.Fatal("pagination must copy, not alias, the merged slice")
	}
}
