package search

import (
	"sort"
	"strings"
	"time"

	"omnisearch/searchservice/internal/domain"
)

// aggregate folds settled provider results into one response. Results arrive
// in selection order (priority, then id), which makes merge order and
// therefore first-wins deduplication deterministic. A failed or skipped
// provider contributes a status entry but never an error for the round.
func (s *Service) aggregate(prepared preparedSearch, results []domain.ProviderResult, startedAt time.Time) domain.SearchResponse {
	merged := make([]domain.ResultItem, 0, 64)
	seen := make(map[string]struct{}, 64)
	statuses := make([]domain.ProviderStatus, 0, len(results))

	var used, failed, skipped []string
	rawCount := 0
	duplicates := 0

	var latencySum time.Duration
	latencyCount := 0
	var slowest, fastest string
	var slowestLatency, fastestLatency time.Duration

	for _, result := range results {
		statuses = append(statuses, statusFromResult(result))

		if result.Skipped {
			skipped = append(skipped, result.ProviderID)
			continue
		}

		if result.Latency > 0 {
			latencySum += result.Latency
			latencyCount++
			if slowest == "" || result.Latency > slowestLatency {
				slowest, slowestLatency = result.ProviderID, result.Latency
			}
			if fastest == "" || result.Latency < fastestLatency {
				fastest, fastestLatency = result.ProviderID, result.Latency
			}
		}

		if result.Err != nil && result.Reason != domain.ReasonMalformed {
			failed = append(failed, result.ProviderID)
			continue
		}

		used = append(used, result.ProviderID)
		rawCount += len(result.Items)
		for _, item := range result.Items {
			key := dedupeKey(item)
			if _, dup := seen[key]; dup {
				duplicates++
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, item)
		}
	}

	sortItems(merged, prepared.sortBy, prepared.sortOrder, s.scorer)

	total := len(merged)
	page := paginate(merged, prepared.offset, prepared.limit)

	response := domain.SearchResponse{
		Query:           prepared.query,
		Items:           page,
		Providers:       statuses,
		SourcesUsed:     used,
		SourcesFailed:   failed,
		SourcesSkipped:  skipped,
		Success:         true,
		TotalItems:      total,
		RawCount:        rawCount,
		Duplicates:      duplicates,
		Limit:           prepared.limit,
		Offset:          prepared.offset,
		HasMore:         prepared.offset+len(page) < total,
		SortBy:          prepared.sortBy,
		SortOrder:       prepared.sortOrder,
		ElapsedMS:       time.Since(startedAt).Milliseconds(),
		SlowestProvider: slowest,
		FastestProvider: fastest,
	}
	if latencyCount > 0 {
		response.AvgLatencyMS = (latencySum / time.Duration(latencyCount)).Milliseconds()
	}
	return response
}

func statusFromResult(result domain.ProviderResult) domain.ProviderStatus {
	status := domain.ProviderStatus{
		ID:        result.ProviderID,
		Skipped:   result.Skipped,
		Reason:    result.Reason,
		Count:     len(result.Items),
		LatencyMS: result.Latency.Milliseconds(),
	}
	if result.Err != nil {
		status.Error = result.Err.Error()
	}
	status.OK = !result.Skipped && (result.Err == nil || result.Reason == domain.ReasonMalformed)
	return status
}

// sortItems orders merged results. The sort is stable, so items that compare
// equal keep their merge position and repeated rounds produce identical
// output. Scoring runs once per item, not per comparison.
func sortItems(items []domain.ResultItem, sortBy domain.SearchSortBy, sortOrder domain.SearchSortOrder, scorer Scorer) {
	if len(items) < 2 {
		return
	}

	descending := sortOrder != domain.SearchSortOrderAsc

	switch sortBy {
	case domain.SearchSortByPublished:
		sort.SliceStable(items, func(i, j int) bool {
			return publishedLess(items[i], items[j], descending)
		})
	case domain.SearchSortByTitle:
		sort.SliceStable(items, func(i, j int) bool {
			return titleLess(items[i].Title, items[j].Title, descending)
		})
	default:
		ranked := make([]rankedItem, len(items))
		for i := range items {
			ranked[i] = rankedItem{item: items[i], score: scorer(items[i])}
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].score == ranked[j].score {
				return false
			}
			if descending {
				return ranked[i].score > ranked[j].score
			}
			return ranked[i].score < ranked[j].score
		})
		for i := range ranked {
			items[i] = ranked[i].item
		}
	}
}

type rankedItem struct {
	item  domain.ResultItem
	score float64
}

// publishedLess orders by publication time in the requested direction with
// undated items last either way.
func publishedLess(a, b domain.ResultItem, descending bool) bool {
	switch {
	case a.PublishedAt == nil && b.PublishedAt == nil:
		return false
	case a.PublishedAt == nil:
		return false
	case b.PublishedAt == nil:
		return true
	}
	if a.PublishedAt.Equal(*b.PublishedAt) {
		return false
	}
	if descending {
		return a.PublishedAt.After(*b.PublishedAt)
	}
	return a.PublishedAt.Before(*b.PublishedAt)
}

func titleLess(a, b string, descending bool) bool {
	left, right := strings.ToLower(a), strings.ToLower(b)
	if left == right {
		return false
	}
	if descending {
		return left > right
	}
	return left < right
}

func paginate(items []domain.ResultItem, offset, limit int) []domain.ResultItem {
	if offset >= len(items) {
		return []domain.ResultItem{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := make([]domain.ResultItem, end-offset)
	copy(page, items[offset:end])
	return page
}
