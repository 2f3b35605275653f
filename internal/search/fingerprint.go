package search

import (
	"sort"
	"strconv"
	"strings"

	"omnisearch/searchservice/internal/domain"
)

// buildFingerprint derives the cache key for a search round. Two requests
// share a key when they normalize to the same query and hit the same provider
// set with the same paging and ordering. Provider ids are deduplicated and
// sorted so selection order never splits the cache.
func buildFingerprint(request domain.SearchRequest, providerIDs []string) string {
	return strings.Join([]string{
		"q=" + NormalizeQuery(request.Query),
		"l=" + strconv.Itoa(request.Limit),
		"o=" + strconv.Itoa(request.Offset),
		"sb=" + string(request.SortBy),
		"so=" + string(request.SortOrder),
		"p=" + strings.Join(normalizeProviderIDs(providerIDs), ","),
	}, "|")
}

func normalizeProviderIDs(providerIDs []string) []string {
	if len(providerIDs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(providerIDs))
	ids := make([]string, 0, len(providerIDs))
	for _, raw := range providerIDs {
		value := strings.ToLower(strings.TrimSpace(raw))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		ids = append(ids, value)
	}
	sort.Strings(ids)
	return ids
}
