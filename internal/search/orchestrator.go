package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"omnisearch/searchservice/internal/domain"
	"omnisearch/searchservice/internal/registry"
)

// preparedSearch carries a validated request through one round: the clamped
// paging, the normalized ordering, the selected providers in dispatch order
// and the cache fingerprint they produce together.
type preparedSearch struct {
	query       string
	limit       int
	offset      int
	sortBy      domain.SearchSortBy
	sortOrder   domain.SearchSortOrder
	tasks       []task
	providerIDs []string
	fingerprint string
	noCache     bool
}

func (p preparedSearch) request() domain.SearchRequest {
	return domain.SearchRequest{
		Query:     p.query,
		Limit:     p.limit,
		Offset:    p.offset,
		SortBy:    p.sortBy,
		SortOrder: p.sortOrder,
	}
}

// Search runs one fan-out round: validate, select providers, consult the
// cache, dispatch, aggregate, store. Provider failures are folded into the
// response; the only errors a caller sees are invalid input and an empty
// selection.
func (s *Service) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	prepared, err := s.prepareSearch(request)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	if s.cacheDisabled || prepared.noCache {
		return s.executeRound(ctx, prepared), nil
	}

	startedAt := time.Now()
	if cached, ok, needsRefresh := s.cacheLookup(prepared.fingerprint, startedAt); ok {
		s.markPopular(prepared, startedAt)
		if needsRefresh {
			s.refreshCacheAsync(prepared)
		}
		cached.Cached = true
		cached.ElapsedMS = time.Since(startedAt).Milliseconds()
		s.logger.Debug("search served from cache",
			"query", prepared.query,
			"providers", len(prepared.tasks),
			"refreshing", needsRefresh)
		return cached, nil
	}

	// Identical cold misses share one upstream round instead of stampeding
	// the providers.
	value, _, sharedRound := s.flight.Do(prepared.fingerprint, func() (any, error) {
		response := s.executeRound(ctx, prepared)
		s.cacheStore(prepared.fingerprint, response, time.Now())
		s.markPopular(prepared, time.Now())
		return response, nil
	})
	response := value.(domain.SearchResponse)
	if sharedRound {
		response = cloneSearchResponse(response)
	}
	return response, nil
}

// executeRound fans the prepared tasks out and aggregates whatever settled.
// When the caller's context has no deadline the configured round timeout
// applies, so a hung upstream can never pin a round open.
func (s *Service) executeRound(ctx context.Context, prepared preparedSearch) domain.SearchResponse {
	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.roundTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.roundTimeout)
		defer cancel()
	}

	startedAt := time.Now()
	results := s.executeFanOut(runCtx, prepared.tasks, nil)
	response := s.aggregate(prepared, results, startedAt)

	s.logger.Info("search round completed",
		"query", prepared.query,
		"providers", len(prepared.tasks),
		"used", len(response.SourcesUsed),
		"failed", len(response.SourcesFailed),
		"skipped", len(response.SourcesSkipped),
		"items", response.TotalItems,
		"elapsed_ms", response.ElapsedMS)
	return response
}

// searchNoCache bypasses the cache read but refreshes the stored copy. The
// warmer and the stale-while-refresh path both funnel through here.
func (s *Service) searchNoCache(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	prepared, err := s.prepareSearch(request)
	if err != nil {
		return domain.SearchResponse{}, err
	}
	response := s.executeRound(ctx, prepared)
	if !s.cacheDisabled {
		s.cacheStore(prepared.fingerprint, response, time.Now())
	}
	return response, nil
}

// refreshCacheAsync re-runs a stale query in the background while callers
// keep getting the stale copy. Detached from the request context on purpose;
// the refresh outliving the triggering request is the point.
func (s *Service) refreshCacheAsync(prepared preparedSearch) {
	request := s.popularRequest(prepared)
	go func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), s.roundTimeout+2*time.Second)
		defer cancel()

		if _, err := s.searchNoCache(refreshCtx, request); err != nil {
			s.cacheClearRefreshing(prepared.fingerprint)
			s.logger.Warn("background cache refresh failed",
				"query", prepared.query,
				"error", err)
		}
	}()
}

// popularRequest rebuilds a request that reproduces this round's selection:
// the chosen provider ids are pinned explicitly so category or priority
// filters do not need to be replayed.
func (s *Service) popularRequest(prepared preparedSearch) domain.SearchRequest {
	request := prepared.request()
	request.Providers = append([]string(nil), prepared.providerIDs...)
	request.IncludeAuth = true
	return request
}

// prepareSearch validates the request and resolves the provider selection.
func (s *Service) prepareSearch(request domain.SearchRequest) (preparedSearch, error) {
	query := strings.TrimSpace(request.Query)
	if query == "" {
		return preparedSearch{}, ErrInvalidQuery
	}
	if request.Offset < 0 {
		return preparedSearch{}, ErrInvalidOffset
	}

	limit := request.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	// Naming a provider the catalog has never heard of is a caller bug, not
	// a selection miss.
	for _, raw := range request.Providers {
		id := registry.NormalizeID(raw)
		if id == "" {
			continue
		}
		if _, ok := s.catalog.Get(id); !ok {
			return preparedSearch{}, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
		}
	}

	selected := s.catalog.Select(domain.SourceFilter{
		IDs:         request.Providers,
		Categories:  request.Categories,
		Domains:     request.Domains,
		Languages:   request.Languages,
		MinPriority: request.MinPriority,
		IncludeAuth: request.IncludeAuth,
	})

	fetchLimit := limit + request.Offset
	if fetchLimit < minPerProviderFetch {
		fetchLimit = minPerProviderFetch
	}
	if fetchLimit > maxPerProviderFetch {
		fetchLimit = maxPerProviderFetch
	}
	params := domain.QueryParams{Limit: fetchLimit}
	if len(request.Languages) > 0 {
		params.Language = registry.NormalizeID(request.Languages[0])
	}

	tasks := make([]task, 0, len(selected))
	ids := make([]string, 0, len(selected))
	for _, desc := range selected {
		client, ok := s.clients[desc.ID]
		if !ok {
			// Cataloged but not wired in this deployment; diagnostics carry
			// these, search rounds do not.
			continue
		}
		tasks = append(tasks, task{desc: desc, client: client, query: query, params: params})
		ids = append(ids, desc.ID)
	}
	if len(tasks) == 0 {
		return preparedSearch{}, ErrNoProviders
	}

	prepared := preparedSearch{
		query:       query,
		limit:       limit,
		offset:      request.Offset,
		sortBy:      domain.NormalizeSortBy(string(request.SortBy)),
		sortOrder:   domain.NormalizeSortOrder(string(request.SortOrder)),
		tasks:       tasks,
		providerIDs: ids,
		noCache:     request.NoCache,
	}
	prepared.fingerprint = buildFingerprint(prepared.request(), ids)
	return prepared, nil
}

// SearchStream emits a response snapshot after every settled provider and a
// final snapshot once the round completes. The channel closes when the round
// is done or ctx is cancelled; the last value before a clean close always has
// Final set.
func (s *Service) SearchStream(ctx context.Context, request domain.SearchRequest) (<-chan domain.SearchResponse, error) {
	prepared, err := s.prepareSearch(request)
	if err != nil {
		return nil, err
	}

	ch := make(chan domain.SearchResponse, len(prepared.tasks)+1)

	if !s.cacheDisabled && !prepared.noCache {
		startedAt := time.Now()
		if cached, ok, needsRefresh := s.cacheLookup(prepared.fingerprint, startedAt); ok {
			s.markPopular(prepared, startedAt)
			if needsRefresh {
				s.refreshCacheAsync(prepared)
			}
			cached.Cached = true
			cached.Phase = domain.PhaseComplete
			cached.Final = true
			cached.ElapsedMS = time.Since(startedAt).Milliseconds()
			ch <- cached
			close(ch)
			return ch, nil
		}
	}

	go s.executeStreamRound(ctx, prepared, ch)
	return ch, nil
}

func (s *Service) executeStreamRound(ctx context.Context, prepared preparedSearch, ch chan<- domain.SearchResponse) {
	defer close(ch)

	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.roundTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.roundTimeout)
		defer cancel()
	}

	startedAt := time.Now()
	settledResults := make([]domain.ProviderResult, len(prepared.tasks))
	settledMask := make([]bool, len(prepared.tasks))
	var mu sync.Mutex

	onResult := func(index int, result domain.ProviderResult) {
		mu.Lock()
		settledResults[index] = result
		settledMask[index] = true
		snapshot := s.buildStreamSnapshot(prepared, settledResults, settledMask, startedAt)
		mu.Unlock()

		select {
		case ch <- snapshot:
		case <-ctx.Done():
		}
	}

	results := s.executeFanOut(runCtx, prepared.tasks, onResult)
	final := s.aggregate(prepared, results, startedAt)
	final.Phase = domain.PhaseComplete
	final.Final = true

	if !s.cacheDisabled && !prepared.noCache {
		s.cacheStore(prepared.fingerprint, final, time.Now())
		s.markPopular(prepared, time.Now())
	}

	s.logger.Info("streaming search completed",
		"query", prepared.query,
		"providers", len(prepared.tasks),
		"items", final.TotalItems,
		"elapsed_ms", final.ElapsedMS)

	select {
	case ch <- final:
	case <-ctx.Done():
	}
}

func (s *Service) buildStreamSnapshot(prepared preparedSearch, results []domain.ProviderResult, settled []bool, startedAt time.Time) domain.SearchResponse {
	subset := make([]domain.ProviderResult, 0, len(results))
	for i, done := range settled {
		if done {
			subset = append(subset, results[i])
		}
	}
	snapshot := s.aggregate(prepared, subset, startedAt)
	snapshot.Phase = domain.PhasePartial
	return snapshot
}

// TestProvider fires a single diagnostic call at one provider, subject to the
// same gates as a search round but never the cache. The returned status shows
// what a fan-out task would have seen.
func (s *Service) TestProvider(ctx context.Context, id, query string) (domain.ProviderStatus, error) {
	desc, ok := s.catalog.Get(id)
	if !ok {
		return domain.ProviderStatus{}, fmt.Errorf("%w: %s", ErrUnknownProvider, strings.TrimSpace(id))
	}
	client, registered := s.clients[desc.ID]
	if !registered {
		return domain.ProviderStatus{}, fmt.Errorf("%w: %s has no registered client", ErrUnknownProvider, desc.ID)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		query = "test"
	}

	result := s.runTask(ctx, task{
		desc:   desc,
		client: client,
		query:  query,
		params: domain.QueryParams{Limit: minPerProviderFetch},
	})
	return statusFromResult(result), nil
}
