package search

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"omnisearch/searchservice/internal/domain"
	"omnisearch/searchservice/internal/metrics"
)

const (
	defaultCacheTTL            = 5 * time.Minute
	defaultStaleTTL            = 15 * time.Minute
	defaultWarmInterval        = 2 * time.Minute
	defaultWarmTopQueries      = 10
	defaultCacheMaxEntries     = 500
	defaultPopularMaxEntries   = 200
	maxConcurrentWarmRefreshes = 3 // keep warm cycles from hogging the fan-out permit gate
)

type warmerConfig struct {
	cacheTTL          time.Duration
	staleTTL          time.Duration
	warmInterval      time.Duration
	warmTopQueries    int
	cacheMaxEntries   int
	popularMaxEntries int
}

func defaultWarmerConfig() warmerConfig {
	return warmerConfig{
		cacheTTL:          defaultCacheTTL,
		staleTTL:          defaultStaleTTL,
		warmInterval:      defaultWarmInterval,
		warmTopQueries:    defaultWarmTopQueries,
		cacheMaxEntries:   defaultCacheMaxEntries,
		popularMaxEntries: defaultPopularMaxEntries,
	}
}

type cachedSearchResponse struct {
	response    domain.SearchResponse
	updatedAt   time.Time
	expiresAt   time.Time
	staleUntil  time.Time
	refreshing  bool
	refreshOnce sync.Once // one refresh per stale period
}

type popularQuery struct {
	request  domain.SearchRequest
	hits     int
	lastSeen time.Time
	lastWarm time.Time
}

type warmSpec struct {
	key     string
	request domain.SearchRequest
}

func (s *Service) runWarmer(ctx context.Context) {
	ticker := time.NewTicker(s.warmerCfg.warmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runWarmCycle(ctx)
		}
	}
}

func (s *Service) runWarmCycle(ctx context.Context) {
	now := time.Now()
	specs := s.collectWarmSpecs(now)
	if len(specs) == 0 {
		return
	}

	// Bounded parallelism so one warm cycle still finishes inside the
	// interval without monopolizing provider budgets.
	sem := semaphore.NewWeighted(maxConcurrentWarmRefreshes)
	var wg sync.WaitGroup

	for _, spec := range specs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}

		wg.Add(1)
		go func(spec warmSpec) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				s.cacheClearRefreshing(spec.key)
				return
			}
			defer sem.Release(1)

			refreshCtx, cancel := context.WithTimeout(ctx, s.roundTimeout+2*time.Second)
			defer cancel()

			if _, err := s.searchNoCache(refreshCtx, spec.request); err != nil {
				s.cacheClearRefreshing(spec.key)
			}
		}(spec)
	}

	wg.Wait()
}

// collectWarmSpecs picks the most popular queries whose cache entries have
// gone cold and marks them refreshing before any goroutine starts, so one
// cycle never double-dispatches a key.
func (s *Service) collectWarmSpecs(now time.Time) []warmSpec {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if len(s.popular) == 0 {
		return nil
	}

	keys := make([]string, 0, len(s.popular))
	for key := range s.popular {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		left := s.popular[keys[i]]
		right := s.popular[keys[j]]
		if left.hits != right.hits {
			return left.hits > right.hits
		}
		return left.lastSeen.After(right.lastSeen)
	})

	limit := s.warmerCfg.warmTopQueries
	if limit <= 0 {
		limit = defaultWarmTopQueries
	}
	if len(keys) < limit {
		limit = len(keys)
	}

	specs := make([]warmSpec, 0, limit)
	for _, key := range keys[:limit] {
		pop := s.popular[key]
		if pop == nil {
			continue
		}
		if !pop.lastWarm.IsZero() && now.Sub(pop.lastWarm) < s.warmerCfg.warmInterval/2 {
			continue
		}
		if entry, ok := s.cache[key]; ok && now.Before(entry.expiresAt) {
			continue
		}
		pop.lastWarm = now
		if entry := s.cache[key]; entry != nil {
			entry.refreshing = true
		}
		specs = append(specs, warmSpec{key: key, request: pop.request})
	}
	return specs
}

// cacheLookup returns a cached response when one is live or stale-but-usable.
// The third return asks the caller to kick off a background refresh; it fires
// at most once per stale period.
func (s *Service) cacheLookup(key string, now time.Time) (domain.SearchResponse, bool, bool) {
	if s.redisCache != nil {
		response, found, err := s.redisCache.Get(context.Background(), key)
		if err == nil && found {
			metrics.CacheHitsTotal.Inc()
			// Keep a local copy so the warmer can reason about freshness
			// without re-querying Redis.
			s.cacheStoreMemoryOnly(key, response, now)
			return response, true, false
		}
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return domain.SearchResponse{}, false, false
	}

	if now.Before(entry.expiresAt) {
		metrics.CacheHitsTotal.Inc()
		return cloneSearchResponse(entry.response), true, false
	}

	if now.Before(entry.staleUntil) {
		metrics.CacheHitsTotal.Inc()
		needsRefresh := false
		entry.refreshOnce.Do(func() {
			needsRefresh = true
			entry.refreshing = true
		})
		return cloneSearchResponse(entry.response), true, needsRefresh
	}

	metrics.CacheMissesTotal.Inc()
	delete(s.cache, key)
	delete(s.popular, key)
	return domain.SearchResponse{}, false, false
}

func (s *Service) cacheStore(key string, response domain.SearchResponse, now time.Time) {
	cacheTTL := s.warmerCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.warmerCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	if s.redisCache != nil {
		_ = s.redisCache.Set(context.Background(), key, response, cacheTTL)
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedSearchResponse{
		response:   cloneSearchResponse(response),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) cacheStoreMemoryOnly(key string, response domain.SearchResponse, now time.Time) {
	cacheTTL := s.warmerCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.warmerCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedSearchResponse{
		response:   cloneSearchResponse(response),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) cacheClearRefreshing(key string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if entry := s.cache[key]; entry != nil {
		entry.refreshing = false
	}
}

// markPopular feeds the warmer. Only first-page rounds count; deeper pages
// are cheap once the first page is warm.
func (s *Service) markPopular(prepared preparedSearch, now time.Time) {
	if prepared.offset > 0 {
		return
	}

	request := s.popularRequest(prepared)
	key := prepared.fingerprint

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	pop, ok := s.popular[key]
	if !ok {
		s.popular[key] = &popularQuery{
			request:  request,
			hits:     1,
			lastSeen: now,
		}
	} else {
		pop.hits++
		pop.lastSeen = now
		pop.request = request
	}

	limit := s.warmerCfg.popularMaxEntries
	if limit <= 0 {
		limit = defaultPopularMaxEntries
	}
	if len(s.popular) <= limit {
		return
	}

	// Drop least popular, oldest first.
	type pair struct {
		key   string
		value *popularQuery
	}
	entries := make([]pair, 0, len(s.popular))
	for popKey, value := range s.popular {
		entries = append(entries, pair{key: popKey, value: value})
	}
	sort.Slice(entries, func(i, j int) bool {
		left := entries[i].value
		right := entries[j].value
		if left.hits != right.hits {
			return left.hits < right.hits
		}
		return left.lastSeen.Before(right.lastSeen)
	})
	for i := 0; i < len(entries)-limit; i++ {
		delete(s.popular, entries[i].key)
	}
}

func (s *Service) trimCacheLocked(now time.Time) {
	maxEntries := s.warmerCfg.cacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}

	for key, entry := range s.cache {
		if now.After(entry.staleUntil) {
			delete(s.cache, key)
		}
	}

	if len(s.cache) <= maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedSearchResponse
	}
	entries := make([]pair, 0, len(s.cache))
	for key, entry := range s.cache {
		entries = append(entries, pair{key: key, entry: entry})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].entry.updatedAt.Before(entries[j].entry.updatedAt)
	})
	for i := 0; i < len(entries)-maxEntries; i++ {
		delete(s.cache, entries[i].key)
	}
}

func cloneSearchResponse(response domain.SearchResponse) domain.SearchResponse {
	cloned := response
	if response.Items != nil {
		cloned.Items = make([]domain.ResultItem, len(response.Items))
		for i, item := range response.Items {
			copied := item
			if item.PublishedAt != nil {
				value := *item.PublishedAt
				copied.PublishedAt = &value
			}
			cloned.Items[i] = copied
		}
	}
	if response.Providers != nil {
		cloned.Providers = append([]domain.ProviderStatus(nil), response.Providers...)
	}
	cloned.SourcesUsed = append([]string(nil), response.SourcesUsed...)
	cloned.SourcesFailed = append([]string(nil), response.SourcesFailed...)
	cloned.SourcesSkipped = append([]string(nil), response.SourcesSkipped...)
	return cloned
}
