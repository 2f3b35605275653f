package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"omnisearch/searchservice/internal/domain"
	"omnisearch/searchservice/internal/health"
	"omnisearch/searchservice/internal/ratelimit"
	"omnisearch/searchservice/internal/registry"
)

var (
	// ErrInvalidQuery is returned when the search query is empty after trimming.
	ErrInvalidQuery = errors.New("query is required")
	// ErrInvalidOffset is returned when the requested offset is negative.
	ErrInvalidOffset = errors.New("offset must be non-negative")
	// ErrUnknownProvider is returned when a request names a provider that is
	// not in the catalog.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrNoProviders is returned when selection yields zero dispatchable
	// providers. This is the only condition that fails a whole search round.
	ErrNoProviders = errors.New("no providers selected")
)

// Client executes a single search against one upstream source. Implementations
// live in internal/providers. Execute returns the provider's payload in
// whatever shape the upstream produced; the service normalizes it centrally,
// so clients never need to massage their responses into a house format.
type Client interface {
	ID() string
	Execute(ctx context.Context, query string, params domain.QueryParams) (any, error)
}

// Scorer ranks a single result item for relevance ordering. Higher scores
// sort first. The ranking pass is stable, so equal scores keep merge order.
type Scorer func(item domain.ResultItem) float64

const (
	defaultSearchLimit     = 20
	maxSearchLimit         = 100
	minPerProviderFetch    = 20
	maxPerProviderFetch    = 50
	defaultTaskTimeout     = 10 * time.Second
	defaultRoundTimeout    = 15 * time.Second
	defaultMaxConcurrent   = 50
	reliabilityScoreWeight = 0.1
)

// Service fans a search query out to every selected provider and aggregates
// whatever comes back before the round deadline. One slow or broken upstream
// never fails the round; it shows up in the per-provider status list instead.
type Service struct {
	catalog *registry.Registry
	clients map[string]Client

	monitor *health.Monitor
	limiter *ratelimit.Limiter
	gate    *permitGate
	scorer  Scorer
	logger  *slog.Logger

	taskTimeout  time.Duration
	roundTimeout time.Duration
	retryCfg     RetryConfig

	cacheDisabled bool
	cacheMu       sync.Mutex
	cache         map[string]*cachedSearchResponse
	popular       map[string]*popularQuery
	warmerCfg     warmerConfig
	warmerRun     atomic.Bool
	redisCache    *RedisCacheBackend
	flight        singleflight.Group
}

// ServiceOption customizes Service construction.
type ServiceOption func(*Service)

// WithHealthMonitor replaces the default health monitor. Tests use this to
// inject monitors with short cooldowns.
func WithHealthMonitor(monitor *health.Monitor) ServiceOption {
	return func(s *Service) {
		if monitor != nil {
			s.monitor = monitor
		}
	}
}

// WithRateLimiter replaces the default per-provider rate limiter.
func WithRateLimiter(limiter *ratelimit.Limiter) ServiceOption {
	return func(s *Service) {
		if limiter != nil {
			s.limiter = limiter
		}
	}
}

// WithMaxConcurrent caps how many provider calls may run at once across all
// in-flight search rounds. Zero or negative keeps the default of 50.
func WithMaxConcurrent(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.gate = newPermitGate(n)
		}
	}
}

// WithRoundTimeout bounds a whole fan-out round when the caller's context
// carries no deadline of its own.
func WithRoundTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.roundTimeout = d
		}
	}
}

// WithRetryConfig overrides the transient-error retry policy for provider
// calls.
func WithRetryConfig(cfg RetryConfig) ServiceOption {
	return func(s *Service) {
		s.retryCfg = cfg
	}
}

// WithScorer replaces the relevance scorer used when sorting merged results.
func WithScorer(scorer Scorer) ServiceOption {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRedisCache adds a Redis tier in front of the in-memory response cache.
func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

// WithCacheTTL overrides the response cache TTL. The stale window scales with
// it so stale-while-refresh keeps working for non-default TTLs.
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.warmerCfg.cacheTTL = ttl
			s.warmerCfg.staleTTL = ttl * 3
		}
	}
}

// WithCacheDisabled turns response caching off entirely. Useful in tests and
// for deployments that front the service with their own cache.
func WithCacheDisabled() ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = true
	}
}

// NewService wires the fan-out engine. catalog describes every provider the
// deployment knows about; clients are the upstreams that can actually be
// called. A client without a catalog entry gets a synthesized descriptor so
// it stays selectable; a catalog entry without a client is reported in
// diagnostics but never dispatched. taskTimeout bounds each provider call.
func NewService(catalog *registry.Registry, clients []Client, taskTimeout time.Duration, opts ...ServiceOption) *Service {
	if taskTimeout <= 0 {
		taskTimeout = defaultTaskTimeout
	}

	registered := make(map[string]Client, len(clients))
	for _, client := range clients {
		if client == nil {
			continue
		}
		id := registry.NormalizeID(client.ID())
		if id == "" {
			continue
		}
		registered[id] = client
	}

	if catalog == nil {
		catalog = registry.New()
	}
	catalog = withSynthesizedDescriptors(catalog, registered)

	s := &Service{
		catalog:      catalog,
		clients:      registered,
		monitor:      health.New(0, 0, 0),
		limiter:      ratelimit.New(),
		gate:         newPermitGate(defaultMaxConcurrent),
		logger:       slog.Default(),
		taskTimeout:  taskTimeout,
		roundTimeout: defaultRoundTimeout,
		retryCfg:     DefaultRetryConfig(),
		cache:        make(map[string]*cachedSearchResponse),
		popular:      make(map[string]*popularQuery),
		warmerCfg:    defaultWarmerConfig(),
	}
	s.scorer = s.reliabilityScorer()

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withSynthesizedDescriptors returns a catalog that also covers clients the
// original catalog never heard of. Synthesized entries are active,
// unauthenticated and unlimited, so ad-hoc test clients participate in
// selection without any YAML ceremony.
func withSynthesizedDescriptors(catalog *registry.Registry, clients map[string]Client) *registry.Registry {
	missing := make([]domain.ProviderDescriptor, 0)
	for id := range clients {
		if _, ok := catalog.Get(id); !ok {
			missing = append(missing, domain.ProviderDescriptor{
				ID:     id,
				Name:   id,
				Active: true,
			})
		}
	}
	if len(missing) == 0 {
		return catalog
	}
	return registry.New(append(catalog.All(), missing...)...)
}

// reliabilityScorer is the default ranking function: the provider-reported
// score plus a small prior taken from the catalog's reliability figure, so
// ties between sources break toward the historically dependable one.
func (s *Service) reliabilityScorer() Scorer {
	return func(item domain.ResultItem) float64 {
		score := item.Score
		if desc, ok := s.catalog.Get(item.Source); ok {
			score += desc.Reliability * reliabilityScoreWeight
		}
		return score
	}
}

// StartBackground launches the popular-query cache warmer. Safe to call more
// than once; only the first call wins. The goroutine exits with ctx.
func (s *Service) StartBackground(ctx context.Context) {
	if s.cacheDisabled {
		return
	}
	if !s.warmerRun.CompareAndSwap(false, true) {
		return
	}
	go s.runWarmer(ctx)
}

// Catalog returns every descriptor the service knows about, sorted by id.
func (s *Service) Catalog() []domain.ProviderDescriptor {
	return s.catalog.All()
}

// IsRegistered reports whether a client is wired for the given provider id.
func (s *Service) IsRegistered(id string) bool {
	_, ok := s.clients[registry.NormalizeID(id)]
	return ok
}

// Diagnostics reports the full operational picture per provider: descriptor,
// whether a client is registered, health counters and the current rate
// window. Sorted by id.
func (s *Service) Diagnostics() []domain.ProviderDiagnostics {
	now := time.Now()
	descriptors := s.catalog.All()
	out := make([]domain.ProviderDiagnostics, 0, len(descriptors))
	for _, desc := range descriptors {
		_, registered := s.clients[desc.ID]
		out = append(out, domain.ProviderDiagnostics{
			Descriptor: desc,
			Registered: registered,
			Health:     s.monitor.SnapshotFor(desc.ID),
			Rate:       s.limiter.Snapshot(desc.ID, desc.RateLimit, now),
		})
	}
	return out
}
