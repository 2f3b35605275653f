package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "omnisearch/searchservice/internal/api/http"
	"omnisearch/searchservice/internal/app"
	"omnisearch/searchservice/internal/health"
	"omnisearch/searchservice/internal/metrics"
	"omnisearch/searchservice/internal/providers/arxiv"
	"omnisearch/searchservice/internal/providers/github"
	"omnisearch/searchservice/internal/providers/hackernews"
	"omnisearch/searchservice/internal/providers/openlibrary"
	"omnisearch/searchservice/internal/providers/restapi"
	"omnisearch/searchservice/internal/providers/wikipedia"
	"omnisearch/searchservice/internal/registry"
	"omnisearch/searchservice/internal/search"
	"omnisearch/searchservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "omni-search")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	catalog := buildCatalog(cfg, logger)

	logger.Info("configuration loaded",
		slog.String("service", "omni-search"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("taskTimeout", cfg.TaskTimeout),
		slog.Duration("roundTimeout", cfg.RoundTimeout),
		slog.Int("maxConcurrent", cfg.MaxConcurrent),
		slog.Int("failoverThreshold", cfg.FailoverThreshold),
		slog.Int("catalogSize", catalog.Len()),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Bool("hasGitHubToken", cfg.GitHubToken != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	httpClient := &http.Client{
		Timeout:   cfg.TaskTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	searchService := search.NewService(
		catalog,
		buildClients(cfg, catalog, httpClient, logger),
		cfg.TaskTimeout,
		buildServiceOptions(cfg, logger)...,
	)

	handler := apihttp.NewServer(searchService, apihttp.WithLogger(logger)).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// SSE streaming (/search/stream) can legitimately exceed short write
		// timeouts. Keep it disabled at the server level; the round deadline
		// bounds every stream anyway.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	searchService.StartBackground(rootCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("omni-search service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("roundTimeout", cfg.RoundTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("omni-search service stopped")
}

// buildCatalog merges the built-in descriptor set with the optional YAML
// catalog file; file entries override built-ins with the same id.
func buildCatalog(cfg app.Config, logger *slog.Logger) *registry.Registry {
	descriptors := registry.Builtin()
	if path := strings.TrimSpace(cfg.CatalogPath); path != "" {
		extra, err := registry.LoadFile(path)
		if err != nil {
			logger.Warn("catalog file ignored", slog.String("path", path), slog.String("error", err.Error()))
		} else {
			logger.Info("catalog file merged", slog.String("path", path), slog.Int("entries", len(extra)))
			descriptors = append(descriptors, extra...)
		}
	}
	return registry.New(descriptors...)
}

// buildClients assembles the provider fleet: the bespoke clients first, then a
// generic REST client for every catalog entry that carries endpoint wiring.
// Auth-required descriptors without a configured credential stay cataloged but
// unregistered, so diagnostics show them while rounds never select them.
func buildClients(cfg app.Config, catalog *registry.Registry, httpClient *http.Client, logger *slog.Logger) []search.Client {
	clients := []search.Client{
		wikipedia.NewProvider(wikipedia.Config{Client: httpClient}),
		arxiv.NewProvider(arxiv.Config{Client: httpClient}),
		hackernews.NewProvider(hackernews.Config{Client: httpClient}),
		openlibrary.NewProvider(openlibrary.Config{Client: httpClient}),
		github.NewProvider(github.Config{Client: httpClient, Token: cfg.GitHubToken}),
	}

	bespoke := make(map[string]struct{}, len(clients))
	for _, client := range clients {
		bespoke[client.ID()] = struct{}{}
	}

	for _, desc := range catalog.All() {
		if desc.Endpoint == "" {
			continue
		}
		if _, taken := bespoke[desc.ID]; taken {
			continue
		}
		restCfg := restapi.Config{Client: httpClient}
		if desc.RequiresAuth {
			restCfg.Headers, restCfg.Params = credentialsFor(desc.ID, cfg)
			if len(restCfg.Headers) == 0 && len(restCfg.Params) == 0 {
				logger.Debug("provider left unregistered: no credentials", slog.String("provider", desc.ID))
				continue
			}
		}
		client, err := restapi.FromDescriptor(desc, restCfg)
		if err != nil {
			logger.Warn("provider skipped", slog.String("provider", desc.ID), slog.String("error", err.Error()))
			continue
		}
		clients = append(clients, client)
	}
	return clients
}

func credentialsFor(id string, cfg app.Config) (map[string]string, url.Values) {
	switch id {
	case "newsapi":
		if cfg.NewsAPIKey != "" {
			return map[string]string{"X-Api-Key": cfg.NewsAPIKey}, nil
		}
	case "youtube":
		if cfg.YouTubeAPIKey != "" {
			return nil, url.Values{"key": []string{cfg.YouTubeAPIKey}}
		}
	case "core":
		if cfg.COREAPIKey != "" {
			return map[string]string{"Authorization": "Bearer " + cfg.COREAPIKey}, nil
		}
	}
	return nil, nil
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildServiceOptions(cfg app.Config, logger *slog.Logger) []search.ServiceOption {
	opts := []search.ServiceOption{
		search.WithLogger(logger),
		search.WithMaxConcurrent(cfg.MaxConcurrent),
		search.WithRoundTimeout(cfg.RoundTimeout),
		search.WithHealthMonitor(health.New(cfg.FailoverThreshold, 0, 0)),
	}

	if cfg.RetryAttempts > 0 {
		retryCfg := search.DefaultRetryConfig()
		retryCfg.MaxAttempts = cfg.RetryAttempts
		opts = append(opts, search.WithRetryConfig(retryCfg))
	}

	if cfg.CacheDisabled {
		opts = append(opts, search.WithCacheDisabled())
		return opts
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, search.WithCacheTTL(cfg.CacheTTL))
	}

	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
		opts = append(opts, search.WithRedisCache(search.NewRedisCacheBackend(redisClient)))
	}

	return opts
}
