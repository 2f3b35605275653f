package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"omnisearch/searchservice/internal/domain"
	"omnisearch/searchservice/internal/search"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SearchService is the slice of the search layer the HTTP surface needs.
// Tests substitute fakes.
type SearchService interface {
	Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error)
	SearchStream(ctx context.Context, request domain.SearchRequest) (<-chan domain.SearchResponse, error)
	TestProvider(ctx context.Context, id, query string) (domain.ProviderStatus, error)
	Catalog() []domain.ProviderDescriptor
	IsRegistered(id string) bool
	Diagnostics() []domain.ProviderDiagnostics
}

type Server struct {
	search SearchService
	logger *slog.Logger
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search: searchService,
		logger: slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search/providers", s.handleProviders)
	mux.HandleFunc("/search/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/search/providers/test", s.handleProviderTest)
	mux.HandleFunc("/search/stream", s.handleSearchStream)
	mux.HandleFunc("/search", s.handleSearch)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "omni-search",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// parseSearchRequest maps the shared /search and /search/stream query string
// onto a domain request. Validation beyond syntax stays in the search layer.
func parseSearchRequest(r *http.Request) (domain.SearchRequest, error) {
	q := r.URL.Query()

	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		return domain.SearchRequest{}, errors.New("query is required")
	}
	if len(query) > maxQueryLength {
		return domain.SearchRequest{}, fmt.Errorf("query too long (max %d characters)", maxQueryLength)
	}
	limit, err := parsePositiveInt(r, "limit", 0)
	if err != nil {
		return domain.SearchRequest{}, errors.New("invalid limit")
	}
	offset, err := parseNonNegativeInt(r, "offset", 0)
	if err != nil {
		return domain.SearchRequest{}, errors.New("invalid offset")
	}
	minPriority, err := parseNonNegativeInt(r, "minPriority", 0)
	if err != nil {
		return domain.SearchRequest{}, errors.New("invalid minPriority")
	}

	return domain.SearchRequest{
		Query:       query,
		Limit:       limit,
		Offset:      offset,
		SortBy:      domain.NormalizeSortBy(strings.TrimSpace(q.Get("sortBy"))),
		SortOrder:   domain.NormalizeSortOrder(strings.TrimSpace(q.Get("sortOrder"))),
		Providers:   parseCSV(q.Get("providers")),
		Categories:  parseCSV(q.Get("categories")),
		Domains:     parseCSV(q.Get("domains")),
		Languages:   parseCSV(q.Get("languages")),
		MinPriority: minPriority,
		IncludeAuth: parseOptionalBool(q.Get("allowAuth")),
		NoCache:     parseOptionalBool(q.Get("nocache")) || parseOptionalBool(q.Get("noCache")),
	}, nil
}

func (s *Server) writeSearchError(w http.ResponseWriter, query string, err error) {
	s.logger.Warn("search request failed",
		slog.String("query", truncate(query, 80)),
		slog.String("error", err.Error()),
	)
	switch {
	case errors.Is(err, search.ErrInvalidQuery), errors.Is(err, search.ErrInvalidOffset):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, search.ErrUnknownProvider):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, search.ErrNoProviders):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	request, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	response, err := s.search.Search(r.Context(), request)
	if err != nil {
		s.writeSearchError(w, request.Query, err)
		return
	}

	s.logger.Info("search completed",
		slog.String("query", truncate(request.Query, 80)),
		slog.Any("providers", request.Providers),
		slog.Int("totalItems", response.TotalItems),
		slog.Int64("elapsedMs", response.ElapsedMS),
		slog.Int("failedProviders", len(response.SourcesFailed)),
	)
	if len(response.SourcesFailed) > 0 {
		s.logger.Warn("search providers partially failed",
			slog.String("query", truncate(request.Query, 80)),
			slog.Any("failedProviders", response.SourcesFailed),
		)
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/stream" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming is not supported")
		return
	}

	request, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ch, err := s.search.SearchStream(r.Context(), request)
	if err != nil {
		s.writeSearchError(w, request.Query, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := writeSSEEvent(w, flusher, "bootstrap", map[string]any{
		"phase":  "bootstrap",
		"final":  false,
		"query":  request.Query,
		"status": "started",
	}); err != nil {
		return // Client disconnected
	}

	for response := range ch {
		select {
		case <-r.Context().Done():
			return // Client disconnected
		default:
		}
		if err := writeSSEEvent(w, flusher, "results", response); err != nil {
			return // Client disconnected
		}
	}

	_ = writeSSEEvent(w, flusher, "done", map[string]any{"final": true})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	type providerView struct {
		domain.ProviderDescriptor
		Registered bool `json:"registered"`
	}
	catalog := s.search.Catalog()
	items := make([]providerView, 0, len(catalog))
	for _, desc := range catalog {
		items = append(items, providerView{
			ProviderDescriptor: desc,
			Registered:         s.search.IsRegistered(desc.ID),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers/health" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.search.Diagnostics(),
	})
}

func (s *Server) handleProviderTest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers/test" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	provider := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("provider")))
	if provider == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "provider is required")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	startedAt := time.Now()
	status, err := s.search.TestProvider(r.Context(), provider, query)
	elapsed := time.Since(startedAt).Milliseconds()
	if err != nil {
		if errors.Is(err, search.ErrUnknownProvider) {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"provider":  provider,
			"ok":        false,
			"elapsedMs": elapsed,
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider":  status.ID,
		"ok":        status.OK,
		"skipped":   status.Skipped,
		"reason":    status.Reason,
		"count":     status.Count,
		"elapsedMs": elapsed,
		"error":     status.Error,
	})
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.ToLower(strings.TrimSpace(part))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func parseNonNegativeInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err // Client disconnected
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err // Client disconnected
	}
	flusher.Flush()
	return nil
}
