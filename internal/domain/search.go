package domain

import "time"

type SearchSortBy string

const (
	SearchSortByRelevance SearchSortBy = "relevance"
	SearchSortByPublished SearchSortBy = "publishedAt"
	SearchSortByTitle     SearchSortBy = "title"
)

type SearchSortOrder string

const (
	SearchSortOrderAsc  SearchSortOrder = "asc"
	SearchSortOrderDesc SearchSortOrder = "desc"
)

// Streaming responses carry a phase marker: partial snapshots while providers
// are still settling, complete exactly once at the end.
const (
	PhasePartial  = "partial"
	PhaseComplete = "complete"
)

type SearchRequest struct {
	Query       string
	Limit       int
	Offset      int
	SortBy      SearchSortBy
	SortOrder   SearchSortOrder
	Providers   []string
	Categories  []string
	Domains     []string
	Languages   []string
	MinPriority int
	IncludeAuth bool
	NoCache     bool
}

// QueryParams is the per-call slice of the request handed to provider clients.
type QueryParams struct {
	Limit    int
	Language string
}

type ResultItem struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Snippet     string     `json:"snippet,omitempty"`
	Content     string     `json:"content,omitempty"`
	Source      string     `json:"source,omitempty"`
	Category    string     `json:"category,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Score       float64    `json:"score,omitempty"`
}

// ProviderResult is the settled outcome of one fan-out task. Exactly one is
// produced per selected provider, whether the call ran, failed, or was skipped.
type ProviderResult struct {
	ProviderID string
	Items      []ResultItem
	Err        error
	Reason     string
	Skipped    bool
	Latency    time.Duration
}

const (
	ReasonUnhealthy   = "unhealthy"
	ReasonRateLimited = "rate_limited"
	ReasonTimeout     = "timeout"
	ReasonUpstream    = "upstream_error"
	ReasonMalformed   = "malformed_response"
)

type ProviderStatus struct {
	ID        string `json:"id"`
	OK        bool   `json:"ok"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Count     int    `json:"count"`
	LatencyMS int64  `json:"latencyMs,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SearchResponse struct {
	Query           string           `json:"query"`
	Items           []ResultItem     `json:"items"`
	Providers       []ProviderStatus `json:"providers"`
	SourcesUsed     []string         `json:"sourcesUsed"`
	SourcesFailed   []string         `json:"sourcesFailed,omitempty"`
	SourcesSkipped  []string         `json:"sourcesSkipped,omitempty"`
	Success         bool             `json:"success"`
	Cached          bool             `json:"cached,omitempty"`
	TotalItems      int              `json:"totalItems"`
	RawCount        int              `json:"rawCount"`
	Duplicates      int              `json:"duplicates"`
	Limit           int              `json:"limit"`
	Offset          int              `json:"offset"`
	HasMore         bool             `json:"hasMore"`
	SortBy          SearchSortBy     `json:"sortBy"`
	SortOrder       SearchSortOrder  `json:"sortOrder"`
	ElapsedMS       int64            `json:"elapsedMs"`
	AvgLatencyMS    int64            `json:"avgLatencyMs,omitempty"`
	SlowestProvider string           `json:"slowestProvider,omitempty"`
	FastestProvider string           `json:"fastestProvider,omitempty"`
	Phase           string           `json:"phase,omitempty"`
	Final           bool             `json:"final"`
}

func NormalizeSortBy(raw string) SearchSortBy {
	switch SearchSortBy(raw) {
	case SearchSortByPublished:
		return SearchSortByPublished
	case SearchSortByTitle:
		return SearchSortByTitle
	default:
		return SearchSortByRelevance
	}
}

func NormalizeSortOrder(raw string) SearchSortOrder {
	switch SearchSortOrder(raw) {
	case SearchSortOrderAsc:
		return SearchSortOrderAsc
	default:
		return SearchSortOrderDesc
	}
}
