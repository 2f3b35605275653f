package domain

import "time"

// ProviderDescriptor is the static catalog entry for one upstream source.
// It is pure data: the registry never opens connections on its behalf.
// Endpoint, QueryParam and ItemsKey are wiring hints consumed by the generic
// REST client; bespoke clients ignore them.
type ProviderDescriptor struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Category     string   `json:"category" yaml:"category"`
	Priority     int      `json:"priority" yaml:"priority"`
	RateLimit    int      `json:"rateLimit" yaml:"rateLimit"`
	Reliability  float64  `json:"reliability" yaml:"reliability"`
	RequiresAuth bool     `json:"requiresAuth,omitempty" yaml:"requiresAuth"`
	Domains      []string `json:"domains,omitempty" yaml:"domains"`
	Languages    []string `json:"languages,omitempty" yaml:"languages"`
	Active       bool     `json:"active" yaml:"active"`
	Endpoint     string   `json:"endpoint,omitempty" yaml:"endpoint"`
	QueryParam   string   `json:"queryParam,omitempty" yaml:"queryParam"`
	ItemsKey     string   `json:"itemsKey,omitempty" yaml:"itemsKey"`
}

type SourceFilter struct {
	IDs         []string
	Categories  []string
	Domains     []string
	Languages   []string
	MinPriority int
	IncludeAuth bool
}

type ProviderHealth struct {
	ID                  string     `json:"id"`
	Healthy             bool       `json:"healthy"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	TotalRequests       int64      `json:"totalRequests"`
	ErrorCount          int64      `json:"errorCount"`
	SuccessRate         float64    `json:"successRate"`
	AvgLatencyMS        float64    `json:"avgLatencyMs"`
	LastError           string     `json:"lastError,omitempty"`
	LastCheckedAt       *time.Time `json:"lastCheckedAt,omitempty"`
	RetryAt             *time.Time `json:"retryAt,omitempty"`
	Probing             bool       `json:"probing,omitempty"`
}

type RateWindow struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// ProviderDiagnostics joins the catalog view with live health and rate state
// for the operator endpoint.
type ProviderDiagnostics struct {
	Descriptor ProviderDescriptor `json:"descriptor"`
	Registered bool               `json:"registered"`
	Health     ProviderHealth     `json:"health"`
	Rate       RateWindow         `json:"rate"`
}
