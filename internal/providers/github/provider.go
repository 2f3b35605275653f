package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"omnisearch/searchservice/internal/domain"
	"omnisearch/searchservice/internal/providers/common"
)

const (
	defaultEndpoint = "https://api.github.com"
	defaultLimit    = 20
	maxLimit        = 50
)

type Config struct {
	Endpoint string
	// Token enables authenticated requests: 30 req/min instead of 10.
	Token  string
	Client *http.Client
}

// Provider queries the GitHub repository search API.
type Provider struct {
	client   *http.Client
	endpoint string
	token    string
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Provider{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    strings.TrimSpace(cfg.Token),
	}
}

func (p *Provider) ID() string { return "github" }

func (p *Provider) Execute(ctx context.Context, query string, params domain.QueryParams) (any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("per_page", strconv.Itoa(limit))

	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if p.token != "" {
		headers["Authorization"] = "Bearer " + p.token
	}

	var payload searchResponse
	requestURL := p.endpoint + "/search/repositories?" + values.Encode()
	if err := common.GetJSON(ctx, p.client, requestURL, headers, &payload); err != nil {
		return nil, fmt.Errorf("github search: %w", err)
	}

	items := make([]domain.ResultItem, 0, len(payload.Items))
	for _, repo := range payload.Items {
		name := strings.TrimSpace(repo.FullName)
		if name == "" {
			continue
		}
		item := domain.ResultItem{
			Title:   name,
			URL:     strings.TrimSpace(repo.HTMLURL),
			Snippet: describeRepo(repo),
			Score:   repo.Score,
		}
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(repo.CreatedAt)); err == nil {
			item.PublishedAt = &parsed
		}
		items = append(items, item)
	}
	return items, nil
}

// describeRepo joins the description with language and star count so the
// snippet stays useful for repositories with empty descriptions.
func describeRepo(repo repository) string {
	parts := make([]string, 0, 3)
	if desc := strings.TrimSpace(repo.Description); desc != "" {
		parts = append(parts, desc)
	}
	if lang := strings.TrimSpace(repo.Language); lang != "" {
		parts = append(parts, lang)
	}
	if repo.StargazersCount > 0 {
		parts = append(parts, fmt.Sprintf("%d stars", repo.StargazersCount))
	}
	return strings.Join(parts, " · ")
}

type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []repository `json:"items"`
}

type repository struct {
	FullName        string  `json:"full_name"`
	HTMLURL         string  `json:"html_url"`
	Description     string  `json:"description"`
	Language        string  `json:"language"`
	StargazersCount int     `json:"stargazers_count"`
	Score           float64 `json:"score"`
	CreatedAt       string  `json:"created_at"`
}
