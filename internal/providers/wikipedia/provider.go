package wikipedia

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
	defaultLanguage = "en"
	defaultLimit    = 20
	maxLimit        = 50
)

type Config struct {
	// Endpoint overrides the per-language API URL, mainly for tests.
	Endpoint string
	Language string
	Client   *http.Client
}

// Provider queries the MediaWiki search API. Article URLs are rebuilt from
// titles because the list=search module does not return them.
type Provider struct {
	client   *http.Client
	endpoint string
	language string
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	language := strings.TrimSpace(strings.ToLower(cfg.Language))
	if language == "" {
		language = defaultLanguage
	}
	return &Provider{
		client:   client,
		endpoint: strings.TrimSpace(cfg.Endpoint),
		language: language,
	}
}

func (p *Provider) ID() string { return "wikipedia" }

func (p *Provider) Execute(ctx context.Context, query string, params domain.QueryParams) (any, error) {
	language := p.language
	if lang := strings.TrimSpace(strings.ToLower(params.Language)); lang != "" {
		language = lang
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	values := url.Values{}
	values.Set("action", "query")
	values.Set("list", "search")
	values.Set("format", "json")
	values.Set("srsearch", query)
	values.Set("srlimit", strconv.Itoa(limit))
	values.Set("srprop", "snippet|timestamp|wordcount")

	var payload searchResponse
	requestURL := p.apiURL(language) + "?" + values.Encode()
	if err := common.GetJSON(ctx, p.client, requestURL, nil, &payload); err != nil {
		return nil, fmt.Errorf("wikipedia search: %w", err)
	}

	items := make([]domain.ResultItem, 0, len(payload.Query.Search))
	for _, hit := range payload.Query.Search {
		title := strings.TrimSpace(hit.Title)
		if title == "" {
			continue
		}
		item := domain.ResultItem{
			Title:   title,
			URL:     articleURL(language, title),
			Snippet: common.CleanHTMLText(hit.Snippet),
		}
		if parsed, err := time.Parse(time.RFC3339, hit.Timestamp); err == nil {
			item.PublishedAt = &parsed
		}
		items = append(items, item)
	}
	return items, nil
}

func (p *Provider) apiURL(language string) string {
	if p.endpoint != "" {
		return p.endpoint
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", language)
}

func articleURL(language, title string) string {
	slug := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	return fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", language, slug)
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title     string `json:"title"`
			Snippet   string `json:"snippet"`
			Timestamp string `json:"timestamp"`
			WordCount int    `json:"wordcount"`
		} `json:"search"`
	} `json:"query"`
}
