package hackernews

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
	defaultEndpoint = "https://hn.algolia.com/api/v1"
	defaultLimit    = 20
	maxLimit        = 50
	snippetLength   = 280
)

type Config struct {
	// Endpoint overrides the Algolia search API base URL, mainly for tests.
	Endpoint string
	Client   *http.Client
}

// Provider queries the Algolia-hosted Hacker News search API. Stories without
// an external URL link back to the HN discussion page instead.
type Provider struct {
	client   *http.Client
	endpoint string
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
	}
}

func (p *Provider) ID() string { return "hackernews" }

func (p *Provider) Execute(ctx context.Context, query string, params domain.QueryParams) (any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	values := url.Values{}
	values.Set("query", query)
	values.Set("hitsPerPage", strconv.Itoa(limit))
	values.Set("tags", "story")

	var payload searchResponse
	requestURL := p.endpoint + "/search?" + values.Encode()
	if err := common.GetJSON(ctx, p.client, requestURL, nil, &payload); err != nil {
		return nil, fmt.Errorf("hackernews search: %w", err)
	}

	items := make([]domain.ResultItem, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		title := strings.TrimSpace(hit.Title)
		if title == "" {
			continue
		}
		item := domain.ResultItem{
			Title:   title,
			URL:     storyURL(hit),
			Snippet: describeStory(hit),
			Score:   float64(hit.Points),
		}
		if parsed, err := time.Parse(time.RFC3339, hit.CreatedAt); err == nil {
			item.PublishedAt = &parsed
		}
		items = append(items, item)
	}
	return items, nil
}

func storyURL(hit storyHit) string {
	if u := strings.TrimSpace(hit.URL); u != "" {
		return u
	}
	return "https://news.ycombinator.com/item?id=" + url.QueryEscape(hit.ObjectID)
}

// describeStory prefers the self-post text and falls back to engagement
// counters so link-only stories still carry a snippet.
func describeStory(hit storyHit) string {
	if text := common.CleanHTMLText(hit.StoryText); text != "" {
		return common.Excerpt(text, snippetLength)
	}
	return fmt.Sprintf("%d points · %d comments", hit.Points, hit.NumComments)
}

type storyHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	StoryText   string `json:"story_text"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	ObjectID    string `json:"objectID"`
	CreatedAt   string `json:"created_at"`
}

type searchResponse struct {
	Hits []storyHit `json:"hits"`
}
