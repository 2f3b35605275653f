package openlibrary

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
	defaultEndpoint = "https://openlibrary.org"
	defaultLimit    = 20
	maxLimit        = 50
	maxAuthors      = 3
)

type Config struct {
	// Endpoint overrides the Open Library base URL, mainly for tests.
	Endpoint string
	Client   *http.Client
}

// Provider queries the Open Library book search API. Work keys become
// public openlibrary.org links.
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

func (p *Provider) ID() string { return "openlibrary" }

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
	values.Set("limit", strconv.Itoa(limit))
	values.Set("fields", "key,title,author_name,first_publish_year")

	var payload searchResponse
	requestURL := p.endpoint + "/search.json?" + values.Encode()
	if err := common.GetJSON(ctx, p.client, requestURL, nil, &payload); err != nil {
		return nil, fmt.Errorf("openlibrary search: %w", err)
	}

	items := make([]domain.ResultItem, 0, len(payload.Docs))
	for _, doc := range payload.Docs {
		title := strings.TrimSpace(doc.Title)
		if title == "" || doc.Key == "" {
			continue
		}
		item := domain.ResultItem{
			Title:   title,
			URL:     p.endpoint + doc.Key,
			Snippet: describeWork(doc),
		}
		if doc.FirstPublishYear > 0 {
			published := time.Date(doc.FirstPublishYear, time.January, 1, 0, 0, 0, 0, time.UTC)
			item.PublishedAt = &published
		}
		items = append(items, item)
	}
	return items, nil
}

// describeWork renders "by A, B (1979)" from whichever of the author list
// and first publish year the record carries.
func describeWork(doc workDoc) string {
	authors := doc.AuthorName
	if len(authors) > maxAuthors {
		authors = authors[:maxAuthors]
	}
	var b strings.Builder
	if len(authors) > 0 {
		b.WriteString("by ")
		b.WriteString(strings.Join(authors, ", "))
	}
	if doc.FirstPublishYear > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "(%d)", doc.FirstPublishYear)
	}
	return b.String()
}

type workDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
}

type searchResponse struct {
	Docs []workDoc `json:"docs"`
}
