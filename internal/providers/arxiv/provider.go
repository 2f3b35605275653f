package arxiv

import (
	"bytes"
	"context"
	"encoding/xml"
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
	defaultEndpoint = "https://export.arxiv.org/api/query"
	defaultLimit    = 20
	maxLimit        = 50
	snippetLength   = 280
)

type Config struct {
	Endpoint string
	Client   *http.Client
}

// Provider queries the arXiv Atom API. Abstracts arrive as multi-line XML
// text, so titles and summaries get their whitespace collapsed.
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
	return &Provider{client: client, endpoint: endpoint}
}

func (p *Provider) ID() string { return "arxiv" }

func (p *Provider) Execute(ctx context.Context, query string, params domain.QueryParams) (any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	values := url.Values{}
	values.Set("search_query", "all:"+query)
	values.Set("start", "0")
	values.Set("max_results", strconv.Itoa(limit))
	values.Set("sortBy", "relevance")

	payload, err := common.GetBody(ctx, p.client, p.endpoint+"?"+values.Encode(), "application/atom+xml", nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv search: %w", err)
	}

	var feed atomFeed
	decoder := xml.NewDecoder(bytes.NewReader(payload))
	decoder.CharsetReader = common.CharsetReader
	if err := decoder.Decode(&feed); err != nil {
		return nil, fmt.Errorf("arxiv feed: %w", err)
	}

	items := make([]domain.ResultItem, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		title := collapse(entry.Title)
		if title == "" {
			continue
		}
		item := domain.ResultItem{
			Title:   title,
			URL:     entry.pageURL(),
			Snippet: common.Excerpt(collapse(entry.Summary), snippetLength),
		}
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Published)); err == nil {
			item.PublishedAt = &parsed
		}
		items = append(items, item)
	}
	return items, nil
}

func collapse(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Summary   string     `xml:"summary"`
	Published string     `xml:"published"`
	Links     []atomLink `xml:"link"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// pageURL prefers the alternate HTML link and falls back to the entry id,
// which arXiv also serves as an abs page URL.
func (e atomEntry) pageURL() string {
	for _, link := range e.Links {
		if link.Rel == "alternate" && strings.TrimSpace(link.Href) != "" {
			return strings.TrimSpace(link.Href)
		}
	}
	return strings.TrimSpace(e.ID)
}
