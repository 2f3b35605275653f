package restapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"omnisearch/searchservice/internal/domain"
	"omnisearch/searchservice/internal/providers/common"
)

const (
	defaultQueryParam = "q"
	defaultLimit      = 20
	maxLimit          = 50
)

type Config struct {
	// ID names the provider; results are attributed to it downstream.
	ID string
	// Endpoint is the search URL. It may embed {query} and {limit}
	// placeholders; without a {query} placeholder the query is sent as the
	// QueryParam query-string parameter instead.
	Endpoint string
	// QueryParam is the query-string parameter name, "q" when empty.
	QueryParam string
	// ItemsKey is the dot path to the result list inside the response
	// payload, e.g. "message.items". Empty hands the payload over as is.
	ItemsKey string
	// Headers are added to every request, typically API keys.
	Headers map[string]string
	// Params are extra query parameters added to every request.
	Params url.Values
	Client *http.Client
}

// Provider is the catalog-driven REST client. It knows nothing about any
// particular upstream: the descriptor tells it where to send the query and
// where the result list lives, and the response normalizer downstream maps
// whatever fields come back.
type Provider struct {
	id         string
	endpoint   string
	queryParam string
	itemsKey   string
	headers    map[string]string
	params     url.Values
	client     *http.Client
}

func NewProvider(cfg Config) (*Provider, error) {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return nil, errors.New("restapi: provider id is required")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("restapi: provider %q has no endpoint", id)
	}
	queryParam := strings.TrimSpace(cfg.QueryParam)
	if queryParam == "" {
		queryParam = defaultQueryParam
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Provider{
		id:         id,
		endpoint:   endpoint,
		queryParam: queryParam,
		itemsKey:   strings.TrimSpace(cfg.ItemsKey),
		headers:    cfg.Headers,
		params:     cfg.Params,
		client:     client,
	}, nil
}

// FromDescriptor builds a client from a catalog entry. Auth headers, extra
// query parameters and the HTTP client still come from cfg.
func FromDescriptor(desc domain.ProviderDescriptor, cfg Config) (*Provider, error) {
	cfg.ID = desc.ID
	cfg.Endpoint = desc.Endpoint
	cfg.QueryParam = desc.QueryParam
	cfg.ItemsKey = desc.ItemsKey
	return NewProvider(cfg)
}

func (p *Provider) ID() string { return p.id }

func (p *Provider) Execute(ctx context.Context, query string, params domain.QueryParams) (any, error) {
	requestURL, err := p.buildURL(query, params)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", p.id, err)
	}

	var payload any
	if err := common.GetJSON(ctx, p.client, requestURL, p.headers, &payload); err != nil {
		return nil, fmt.Errorf("%s search: %w", p.id, err)
	}

	if p.itemsKey == "" {
		return payload, nil
	}
	if list, ok := digList(payload, p.itemsKey); ok {
		return list, nil
	}
	// Unknown envelope shape. Hand the raw payload downstream where it is
	// counted as malformed rather than failing the whole round.
	return payload, nil
}

func (p *Provider) buildURL(query string, params domain.QueryParams) (string, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	endpoint := p.endpoint
	templated := strings.Contains(endpoint, "{query}")
	if templated {
		endpoint = strings.ReplaceAll(endpoint, "{query}", url.QueryEscape(query))
	}
	endpoint = strings.ReplaceAll(endpoint, "{limit}", strconv.Itoa(limit))

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	values := u.Query()
	if !templated {
		values.Set(p.queryParam, query)
	}
	for key, list := range p.params {
		for _, v := range list {
			values.Add(key, v)
		}
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// digList walks a dot path like "message.items" through nested JSON objects
// and returns the list at the end of it.
func digList(payload any, path string) ([]any, bool) {
	current := payload
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	list, ok := current.([]any)
	return list, ok
}
