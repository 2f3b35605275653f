package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const (
	// DefaultUserAgent identifies the service to upstream APIs. Several of
	// them (Wikipedia, Crossref) throttle or reject anonymous agents.
	DefaultUserAgent = "omni-search/1.0 (+https://github.com/omnisearch/searchservice)"

	maxBodyBytes    = 4 * 1024 * 1024
	maxErrorSnippet = 220
)

// StatusError is a non-2xx upstream response. It keeps the status code
// available to the retry policy without the caller sniffing error strings.
type StatusError struct {
	Status  int
	Snippet string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("provider HTTP %d", e.Status)
	}
	return fmt.Sprintf("provider HTTP %d: %s", e.Status, e.Snippet)
}

func (e *StatusError) HTTPStatusCode() int { return e.Status }

// GetJSON fetches rawURL and decodes the JSON body into out. Extra headers
// come on top of the standard User-Agent and Accept pair; pass nil when there
// are none. The body read is capped so a misbehaving upstream cannot balloon
// memory.
func GetJSON(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, out any) error {
	body, err := fetch(ctx, client, rawURL, "application/json", headers)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetBody fetches rawURL and returns the capped raw body. Callers that parse
// XML or other non-JSON formats decode it themselves.
func GetBody(ctx context.Context, client *http.Client, rawURL, accept string, headers map[string]string) ([]byte, error) {
	body, err := fetch(ctx, client, rawURL, accept, headers)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	payload, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return payload, nil
}

func fetch(ctx context.Context, client *http.Client, rawURL, accept string, headers map[string]string) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, &StatusError{Status: resp.StatusCode, Snippet: CompactSnippet(string(snippet), maxErrorSnippet)}
	}
	return resp.Body, nil
}

// CharsetReader decodes non-UTF-8 XML feeds; plug it into
// xml.Decoder.CharsetReader. Atom feeds are usually UTF-8 but a few mirrors
// still serve ISO-8859-1.
func CharsetReader(charset string, input io.Reader) (io.Reader, error) {
	name := strings.TrimSpace(strings.ToLower(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return input, nil
	}
	encoding, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return transform.NewReader(input, encoding.NewDecoder()), nil
}
