// Package search exposes knowledge lookup to agent runs. The core pipeline
// never calls it directly; it exists only inside the agent's tool set.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 20 * time.Second

// ErrQueryFailed wraps transport or provider failures.
var ErrQueryFailed = errors.New("search query failed")

// Result is one knowledge-base hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider answers free-text queries.
type Provider interface {
	Query(ctx context.Context, text string) ([]Result, error)
}

// Option applies a configuration option to the HTTPProvider.
type Option func(*HTTPProvider)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *HTTPProvider) {
		if hc != nil {
			p.httpClient = hc
		}
	}
}

// HTTPProvider queries a JSON search endpoint.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider builds a provider against baseURL. apiKey may be empty for
// unauthenticated endpoints.
func NewHTTPProvider(baseURL, apiKey string, opts ...Option) (*HTTPProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base url is empty", ErrQueryFailed)
	}
	p := &HTTPProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Query posts the text and decodes the result list.
func (p *HTTPProvider) Query(ctx context.Context, text string) ([]Result, error) {
	payload, err := json.Marshal(map[string]string{"query": text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrQueryFailed, resp.StatusCode)
	}

	var body struct {
		Results []Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return body.Results, nil
}
