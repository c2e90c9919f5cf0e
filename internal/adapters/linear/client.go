// Package linear is the narrow client for the issue tracker: it can append a
// comment to an item and set an item's priority, nothing more.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultEndpoint is the tracker's GraphQL endpoint.
const DefaultEndpoint = "https://api.linear.app/graphql"

const defaultTimeout = 30 * time.Second

// Sentinel error kinds.
var (
	ErrMissingKey    = errors.New("linear api key is not configured")
	ErrRequestFailed = errors.New("linear request failed")
	ErrAPIError      = errors.New("linear api returned errors")
)

// CommentPoster appends a note to a tracked item.
type CommentPoster interface {
	PostComment(ctx context.Context, itemID, body string) error
}

// PrioritySetter persists a priority against a tracked item.
type PrioritySetter interface {
	SetPriority(ctx context.Context, itemID string, priority int) error
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithEndpoint overrides the API endpoint, for tests.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.endpoint = url
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit paces outbound requests at rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// Client talks to the tracker API with a single credential. One Client exists
// per handling category plus one for the coordinating role.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ CommentPoster = (*Client)(nil)
var _ PrioritySetter = (*Client)(nil)

// NewClient builds a Client. A missing key is a configuration fault.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingKey
	}
	c := &Client{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PostComment appends body as a comment on the item.
func (c *Client) PostComment(ctx context.Context, itemID, body string) error {
	const mutation = `mutation CommentCreate($input: CommentCreateInput!) {
		commentCreate(input: $input) { success }
	}`
	return c.mutate(ctx, "commentCreate", mutation, map[string]any{
		"input": map[string]any{"issueId": itemID, "body": body},
	})
}

// SetPriority persists priority (1 highest .. 4 lowest) on the item.
func (c *Client) SetPriority(ctx context.Context, itemID string, priority int) error {
	const mutation = `mutation IssueUpdate($id: String!, $input: IssueUpdateInput!) {
		issueUpdate(id: $id, input: $input) { success }
	}`
	return c.mutate(ctx, "issueUpdate", mutation, map[string]any{
		"id":    itemID,
		"input": map[string]any{"priority": priority},
	})
}

type graphqlResponse struct {
	Data   map[string]struct{ Success bool } `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) mutate(ctx context.Context, operation, query string, variables map[string]any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
	}

	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, raw)
	}

	var gr graphqlResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if len(gr.Errors) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrAPIError, operation, gr.Errors[0].Message)
	}
	if result, ok := gr.Data[operation]; !ok || !result.Success {
		return fmt.Errorf("%w: %s reported no success", ErrAPIError, operation)
	}
	return nil
}
