// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/telekom/notion-outreach/pkg/metrics"
)

const (
	DefaultBaseURL    = "https://api.notion.com"
	DefaultAPIVersion = "2022-06-28"
	defaultTimeout    = 30 * time.Second
)

// ErrCircuitOpen is returned while the breaker rejects calls after repeated
// upstream failures.
var ErrCircuitOpen = errors.New("notion: circuit breaker open")

// APIError is a non-2xx answer from the Notion API.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion request failed (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("notion request failed (%d %s): %s", e.StatusCode, e.Code, e.Message)
}

// Unauthorized reports whether the integration token was rejected or the
// integration was not invited to the database.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden ||
		e.Code == "object_not_found"
}

// Client talks to the Notion REST API. Queries go through a circuit breaker;
// there are no retries.
type Client struct {
	http       *resty.Client
	breaker    *gobreaker.CircuitBreaker[*resty.Response]
	baseURL    string
	token      string
	apiVersion string
	timeout    time.Duration
	userAgent  string
	log        *zap.SugaredLogger
}

type Option func(*Client) error

// New creates a client. WithToken is required.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiVersion: DefaultAPIVersion,
		timeout:    defaultTimeout,
		userAgent:  "notion-outreach",
		log:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.token == "" {
		return nil, errors.New("notion token is required")
	}

	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetAuthToken(c.token).
		SetHeader("Notion-Version", c.apiVersion).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", c.userAgent).
		SetTimeout(c.timeout).
		SetLogger(c.log)

	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
			Name:        "notion",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.log.Warnw("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return c, nil
}

func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		if raw == "" {
			return nil
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid notion base URL: %w", err)
		}
		c.baseURL = raw
		return nil
	}
}

func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

func WithAPIVersion(v string) Option {
	return func(c *Client) error {
		if v != "" {
			c.apiVersion = v
		}
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d > 0 {
			c.timeout = d
		}
		return nil
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		if ua != "" {
			c.userAgent = ua
		}
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log.Named("notion")
		}
		return nil
	}
}

// WithBreakerSettings replaces the default circuit breaker.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) error {
		c.breaker = gobreaker.NewCircuitBreaker[*resty.Response](st)
		return nil
	}
}

// QueryDatabase runs one database query and returns a single page of results.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q QueryRequest) (*QueryResponse, error) {
	if databaseID == "" {
		return nil, errors.New("database id is required")
	}
	var out QueryResponse
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("database_id", databaseID).
		SetBody(q).
		SetResult(&out)

	if err := c.do(req, http.MethodPost, "/v1/databases/{database_id}/query", "query", true); err != nil {
		return nil, err
	}
	c.log.Debugw("Database queried", "database", databaseID, "results", len(out.Results), "hasMore", out.HasMore)
	return &out, nil
}

// UpdatePage patches the given properties of a page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]PropertyValue) error {
	if pageID == "" {
		return errors.New("page id is required")
	}
	if len(properties) == 0 {
		return errors.New("no properties to update")
	}
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("page_id", pageID).
		SetBody(updatePageRequest{Properties: properties})

	// Updates bypass the breaker: the email is already out, so the patch is
	// always attempted.
	return c.do(req, http.MethodPatch, "/v1/pages/{page_id}", "update_page", false)
}

func (c *Client) do(req *resty.Request, method, path, operation string, guarded bool) error {
	req.SetError(&APIError{})

	execute := func() (*resty.Response, error) {
		r, err := req.Execute(method, path)
		if err != nil {
			return r, err
		}
		if r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode())
		}
		return r, nil
	}

	var resp *resty.Response
	var err error
	if guarded {
		resp, err = c.breaker.Execute(execute)
	} else {
		resp, err = execute()
	}

	if resp != nil && resp.IsError() {
		metrics.NotionRequests.WithLabelValues(operation, "error").Inc()
		return apiError(resp)
	}
	if err != nil {
		metrics.NotionRequests.WithLabelValues(operation, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s: %w", operation, ErrCircuitOpen)
		}
		return fmt.Errorf("notion %s: %w", operation, err)
	}
	metrics.NotionRequests.WithLabelValues(operation, "success").Inc()
	return nil
}

func apiError(resp *resty.Response) error {
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{}
	}
	// resty only decodes error bodies declared as JSON.
	if apiErr.Message == "" && len(resp.Body()) > 0 {
		_ = json.Unmarshal(resp.Body(), apiErr)
	}
	if apiErr.StatusCode == 0 {
		apiErr.StatusCode = resp.StatusCode()
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status()
	}
	return apiErr
}
