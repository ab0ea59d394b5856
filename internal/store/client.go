// Package store provides a retrying client for the remote SQL-over-HTTP store.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// Sentinel errors for the store package.
var (
	// ErrNoRows is returned by First when the query matches nothing.
	ErrNoRows = errors.New("store: no rows")

	// ErrUnhealthy is returned when the store health check fails.
	ErrUnhealthy = errors.New("store: health check failed")

	// ErrRejected is returned when the store accepts the request but
	// rejects a statement. Retrying cannot help.
	ErrRejected = errors.New("store: statement rejected")
)

// Client talks to the remote store's HTTP query endpoint.
// Writes and reads share one wire shape: POST /query with a SQL statement
// and positional parameters, rows returned as JSON objects.
type Client struct {
	url        string
	token      string
	httpClient *http.Client

	maxAttempts uint
	retryDelay  time.Duration
}

// Config holds configuration for the store client.
type Config struct {
	URL         string
	Token       string
	Timeout     time.Duration // per-request timeout (default: 30s)
	MaxAttempts uint          // total attempts including the first (default: 4)
	RetryDelay  time.Duration // base backoff delay, doubled per attempt (default: 500ms)
}

// NewClient creates a new store client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	return &Client{
		url:   strings.TrimSuffix(cfg.URL, "/"),
		token: cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
	}
}

// Statement is one SQL statement with positional parameters.
type Statement struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// Result is the response to a single statement.
type Result struct {
	Rows []map[string]any `json:"rows,omitempty"`
	Meta Meta             `json:"meta"`
}

// Meta carries write bookkeeping returned by the store.
type Meta struct {
	RowsAffected int64 `json:"rows_affected"`
	LastRowID    int64 `json:"last_row_id,omitempty"`
}

type queryRequest struct {
	Statements []Statement `json:"statements"`
}

type queryResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Results []Result `json:"results"`
}

// httpStatusError marks responses that should abort retrying.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("store error (status %d): %s", e.status, e.body)
}

// retryable reports whether a failed request is worth retrying.
// Transport errors and 5xx/429 retry; other 4xx and statement rejections
// fail fast.
func retryable(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	if errors.Is(err, ErrRejected) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// HealthCheck checks if the remote store is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url+"/health", nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Query executes a single statement and returns its result.
func (c *Client) Query(ctx context.Context, sql string, params ...any) (*Result, error) {
	results, err := c.Batch(ctx, []Statement{{SQL: sql, Params: params}})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("store returned no results for statement")
	}
	return &results[0], nil
}

// First returns the first row of a query, or ErrNoRows.
func (c *Client) First(ctx context.Context, sql string, params ...any) (map[string]any, error) {
	result, err := c.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 {
		return nil, ErrNoRows
	}
	return result.Rows[0], nil
}

// All returns every row of a query. A query matching nothing returns an
// empty slice, not an error.
func (c *Client) All(ctx context.Context, sql string, params ...any) ([]map[string]any, error) {
	result, err := c.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// Run executes a write statement and returns its metadata.
func (c *Client) Run(ctx context.Context, sql string, params ...any) (Meta, error) {
	result, err := c.Query(ctx, sql, params...)
	if err != nil {
		return Meta{}, err
	}
	return result.Meta, nil
}

// Batch executes several statements in one round trip. The remote store
// serializes individual statements but offers no cross-call transactions.
func (c *Client) Batch(ctx context.Context, stmts []Statement) ([]Result, error) {
	if len(stmts) == 0 {
		return nil, nil
	}

	bodyBytes, err := json.Marshal(queryRequest{Statements: stmts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var results []Result
	err = retry.Do(
		func() error {
			var attemptErr error
			results, attemptErr = c.execute(ctx, bodyBytes)
			return attemptErr
		},
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(10*time.Second),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) execute(ctx context.Context, body []byte) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	var qr queryResponse
	if err := json.Unmarshal(respBody, &qr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w (body: %s)", err, string(respBody))
	}
	if !qr.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, qr.Error)
	}

	return qr.Results, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
