package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meddoc/internal/config"
	"meddoc/internal/daemon"
	"meddoc/internal/index"
)

// APIError is a non-2xx answer from the daemon API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon api: %s (status %d)", e.Message, e.StatusCode)
}

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon bound at cfg.Paths.APIBind.
// It returns nil when the API is disabled.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil || strings.TrimSpace(cfg.Paths.APIBind) == "" {
		return nil
	}
	return NewClientForURL("http://"+strings.TrimSpace(cfg.Paths.APIBind), cfg.Paths.APIToken)
}

// NewClientForURL builds a client for an explicit base URL.
func NewClientForURL(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (*daemon.Status, error) {
	var status daemon.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Approve confirms a draft through the daemon so the move, index update and
// wiki regeneration happen in the daemon process.
func (c *Client) Approve(ctx context.Context, id int64) (*index.Record, error) {
	var resp daemon.RecordResponse
	if err := c.do(ctx, http.MethodPost, "/api/records/"+strconv.FormatInt(id, 10)+"/approve", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Record, nil
}

// Edit changes one field of a draft.
func (c *Client) Edit(ctx context.Context, id int64, field, value string) (*index.Record, error) {
	var resp daemon.RecordResponse
	body := daemon.EditRequest{Field: field, Value: value}
	if err := c.do(ctx, http.MethodPatch, "/api/records/"+strconv.FormatInt(id, 10), body, &resp); err != nil {
		return nil, err
	}
	return &resp.Record, nil
}

// Search runs a full-text query against confirmed records.
func (c *Client) Search(ctx context.Context, query string, limit int) (*daemon.SearchResponse, error) {
	values := url.Values{}
	values.Set("q", query)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var resp daemon.SearchResponse
	if err := c.do(ctx, http.MethodGet, "/api/search?"+values.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c == nil {
		return ErrDaemonNotRunning
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDaemonNotRunning)
}
