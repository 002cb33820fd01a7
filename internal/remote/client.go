// Package remote is an EntryStore backed by a runlog API's /api/data endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/runlog/internal/domain"
)

// Client talks to GET/POST /api/data.
type Client struct {
	baseURL    string
	dataKey    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithDataKey sends key in the x-data-key header.
func WithDataKey(key string) Option {
	return func(c *Client) {
		c.dataKey = key
	}
}

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient constructs a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches the canonical snapshot. The version comes from the ETag.
func (c *Client) Load(ctx context.Context) (domain.Snapshot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("GET /api/data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Snapshot{}, statusError(resp)
	}

	var snap domain.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap = snap.Normalize()
	snap.Version = parseETag(resp.Header.Get("ETag"))
	return snap, nil
}

// Save posts snap as a delta guarded by If-Match on snap.Version, so the server
// refuses it when another writer saved since snap was loaded. The server merges
// by day, so a full snapshot round-trips unchanged. A 409 maps to
// domain.ErrVersionConflict.
func (c *Client) Save(ctx context.Context, snap domain.Snapshot, _ domain.Mutation) (domain.Snapshot, error) {
	body, err := json.Marshal(snap.Normalize())
	if err != nil {
		return domain.Snapshot{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, bytes.NewReader(body))
	if err != nil {
		return domain.Snapshot{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-Match", `"`+strconv.FormatInt(snap.Version, 10)+`"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("POST /api/data: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return domain.Snapshot{}, domain.ErrVersionConflict
	case resp.StatusCode == http.StatusBadRequest:
		return domain.Snapshot{}, fmt.Errorf("%w: %v", domain.ErrValidation, statusError(resp))
	case resp.StatusCode != http.StatusOK:
		return domain.Snapshot{}, statusError(resp)
	}

	var result struct {
		Success bool  `json:"success"`
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode submit response: %w", err)
	}
	if !result.Success {
		return domain.Snapshot{}, fmt.Errorf("POST /api/data: server reported failure")
	}

	saved := snap.Normalize()
	saved.Version = result.Version
	return saved, nil
}

func (c *Client) newRequest(ctx context.Context, method string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/data", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.dataKey != "" {
		req.Header.Set("x-data-key", c.dataKey)
	}
	return req, nil
}

func parseETag(etag string) int64 {
	etag = strings.TrimPrefix(strings.TrimSpace(etag), "W/")
	v, err := strconv.ParseInt(strings.Trim(etag, `"`), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func statusError(resp *http.Response) error {
	var problem struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &problem) == nil && problem.Detail != "" {
		return fmt.Errorf("%s %s: %d %s: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, problem.Type, problem.Detail)
	}
	return fmt.Errorf("%s %s: %d %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(data)))
}
