// Package nasa implements ingest.FeedSource against the NASA notification
// API. The upstream delivers a JSON array of loosely-typed alert records; all
// field validation happens later in the registry.
package nasa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/linnemanlabs/skywatch/internal/ingest"
	"github.com/linnemanlabs/skywatch/internal/registry"
)

// maxBodyBytes caps feed responses; a batch larger than this is upstream
// misbehavior, not data.
const maxBodyBytes = 8 << 20

// Client fetches alert batches over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a feed client for the given API base endpoint. The per-run
// deadline comes from the caller's context; the client timeout is only a
// backstop.
func New(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Fetch retrieves one raw alert batch. All failures are *ingest.TransportError.
func (c *Client) Fetch(ctx context.Context, apiKey string) ([]registry.RawAlert, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &ingest.TransportError{Op: "fetch", Err: fmt.Errorf("invalid endpoint: %w", err)}
	}
	u.Path = "/DONKI/notifications"

	q := u.Query()
	q.Set("api_key", apiKey)
	q.Set("type", "all")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &ingest.TransportError{Op: "fetch", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ingest.TransportError{Op: "fetch", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &ingest.TransportError{Op: "read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ingest.TransportError{Op: "auth", Err: fmt.Errorf("feed rejected api key (%d)", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &ingest.TransportError{Op: "fetch", Err: fmt.Errorf("feed returned %d: %s", resp.StatusCode, truncate(body, 256))}
	}

	var raws []registry.RawAlert
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, &ingest.TransportError{Op: "decode", Err: err}
	}
	return raws, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
