package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Params carries the per-request options of Request.
type Params struct {
	// Query is appended to the URL.
	Query url.Values

	// IfModifiedSince is sent verbatim as the If-Modified-Since header.
	// Xero treats it as a "modified after" filter.
	IfModifiedSince string

	// NoCache bypasses the response cache for GET requests.
	NoCache bool
}

// Request sends one request to path (relative to the base URL) and decodes
// the JSON answer into out. body, when non-nil, is JSON-encoded. params may
// be nil. Failures are *RemoteError values, possibly wrapped by
// ErrRetryExhausted. A request refused by the rate limiter is a
// *RemoteError of class ErrorClassRateLimit wrapping ErrRequestBlocked.
func (c *Client) Request(ctx context.Context, method, path string, params *Params, body, out any) error {
	if params == nil {
		params = &Params{}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, params.Query), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if params.IfModifiedSince != "" {
		req.Header.Set("If-Modified-Since", params.IfModifiedSince)
	}

	cacheable := method == http.MethodGet && params.IfModifiedSince == "" && !params.NoCache
	resp, err := c.do(req, cacheable)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}

	return nil
}

// Raw fetches path and returns the undecoded body, e.g. attachment content.
// It never uses the cache.
func (c *Client) Raw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path, nil), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.do(req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	return data, nil
}

// Invalidate drops every cached response of path and the paths below it.
func (c *Client) Invalidate(ctx context.Context, path string) error {
	if c.cache == nil {
		return nil
	}

	n, err := c.cache.DeleteEndpoint(ctx, c.config.TenantID, path)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", path, err)
	}

	c.logger.Debug().Str("endpoint", path).Int("keys", n).Msg("Cache invalidated")
	return nil
}

// url joins path onto the base URL. path is taken as already escaped, so
// callers escape identifiers with url.PathEscape.
func (c *Client) url(path string, query url.Values) string {
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + "/" + strings.TrimLeft(path, "/")
	if p, err := url.PathUnescape(u.RawPath); err == nil {
		u.Path = p
	} else {
		u.Path, u.RawPath = c.baseURL.Path+"/"+strings.TrimLeft(path, "/"), ""
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
