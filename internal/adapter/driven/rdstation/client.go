// Package rdstation implements the provider ports against the marketing
// platform's REST API: the OAuth token endpoint, the paginated email listing
// and the email analytics report.
package rdstation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gregjones/httpcache"

	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// requestTimeout bounds a single provider request. The retry after a 401 is
// a separate request with its own budget.
const requestTimeout = 30 * time.Second

// maxErrorBody bounds how much of a failed response body is kept on errors.
const maxErrorBody = 2048

// Compile-time interface satisfaction check.
var _ driven.ProviderClient = (*Client)(nil)

// Client performs authenticated calls against the provider API.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	tokens  driven.TokenSource
}

// Response is the outcome of an authenticated request that reached a 2xx
// status.
type Response struct {
	Status  int
	Payload Payload
}

// NewClient creates a Client whose transport revalidates cached responses
// with ETag/Last-Modified (httpcache) before hitting the network.
func NewClient(baseURL string, tokens driven.TokenSource) (*Client, error) {
	httpClient := httpcache.NewMemoryCacheTransport().Client()
	httpClient.Timeout = requestTimeout
	return NewClientWithHTTPClient(httpClient, baseURL, tokens)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. Tests use it to point the client at an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, tokens driven.TokenSource) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	return &Client{
		http:    httpClient,
		baseURL: u,
		tokens:  tokens,
	}, nil
}

// RequestWithAuth issues a GET for path with the current access token. A 401
// triggers exactly one forced refresh and one retry; whatever the retry
// returns is final. Non-2xx outcomes are returned as *driven.UpstreamHTTPError.
func (c *Client) RequestWithAuth(ctx context.Context, path string, query url.Values) (*Response, error) {
	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, driven.ErrNoValidToken
	}

	status, body, err := c.get(ctx, token, path, query)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		slog.Warn("provider rejected access token, forcing refresh", "path", path)

		token, err = c.tokens.ForceRefresh(ctx)
		if err != nil {
			return nil, err
		}
		if token == "" {
			return nil, driven.ErrNoValidToken
		}

		status, body, err = c.get(ctx, token, path, query)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status > 299 {
		return nil, &driven.UpstreamHTTPError{Status: status, Body: truncate(string(body), maxErrorBody)}
	}

	return &Response{Status: status, Payload: parsePayload(path, body)}, nil
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values) (int, []byte, error) {
	u := *c.baseURL
	u.Path = u.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &driven.NetworkError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &driven.NetworkError{Op: "read " + path, Err: err}
	}

	return resp.StatusCode, body, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
