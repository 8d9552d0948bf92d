package rdstation_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troia/campaignsync/internal/adapter/driven/rdstation"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// fakeTokens is a TokenSource that hands out a fixed token and counts forced
// refreshes.
type fakeTokens struct {
	mu         sync.Mutex
	token      string
	refreshed  string
	refreshErr error
	validErr   error
	refreshes  int
}

func (f *fakeTokens) ValidToken(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.validErr
}

func (f *fakeTokens) ForceRefresh(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.token = f.refreshed
	return f.refreshed, nil
}

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler, tokens driven.TokenSource) *rdstation.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := rdstation.NewClientWithHTTPClient(server.Client(), server.URL, tokens)
	require.NoError(t, err)

	return client
}

func TestRequestWithAuth_SendsBearerToken(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	tokens := &fakeTokens{token: "tok-1"}
	client := newTestClient(t, handler, tokens)

	resp, err := client.RequestWithAuth(context.Background(), "/platform/emails", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.False(t, resp.Payload.IsRaw())
	assert.Equal(t, 0, tokens.refreshes)
}

func TestRequestWithAuth_RetriesOnceAfter401(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"emails":[]}`))
	})

	tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
	client := newTestClient(t, handler, tokens)

	resp, err := client.RequestWithAuth(context.Background(), "/platform/analytics/emails", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, tokens.refreshes)
	assert.Equal(t, 2, calls)
}

func TestRequestWithAuth_SecondFailureIsFinal(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`revoked`))
	})

	tokens := &fakeTokens{token: "stale", refreshed: "also-bad"}
	client := newTestClient(t, handler, tokens)

	_, err := client.RequestWithAuth(context.Background(), "/platform/emails", nil)
	require.Error(t, err)

	var httpErr *driven.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Equal(t, "revoked", httpErr.Body)
	assert.Equal(t, 1, tokens.refreshes)
	assert.Equal(t, 2, calls)
}

func TestRequestWithAuth_NoCredential(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected without a token")
	})

	client := newTestClient(t, handler, &fakeTokens{})

	_, err := client.RequestWithAuth(context.Background(), "/platform/emails", nil)
	require.ErrorIs(t, err, driven.ErrNoValidToken)
}

func TestRequestWithAuth_RefreshErrorPropagates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	refreshErr := &driven.NetworkError{Op: "POST /auth/token", Err: errors.New("connection reset")}
	client := newTestClient(t, handler, &fakeTokens{token: "stale", refreshErr: refreshErr})

	_, err := client.RequestWithAuth(context.Background(), "/platform/emails", nil)
	var netErr *driven.NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestRequestWithAuth_ServerErrorNotRetried(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	})

	tokens := &fakeTokens{token: "tok"}
	client := newTestClient(t, handler, tokens)

	_, err := client.RequestWithAuth(context.Background(), "/platform/emails", nil)
	var httpErr *driven.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, tokens.refreshes)
}

func TestRequestWithAuth_ErrorBodyTruncatedOnRuneBoundary(t *testing.T) {
	body := "a" + strings.Repeat("é", 2000)
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(body))
	})

	client := newTestClient(t, handler, &fakeTokens{token: "tok"})

	_, err := client.RequestWithAuth(context.Background(), "/platform/emails", nil)
	var httpErr *driven.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.True(t, utf8.ValidString(httpErr.Body))
	assert.True(t, strings.HasSuffix(httpErr.Body, "é..."))
	assert.Less(t, len(httpErr.Body), len(body))
	assert.LessOrEqual(t, len(httpErr.Body), 2048+len("..."))
}

func TestRequestWithAuth_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := rdstation.NewClientWithHTTPClient(http.DefaultClient, url, &fakeTokens{token: "tok"})
	require.NoError(t, err)

	_, err = client.RequestWithAuth(context.Background(), "/platform/emails", nil)
	var netErr *driven.NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestRequestWithAuth_NonJSONBodyDegradesToRaw(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	client := newTestClient(t, handler, &fakeTokens{token: "tok"})

	resp, err := client.RequestWithAuth(context.Background(), "/platform/emails", nil)
	require.NoError(t, err)
	assert.True(t, resp.Payload.IsRaw())
	assert.Equal(t, "<html>maintenance</html>", resp.Payload.Raw)
}
