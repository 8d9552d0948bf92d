package rdstation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/troia/campaignsync/internal/domain/model"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// defaultExpiresIn is assumed when the token endpoint omits expires_in.
const defaultExpiresIn = 3600

// Compile-time interface satisfaction check.
var _ driven.TokenExchanger = (*OAuthClient)(nil)

// OAuthClient talks to the provider's authorization endpoints. The token
// endpoint takes a JSON body rather than the form encoding of RFC 6749, so
// oauth2.Config only supplies the endpoint URLs and the authorize redirect.
type OAuthClient struct {
	cfg  *oauth2.Config
	http *http.Client
}

// NewOAuthClient creates an OAuthClient for the given API root and app
// credentials. A nil httpClient uses http.DefaultClient.
func NewOAuthClient(baseURL, clientID, clientSecret, redirectURI string, httpClient *http.Client) *OAuthClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := strings.TrimRight(baseURL, "/")

	return &OAuthClient{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/auth/dialog",
				TokenURL: base + "/auth/token",
			},
		},
		http: httpClient,
	}
}

// AuthCodeURL returns the URL the operator is redirected to in order to grant
// access. state may be empty.
func (c *OAuthClient) AuthCodeURL(state string) string {
	return c.cfg.AuthCodeURL(state)
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ExchangeCode trades an authorization code for the first token pair.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (model.TokenGrant, error) {
	return c.token(ctx, tokenRequest{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURI:  c.cfg.RedirectURL,
		Code:         code,
	})
}

// Refresh trades a refresh token for a new token pair. Failures are not
// retried here.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (model.TokenGrant, error) {
	return c.token(ctx, tokenRequest{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RefreshToken: refreshToken,
	})
}

func (c *OAuthClient) token(ctx context.Context, body tokenRequest) (model.TokenGrant, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return model.TokenGrant{}, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return model.TokenGrant{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.TokenGrant{}, &driven.NetworkError{Op: "POST /auth/token", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.TokenGrant{}, &driven.NetworkError{Op: "read /auth/token", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.TokenGrant{}, &driven.UpstreamHTTPError{Status: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return model.TokenGrant{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return model.TokenGrant{}, errors.New("token response has no access_token")
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = defaultExpiresIn
	}

	return model.TokenGrant{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}
