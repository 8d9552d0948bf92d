package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/troia/campaignsync/internal/domain/model"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// RefreshMargin is how long before expiry an access token stops being handed
// out and is refreshed instead.
const RefreshMargin = 5 * time.Minute

// refreshKey is the single-flight key for the singleton credential.
const refreshKey = "credential"

// Compile-time interface satisfaction check.
var _ driven.TokenSource = (*TokenService)(nil)

// TokenService manages the lifecycle of the singleton OAuth credential.
// Refreshes are collapsed through a single-flight group, so concurrent
// callers that observe an expiring token share one exchange.
type TokenService struct {
	store     driven.CredentialStore
	exchanger driven.TokenExchanger
	refreshes singleflight.Group
	now       func() time.Time
}

// NewTokenService creates a TokenService with the required dependencies.
func NewTokenService(store driven.CredentialStore, exchanger driven.TokenExchanger) *TokenService {
	return &TokenService{
		store:     store,
		exchanger: exchanger,
		now:       time.Now,
	}
}

// ValidToken returns the stored access token while it is more than
// RefreshMargin from expiry, and a freshly refreshed one otherwise.
// It returns "", nil when no credential has been saved yet.
func (s *TokenService) ValidToken(ctx context.Context) (string, error) {
	cred, err := s.store.Get(ctx)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", nil
	}

	if !cred.ExpiresWithin(s.now(), RefreshMargin) {
		return cred.AccessToken, nil
	}

	slog.Info("provider token expiring, refreshing", "expires_at", time.Unix(cred.ExpiresAt, 0).UTC())
	return s.refresh(ctx)
}

// ForceRefresh exchanges the stored refresh token without looking at the
// expiry. It is used when the provider rejects a token believed valid.
func (s *TokenService) ForceRefresh(ctx context.Context) (string, error) {
	return s.refresh(ctx)
}

func (s *TokenService) refresh(ctx context.Context) (string, error) {
	v, err, shared := s.refreshes.Do(refreshKey, func() (any, error) {
		// Re-read so a refresh that completed while we waited is not
		// followed by an exchange of an already-rotated refresh token.
		cred, err := s.store.Get(ctx)
		if err != nil {
			return "", err
		}
		if cred == nil {
			return "", nil
		}

		grant, err := s.exchanger.Refresh(ctx, cred.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("refresh provider token: %w", err)
		}
		if grant.RefreshToken == "" {
			grant.RefreshToken = cred.RefreshToken
		}

		if err := s.SaveCredential(ctx, grant.AccessToken, grant.RefreshToken, grant.ExpiresIn); err != nil {
			return "", err
		}
		return grant.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	if shared {
		slog.Debug("provider token refresh shared with concurrent caller")
	}
	return v.(string), nil
}

// SaveCredential replaces the singleton credential, computing the absolute
// expiry as now + expiresIn seconds.
func (s *TokenService) SaveCredential(ctx context.Context, accessToken, refreshToken string, expiresIn int64) error {
	now := s.now()
	cred := model.Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Unix() + expiresIn,
		UpdatedAt:    now,
	}
	if err := s.store.Save(ctx, cred); err != nil {
		return err
	}
	slog.Info("provider credential saved", "expires_at", time.Unix(cred.ExpiresAt, 0).UTC())
	return nil
}

// Authorize completes the OAuth flow by exchanging an authorization code and
// saving the resulting credential.
func (s *TokenService) Authorize(ctx context.Context, code string) error {
	grant, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return s.SaveCredential(ctx, grant.AccessToken, grant.RefreshToken, grant.ExpiresIn)
}
