package driven

import (
	"context"

	"github.com/troia/campaignsync/internal/domain/model"
)

// TokenExchanger performs the provider's OAuth token endpoint calls.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code string) (model.TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenGrant, error)
}

// TokenSource hands out access tokens to the provider client.
type TokenSource interface {
	// ValidToken returns an access token that is not about to expire,
	// refreshing first if needed. It returns "", nil when no credential exists.
	ValidToken(ctx context.Context) (string, error)

	// ForceRefresh exchanges the stored refresh token regardless of expiry.
	// It returns "", nil when no credential exists.
	ForceRefresh(ctx context.Context) (string, error)
}

// ProviderClient defines the driven port for the two campaign views the
// provider exposes.
type ProviderClient interface {
	FetchCampaignList(ctx context.Context, pageSize, maxPages int) ([]model.UpstreamEmail, error)
	FetchAnalytics(ctx context.Context, startDate, endDate string) ([]model.UpstreamEmail, error)
}
