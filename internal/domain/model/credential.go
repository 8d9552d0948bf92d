package model

import "time"

// Credential is the singleton OAuth credential for the marketing provider.
// ExpiresAt is the absolute expiry of AccessToken in epoch seconds.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	UpdatedAt    time.Time
}

// ExpiresWithin reports whether the access token expires less than margin
// after now.
func (c Credential) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return c.ExpiresAt-now.Unix() < int64(margin/time.Second)
}

// TokenGrant is the provider's answer to an authorization-code or
// refresh-token exchange. ExpiresIn is relative, in seconds.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// CredentialSummary is the non-secret view of the credential exposed to the
// diagnostics surface.
type CredentialSummary struct {
	Present   bool
	ExpiresAt time.Time
	UpdatedAt time.Time
	Expired   bool
}
