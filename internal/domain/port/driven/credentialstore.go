package driven

import (
	"context"

	"github.com/troia/campaignsync/internal/domain/model"
)

// CredentialStore defines the driven port for the singleton OAuth credential.
type CredentialStore interface {
	// Get returns the stored credential, or nil, nil if none has been saved.
	Get(ctx context.Context) (*model.Credential, error)

	// Save atomically replaces the singleton credential and stamps UpdatedAt.
	Save(ctx context.Context, cred model.Credential) error
}
