// Package domain defines credential identities linked to a user account.
package domain

import "time"

// Identity is one way a user can authenticate. Local identities carry an
// Argon2id password hash; federated ones carry only the provider's subject.
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string
	PasswordHash string
	CreatedAt    time.Time
}

// IdentityProvider names the credential source.
type IdentityProvider string

const (
	IdentityProviderLocal IdentityProvider = "local"
	IdentityProviderOIDC  IdentityProvider = "oidc"
)
