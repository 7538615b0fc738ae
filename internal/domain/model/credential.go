package model

import "time"

// CredentialRecord is the persisted token set of one provider. Blob is opaque
// outside the provider's own session code.
type CredentialRecord struct {
	Provider ProviderID
	IssuedAt time.Time
	Blob     []byte
}

// TokenSet is the decoded OAuth2 credential of a provider.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	UserID       string
}

// AccessToken is what a remote API call needs to authenticate.
type AccessToken struct {
	Value  string
	UserID string
}
