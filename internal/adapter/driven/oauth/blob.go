package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// blobVersion is bumped whenever tokenBlob changes shape. Blobs written by a
// different version are treated as absent.
const blobVersion = 1

var errBlobMismatch = errors.New("token blob version or provider mismatch")

// tokenBlob is the serialized form of a provider token set.
type tokenBlob struct {
	Version      int       `json:"version"`
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	UserID       string    `json:"user_id,omitempty"`
}

func encodeBlob(provider model.ProviderID, ts model.TokenSet) ([]byte, error) {
	data, err := json.Marshal(tokenBlob{
		Version:      blobVersion,
		Provider:     string(provider),
		AccessToken:  ts.AccessToken,
		RefreshToken: ts.RefreshToken,
		TokenType:    ts.TokenType,
		Expiry:       ts.Expiry.UTC(),
		UserID:       ts.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s token: %w", provider, err)
	}
	return data, nil
}

func decodeBlob(provider model.ProviderID, data []byte) (model.TokenSet, error) {
	var b tokenBlob
	if err := json.Unmarshal(data, &b); err != nil {
		return model.TokenSet{}, fmt.Errorf("decode %s token: %w", provider, errors.Join(errBlobMismatch, err))
	}
	if b.Version != blobVersion || b.Provider != string(provider) || b.AccessToken == "" {
		return model.TokenSet{}, fmt.Errorf("decode %s token (version %d): %w", provider, b.Version, errBlobMismatch)
	}
	return model.TokenSet{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		TokenType:    b.TokenType,
		Expiry:       b.Expiry,
		UserID:       b.UserID,
	}, nil
}
