package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Token blobs are encrypted with AES-256-GCM before write and decrypted after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable credential storage (reads and writes return ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Replace deletes the provider's current record and inserts rec in a single
// transaction, so readers see either the old token or the new one.
func (r *CredentialRepo) Replace(ctx context.Context, rec model.CredentialRecord) error {
	encrypted, err := r.encrypt(rec.Blob)
	if err != nil {
		return err
	}

	issuedAt := rec.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM api_tokens WHERE provider = ?`, string(rec.Provider)); err != nil {
			return fmt.Errorf("delete token %q: %w", rec.Provider, err)
		}

		const insert = `INSERT INTO api_tokens (provider, issued_at, token_blob) VALUES (?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insert, string(rec.Provider), issuedAt.UTC().Unix(), encrypted); err != nil {
			return fmt.Errorf("insert token %q: %w", rec.Provider, err)
		}
		return nil
	})
}

// Get retrieves and decrypts the record for the given provider.
// Returns (nil, nil) if no record exists.
func (r *CredentialRepo) Get(ctx context.Context, provider model.ProviderID) (*model.CredentialRecord, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT issued_at, token_blob FROM api_tokens WHERE provider = ?`
	var (
		issuedAt  int64
		encrypted string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, string(provider)).Scan(&issuedAt, &encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token %q: %w", provider, err)
	}

	blob, err := r.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt token %q: %w", provider, err)
	}

	return &model.CredentialRecord{
		Provider: provider,
		IssuedAt: time.Unix(issuedAt, 0).UTC(),
		Blob:     blob,
	}, nil
}

// Delete removes the record for the given provider.
func (r *CredentialRepo) Delete(ctx context.Context, provider model.ProviderID) error {
	const query = `DELETE FROM api_tokens WHERE provider = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, string(provider)); err != nil {
		return fmt.Errorf("delete token %q: %w", provider, err)
	}
	return nil
}

// encrypt seals plaintext with AES-256-GCM and returns base64(nonce || ciphertext || tag).
func (r *CredentialRepo) encrypt(plaintext []byte) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt opens a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.aead()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm.Open: %w", err)
	}
	return plaintext, nil
}

func (r *CredentialRepo) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
