// Package authproto implements the wallet-signature auth protocol: nonce
// issuance, secp256k1 signature verification, and HMAC-signed session
// tokens.
package authproto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/internal/storage"
)

var (
	ErrNonceExpired = errors.New("authproto: nonce expired")
	ErrNonceUsed    = errors.New("authproto: nonce already used")
	ErrNonceUnknown = errors.New("authproto: nonce not found")
)

// DefaultNonceLifetime is the window during which an issued nonce may be
// redeemed.
const DefaultNonceLifetime = 5 * time.Minute

// IssuedNonce is the response to a nonce issuance request.
type IssuedNonce struct {
	Nonce     string
	Message   string
	ExpiresAt time.Time
}

// renderMessage builds the fixed template an agent must sign, embedding the
// agent id, nonce, and issuance time.
func renderMessage(agentID, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf("pulsar-sentinel:auth:%s:%s:%d", agentID, nonce, issuedAt.UnixMilli())
}

// IssueNonce mints and persists a fresh single-use nonce for agentID.
func IssueNonce(db *storage.DB, agentID string, lifetime time.Duration) (*IssuedNonce, error) {
	if lifetime <= 0 {
		lifetime = DefaultNonceLifetime
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("authproto: generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(raw)

	issuedAt := time.Now()
	expiresAt := issuedAt.Add(lifetime)
	message := renderMessage(agentID, nonce, issuedAt)

	if err := db.PutNonce(nonce, agentID, message, issuedAt.UnixMilli(), expiresAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("authproto: persist nonce: %w", err)
	}

	return &IssuedNonce{Nonce: nonce, Message: message, ExpiresAt: expiresAt}, nil
}
