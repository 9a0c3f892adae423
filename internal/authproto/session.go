package authproto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pulsar-sentinel/core/internal/pqcrypto"
)

var (
	ErrTokenMalformed = errors.New("authproto: session token malformed")
	ErrTokenExpired   = errors.New("authproto: session token expired")
	ErrTokenInvalid   = errors.New("authproto: session token signature invalid")
)

// DefaultSessionLifetime is the default validity window for an issued
// session token.
const DefaultSessionLifetime = 24 * time.Hour

// SessionToken is a signed, time-bounded bearer credential.
type SessionToken struct {
	AgentID   string
	Role      string
	Tier      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (t *SessionToken) canonicalPayload() string {
	return fmt.Sprintf("%s|%s|%s|%d|%d", t.AgentID, t.Role, t.Tier, t.IssuedAt.UnixMilli(), t.ExpiresAt.UnixMilli())
}

// Issue signs a session token for (agentID, role, tier) under signingKey.
// A zero lifetime selects DefaultSessionLifetime.
func Issue(signingKey []byte, agentID, role, tier string, lifetime time.Duration) string {
	if lifetime == 0 {
		lifetime = DefaultSessionLifetime
	}
	now := time.Now()
	token := &SessionToken{
		AgentID:   agentID,
		Role:      role,
		Tier:      tier,
		IssuedAt:  now,
		ExpiresAt: now.Add(lifetime),
	}
	payload := token.canonicalPayload()
	mac := pqcrypto.HMACSHA256(signingKey, []byte(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + base64.RawURLEncoding.EncodeToString(mac)
}

// Verify checks a token's signature (compared in constant time) and then its
// expiry. Each failure has its own sentinel error: ErrTokenMalformed,
// ErrTokenInvalid or ErrTokenExpired.
func Verify(signingKey []byte, tokenStr string) (*SessionToken, error) {
	parts := strings.SplitN(tokenStr, ".", 2)
	if len(parts) != 2 {
		return nil, ErrTokenMalformed
	}
	payloadRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrTokenMalformed
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrTokenMalformed
	}

	expectedMAC := pqcrypto.HMACSHA256(signingKey, payloadRaw)
	if !pqcrypto.ConstantTimeEqual(expectedMAC, sig) {
		return nil, ErrTokenInvalid
	}

	fields := strings.Split(string(payloadRaw), "|")
	if len(fields) != 5 {
		return nil, ErrTokenMalformed
	}
	issuedMs, err1 := parseInt64(fields[3])
	expiresMs, err2 := parseInt64(fields[4])
	if err1 != nil || err2 != nil {
		return nil, ErrTokenMalformed
	}

	token := &SessionToken{
		AgentID:   fields[0],
		Role:      fields[1],
		Tier:      fields[2],
		IssuedAt:  time.UnixMilli(issuedMs),
		ExpiresAt: time.UnixMilli(expiresMs),
	}
	if time.Now().After(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return token, nil
}

func parseInt64(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
