package pqcrypto

import "errors"

// Error kinds surfaced by decrypt paths. AuthenticationFailure and Malformed
// are deliberately indistinguishable in timing (both simply fail AEAD open
// or length checks before any plaintext is produced).
var (
	ErrMalformed             = errors.New("pqcrypto: malformed input")
	ErrAuthenticationFailure = errors.New("pqcrypto: authentication failed")
	ErrAlgorithmMismatch     = errors.New("pqcrypto: algorithm mismatch")
	ErrStaleKey              = errors.New("pqcrypto: key is stale")
)
