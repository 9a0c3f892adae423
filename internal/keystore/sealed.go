package keystore

import "sync"

// SealedSecret wraps sensitive byte material (a KEM private key, a derived
// AES key) so it cannot be accidentally logged, serialized, or copied out
// without an explicit, single-purpose accessor. Callers MUST call Release
// once the secret is no longer needed.
type SealedSecret struct {
	mu       sync.Mutex
	bytes    []byte
	released bool
}

// Seal wraps raw secret bytes. The caller must not retain other references
// to raw.
func Seal(raw []byte) *SealedSecret {
	return &SealedSecret{bytes: raw}
}

// Use runs fn with the unsealed bytes, holding the secret's lock for the
// duration so concurrent Release cannot race a live use.
func (s *SealedSecret) Use(fn func(raw []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrSecretReleased
	}
	return fn(s.bytes)
}

// Release zeroizes the underlying bytes. Idempotent.
func (s *SealedSecret) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	for i := range s.bytes {
		s.bytes[i] = 0
	}
	s.bytes = nil
	s.released = true
}

// String never reveals secret material, including under %v/%+v formatting.
func (s *SealedSecret) String() string { return "[sealed]" }

// GoString satisfies fmt's %#v hook with the same redaction.
func (s *SealedSecret) GoString() string { return "[sealed]" }

// MarshalJSON refuses to serialize secret material, guarding against an ASR
// metadata bag or log line accidentally capturing a live key.
func (s *SealedSecret) MarshalJSON() ([]byte, error) {
	return nil, ErrSecretNotSerializable
}
