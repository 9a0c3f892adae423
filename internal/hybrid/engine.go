package hybrid

import (
	"fmt"

	"github.com/pulsar-sentinel/core/internal/pqcrypto"
)

// EncryptHybrid implements the spec's hybrid algorithm: ML-KEM encapsulate
// against the recipient public key, derive an AES key via HKDF, seal under
// AES-256-GCM, and assemble the PSH1 envelope.
func EncryptHybrid(level pqcrypto.Level, keyID string, publicKey []byte, plaintext []byte) ([]byte, error) {
	pub, err := pqcrypto.UnmarshalPublicKey(level, publicKey)
	if err != nil {
		return nil, fmt.Errorf("hybrid: unmarshal public key: %w", err)
	}

	kemCt, shared, err := pqcrypto.Encapsulate(level, pub)
	if err != nil {
		return nil, fmt.Errorf("hybrid: encapsulate: %w", err)
	}
	defer zero(shared)

	aesKey, err := pqcrypto.DeriveAESKey(shared, keyID)
	if err != nil {
		return nil, fmt.Errorf("hybrid: derive aes key: %w", err)
	}
	defer zero(aesKey)

	nonce, err := pqcrypto.RandomNonce(pqcrypto.AESGCMNonceLen)
	if err != nil {
		return nil, fmt.Errorf("hybrid: nonce: %w", err)
	}

	aeadCt, err := pqcrypto.SealGCM(aesKey, nonce, plaintext)
	if err != nil {
		return nil, fmt.Errorf("hybrid: seal: %w", err)
	}

	return encodeHybridEnvelope(level, kemCt, nonce, aeadCt)
}

// DecryptHybrid reverses EncryptHybrid, given the recipient's sealed private
// key bytes. Any GCM authentication failure surfaces uniformly as
// AuthenticationFailure.
func DecryptHybrid(keyID string, privateKey []byte, envelope []byte) ([]byte, error) {
	dec, err := decodeHybridEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	priv, err := pqcrypto.UnmarshalPrivateKey(dec.Level, privateKey)
	if err != nil {
		return nil, fmt.Errorf("hybrid: unmarshal private key: %w", err)
	}

	shared, err := pqcrypto.Decapsulate(dec.Level, priv, dec.KemCt)
	if err != nil {
		return nil, fmt.Errorf("hybrid: decapsulate: %w", err)
	}
	defer zero(shared)

	aesKey, err := pqcrypto.DeriveAESKey(shared, keyID)
	if err != nil {
		return nil, fmt.Errorf("hybrid: derive aes key: %w", err)
	}
	defer zero(aesKey)

	plaintext, err := pqcrypto.OpenGCM(aesKey, dec.Nonce, dec.AeadCt)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
