package keystore

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pulsar-sentinel/core/internal/pqcrypto"
	"github.com/pulsar-sentinel/core/internal/storage"
)

// wordlist backs the human-readable recovery mnemonic. Chosen from a fixed,
// unambiguous vocabulary so a printed mnemonic survives dictation errors.
var wordlist = []string{
	"shadow", "cipher", "vault", "ember", "frost", "onyx",
	"pulse", "storm", "nexus", "drift", "blade", "forge",
	"echo", "raven", "orbit", "crest", "shard", "flare",
	"glyph", "thorn", "viper", "delta", "wraith", "nova",
	"prism", "surge", "helix", "blaze", "talon", "aegis",
	"flux", "abyss", "zenith", "cobalt", "phantom", "dusk",
	"iron", "spark", "tide", "apex", "rune", "obsidian",
	"lunar", "bolt", "veil", "arc", "pyre", "mirage",
	"sigil", "aurora", "tempest", "crimson", "void", "oracle",
	"basalt", "spectre", "titan", "nether", "axion", "quartz",
	"raptor", "fathom", "vector", "mantis", "pyrite", "scarab",
	"vertex", "warden", "nebula", "carbon", "dynamo", "ether",
	"granite", "hydra", "ivory", "jackal", "krypton", "lancer",
	"magnet", "nitro", "omega", "paladin", "quasar", "reflex",
	"silicon", "turret", "umbra", "vulcan", "xenon", "yarrow",
	"zephyr", "amber", "bronze", "chrome", "device", "enigma",
	"falcon", "garnet", "harbor", "indigo", "jasper", "karma",
	"lithium", "matrix", "neptune", "optic", "plasma", "quantum",
	"reactor", "stealth", "thorium", "ultra", "valiant", "wolfram",
	"anchor", "beacon", "cascade", "daemon", "eclipse", "furnace",
}

// GenerateRecoveryKey produces a fresh 32-byte recovery key and its 6-word
// mnemonic rendering.
func GenerateRecoveryKey() (hexKey string, mnemonic string, err error) {
	entropy := make([]byte, 32)
	if _, err := rand.Read(entropy); err != nil {
		return "", "", fmt.Errorf("keystore: recovery entropy: %w", err)
	}
	hexKey = hex.EncodeToString(entropy)

	words := make([]string, 6)
	for i := 0; i < 6; i++ {
		words[i] = wordlist[int(entropy[i])%len(wordlist)]
	}
	mnemonic = strings.Join(words, " ")
	return hexKey, mnemonic, nil
}

type escrowPayload struct {
	KeyID string `json:"key_id"`
	Salt  []byte `json:"salt"`
}

// CreateEscrow seals a keystore KEK salt under the operator's recovery key,
// so the key material can be re-derived from the passphrase after loss of
// the running KEK, given possession of the recovery key.
func CreateEscrow(recoveryHexKey, keyID string, kekSalt []byte) ([]byte, error) {
	recoveryKey, err := hex.DecodeString(recoveryHexKey)
	if err != nil {
		return nil, fmt.Errorf("keystore: decode recovery key: %w", err)
	}
	payload, err := json.Marshal(escrowPayload{KeyID: keyID, Salt: kekSalt})
	if err != nil {
		return nil, fmt.Errorf("keystore: marshal escrow: %w", err)
	}
	nonce, err := pqcrypto.RandomNonce(pqcrypto.AESGCMNonceLen)
	if err != nil {
		return nil, fmt.Errorf("keystore: escrow nonce: %w", err)
	}
	sealed, err := pqcrypto.SealGCM(recoveryKey, nonce, payload)
	if err != nil {
		return nil, fmt.Errorf("keystore: escrow seal: %w", err)
	}
	return append(nonce, sealed...), nil
}

// RecoverFromEscrow reverses CreateEscrow, given the recovery key and the
// stored escrow blob.
func RecoverFromEscrow(recoveryHexKey string, escrowBlob []byte) (keyID string, kekSalt []byte, err error) {
	recoveryKey, err := hex.DecodeString(recoveryHexKey)
	if err != nil {
		return "", nil, fmt.Errorf("keystore: decode recovery key: %w", err)
	}
	if len(escrowBlob) < pqcrypto.AESGCMNonceLen {
		return "", nil, ErrKeyStoreCorrupted
	}
	nonce := escrowBlob[:pqcrypto.AESGCMNonceLen]
	ciphertext := escrowBlob[pqcrypto.AESGCMNonceLen:]

	plaintext, err := pqcrypto.OpenGCM(recoveryKey, nonce, ciphertext)
	if err != nil {
		return "", nil, fmt.Errorf("keystore: escrow open: %w", err)
	}
	var payload escrowPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return "", nil, fmt.Errorf("keystore: unmarshal escrow: %w", err)
	}
	return payload.KeyID, payload.Salt, nil
}

// IssueEscrow generates a recovery key, seals the given KEK salt under it,
// and persists the escrow record. Returns the mnemonic so the caller can
// hand it to the operator once; it is not stored anywhere.
func (s *Store) IssueEscrow(keyID string, kekSalt []byte) (mnemonic string, err error) {
	hexKey, mnemonic, err := GenerateRecoveryKey()
	if err != nil {
		return "", err
	}
	blob, err := CreateEscrow(hexKey, keyID, kekSalt)
	if err != nil {
		return "", err
	}
	rec := storage.RecoveryEscrowRecord{
		ID:         uuid.NewString(),
		KeyID:      keyID,
		HexKey:     hexKey,
		Mnemonic:   "",
		EscrowBlob: blob,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err := s.db.CreateRecoveryKey(rec.ID, rec.KeyID, rec.HexKey, rec.Mnemonic, rec.EscrowBlob, rec.CreatedAt); err != nil {
		return "", fmt.Errorf("keystore: persist escrow: %w", err)
	}
	return mnemonic, nil
}
