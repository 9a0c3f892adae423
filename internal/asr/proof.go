package asr

import (
	"encoding/json"

	"github.com/pulsar-sentinel/core/internal/storage"
)

// encodeProofPath serializes a proof path for storage. JSON is adequate
// here: proofs are read back only for verification, never canonicalized or
// signed.
func encodeProofPath(path []ProofStep) string {
	raw, err := json.Marshal(path)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeProofPath(raw string) ([]ProofStep, error) {
	var path []ProofStep
	if err := json.Unmarshal([]byte(raw), &path); err != nil {
		return nil, err
	}
	return path, nil
}

// VerifyStored fetches asrID's persisted proof and its batch root, and
// checks signature (the record's leaf hash) against them.
func VerifyStored(db *storage.DB, asrID, signature string) (bool, error) {
	batchID, _, pathJSON, err := db.GetProof(asrID)
	if err != nil {
		return false, err
	}
	path, err := decodeProofPath(pathJSON)
	if err != nil {
		return false, err
	}
	batch, err := db.GetBatch(batchID)
	if err != nil {
		return false, err
	}
	return VerifyProof(signature, path, batch.Root), nil
}
