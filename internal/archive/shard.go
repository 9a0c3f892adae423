// Package archive erasure-codes closed ASR batch segments across configured
// backup paths, giving batch durability a second leg beside the SQLite log.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// DefaultDataShards and DefaultParityShards mirror the reference codebase's
// file-distribution defaults: tolerate losing any 2 of 6 fragments.
const (
	DefaultDataShards   = 4
	DefaultParityShards = 2
)

// Shard is one data or parity fragment of an archived batch segment.
type Shard struct {
	Index    int
	Data     []byte
	Checksum string
}

// EncodeSegment splits a closed batch's serialized segment into
// dataShards+parityShards Reed-Solomon fragments.
func EncodeSegment(data []byte, dataShards, parityShards int) ([]Shard, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("archive: new encoder: %w", err)
	}

	raw, err := enc.Split(data)
	if err != nil {
		return nil, fmt.Errorf("archive: split segment: %w", err)
	}
	if err := enc.Encode(raw); err != nil {
		return nil, fmt.Errorf("archive: encode parity: %w", err)
	}

	shards := make([]Shard, len(raw))
	for i, s := range raw {
		sum := sha256.Sum256(s)
		shards[i] = Shard{Index: i, Data: s, Checksum: hex.EncodeToString(sum[:])}
	}
	return shards, nil
}

// ReconstructSegment rebuilds the original segment from available shards.
// Missing shards must be represented as nil at their original index.
func ReconstructSegment(shards [][]byte, dataShards, parityShards, originalSize int) ([]byte, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("archive: new encoder: %w", err)
	}
	if err := enc.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("archive: reconstruct: %w", err)
	}
	ok, err := enc.Verify(shards)
	if err != nil {
		return nil, fmt.Errorf("archive: verify: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("archive: shard verification failed after reconstruction")
	}

	var result []byte
	for i := 0; i < dataShards; i++ {
		result = append(result, shards[i]...)
	}
	if originalSize > len(result) {
		return nil, fmt.Errorf("archive: original size %d exceeds reconstructed length %d", originalSize, len(result))
	}
	return result[:originalSize], nil
}

// VerifyChecksum reports whether shard's stored checksum matches its data.
func VerifyChecksum(s Shard) bool {
	sum := sha256.Sum256(s.Data)
	return hex.EncodeToString(sum[:]) == s.Checksum
}
