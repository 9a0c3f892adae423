package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store writes erasure-coded batch segments to a set of configured backup
// paths, one shard file per path (round-robined if there are more shards
// than paths).
type Store struct {
	paths        []string
	dataShards   int
	parityShards int
}

// NewStore builds an archive store targeting the given backup directories.
func NewStore(paths []string, dataShards, parityShards int) *Store {
	return &Store{paths: paths, dataShards: dataShards, parityShards: parityShards}
}

type shardManifest struct {
	BatchID      string   `json:"batch_id"`
	DataShards   int      `json:"data_shards"`
	ParityShards int      `json:"parity_shards"`
	OriginalSize int      `json:"original_size"`
	Checksums    []string `json:"checksums"`
}

// ArchiveBatchSegment encodes a closed batch's serialized segment and writes
// its shards across the store's backup paths, alongside a manifest recording
// shard checksums and layout for later reconstruction.
func (s *Store) ArchiveBatchSegment(batchID string, segment []byte) error {
	if len(s.paths) == 0 {
		return fmt.Errorf("archive: no backup paths configured")
	}

	shards, err := EncodeSegment(segment, s.dataShards, s.parityShards)
	if err != nil {
		return fmt.Errorf("archive: encode batch %s: %w", batchID, err)
	}

	manifest := shardManifest{
		BatchID:      batchID,
		DataShards:   s.dataShards,
		ParityShards: s.parityShards,
		OriginalSize: len(segment),
	}

	for i, shard := range shards {
		dir := s.paths[i%len(s.paths)]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("archive: mkdir %s: %w", dir, err)
		}
		shardPath := filepath.Join(dir, fmt.Sprintf("%s.shard%d", batchID, shard.Index))
		if err := os.WriteFile(shardPath, shard.Data, 0o644); err != nil {
			return fmt.Errorf("archive: write shard %d: %w", shard.Index, err)
		}
		manifest.Checksums = append(manifest.Checksums, shard.Checksum)
	}

	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(s.paths[0], fmt.Sprintf("%s.manifest.json", batchID))
	if err := os.WriteFile(manifestPath, manifestBytes, 0o644); err != nil {
		return fmt.Errorf("archive: write manifest: %w", err)
	}
	return nil
}

// RestoreBatchSegment reconstructs a previously archived segment from
// whatever backup paths are still readable.
func (s *Store) RestoreBatchSegment(batchID string) ([]byte, error) {
	manifestPath := filepath.Join(s.paths[0], fmt.Sprintf("%s.manifest.json", batchID))
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("archive: read manifest: %w", err)
	}
	var manifest shardManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("archive: parse manifest: %w", err)
	}

	total := manifest.DataShards + manifest.ParityShards
	shards := make([][]byte, total)
	for i := 0; i < total; i++ {
		dir := s.paths[i%len(s.paths)]
		shardPath := filepath.Join(dir, fmt.Sprintf("%s.shard%d", batchID, i))
		data, err := os.ReadFile(shardPath)
		if err != nil {
			continue // missing shard, left nil for reconstruction
		}
		if i < len(manifest.Checksums) && !VerifyChecksum(Shard{Data: data, Checksum: manifest.Checksums[i]}) {
			continue // corrupted shard, treat as missing
		}
		shards[i] = data
	}

	return ReconstructSegment(shards, manifest.DataShards, manifest.ParityShards, manifest.OriginalSize)
}
