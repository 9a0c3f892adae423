package storage

// KeyRecord is the persisted form of a keypair: sealed_secret is opaque
// ciphertext (Argon2id-derived KEK, AES-GCM sealed) never returned in the
// clear except to the keystore package's unseal path.
type KeyRecord struct {
	KeyID        string
	Level        int
	PublicKey    []byte
	SealedSecret []byte
	KEKSalt      []byte
	CreatedAt    int64
	Stale        bool
	RotatedTo    string
	RotatedAt    int64
}

// PutKey inserts or replaces a key record.
func (d *DB) PutKey(k *KeyRecord) error {
	_, err := d.db.Exec(
		`INSERT INTO keys (key_id, level, public_key, sealed_secret, kek_salt, created_at, stale, rotated_to, rotated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key_id) DO UPDATE SET stale=excluded.stale, rotated_to=excluded.rotated_to, rotated_at=excluded.rotated_at`,
		k.KeyID, k.Level, k.PublicKey, k.SealedSecret, k.KEKSalt, k.CreatedAt, boolToInt(k.Stale), k.RotatedTo, k.RotatedAt,
	)
	return err
}

// GetKey fetches a key record by id.
func (d *DB) GetKey(keyID string) (*KeyRecord, error) {
	row := d.db.QueryRow(
		`SELECT key_id, level, public_key, sealed_secret, kek_salt, created_at, stale, rotated_to, rotated_at
		 FROM keys WHERE key_id = ?`, keyID)
	var k KeyRecord
	var stale int
	var rotatedTo *string
	if err := row.Scan(&k.KeyID, &k.Level, &k.PublicKey, &k.SealedSecret, &k.KEKSalt, &k.CreatedAt, &stale, &rotatedTo, &k.RotatedAt); err != nil {
		return nil, err
	}
	k.Stale = stale != 0
	if rotatedTo != nil {
		k.RotatedTo = *rotatedTo
	}
	return &k, nil
}

// MarkKeyStale flags a key as stale at rotatedAt, recording which new key
// superseded it. rotatedAt anchors the Hybrid PQC Engine's post-rotation
// decryption grace period.
func (d *DB) MarkKeyStale(keyID, rotatedTo string, rotatedAt int64) error {
	_, err := d.db.Exec(`UPDATE keys SET stale = 1, rotated_to = ?, rotated_at = ? WHERE key_id = ?`, rotatedTo, rotatedAt, keyID)
	return err
}

// CreateRecoveryKey stores a keystore recovery escrow record.
func (d *DB) CreateRecoveryKey(id, keyID, hexKey, mnemonic string, escrowBlob []byte, createdAt int64) error {
	_, err := d.db.Exec(
		`INSERT INTO recovery_keys (id, key_id, hex_key, mnemonic, escrow_blob, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, keyID, hexKey, mnemonic, escrowBlob, createdAt,
	)
	return err
}

// RecoveryEscrowRecord mirrors a stored recovery escrow row.
type RecoveryEscrowRecord struct {
	ID         string
	KeyID      string
	HexKey     string
	Mnemonic   string
	EscrowBlob []byte
	CreatedAt  int64
}

// ListRecoveryKeys returns every escrow record for a given key id.
func (d *DB) ListRecoveryKeys(keyID string) ([]RecoveryEscrowRecord, error) {
	rows, err := d.db.Query(
		`SELECT id, key_id, hex_key, mnemonic, escrow_blob, created_at FROM recovery_keys WHERE key_id = ?`, keyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecoveryEscrowRecord
	for rows.Next() {
		var r RecoveryEscrowRecord
		if err := rows.Scan(&r.ID, &r.KeyID, &r.HexKey, &r.Mnemonic, &r.EscrowBlob, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
