package storage

// PutNonce records a freshly issued auth nonce.
func (d *DB) PutNonce(nonce, agentID, message string, issuedAt, expiresAt int64) error {
	_, err := d.db.Exec(
		`INSERT INTO nonces (nonce, agent_id, message, issued_at, expires_at, used) VALUES (?, ?, ?, ?, ?, 0)`,
		nonce, agentID, message, issuedAt, expiresAt,
	)
	return err
}

// NonceRecord mirrors a stored nonce row.
type NonceRecord struct {
	Nonce     string
	AgentID   string
	Message   string
	IssuedAt  int64
	ExpiresAt int64
	Used      bool
}

// GetNonce fetches a nonce by value.
func (d *DB) GetNonce(nonce string) (*NonceRecord, error) {
	row := d.db.QueryRow(`SELECT nonce, agent_id, message, issued_at, expires_at, used FROM nonces WHERE nonce = ?`, nonce)
	var n NonceRecord
	var used int
	if err := row.Scan(&n.Nonce, &n.AgentID, &n.Message, &n.IssuedAt, &n.ExpiresAt, &used); err != nil {
		return nil, err
	}
	n.Used = used != 0
	return &n, nil
}

// ConsumeNonce marks a nonce used, failing if it was already consumed. The
// affected-row check makes consumption single-use under concurrent callers.
func (d *DB) ConsumeNonce(nonce string) (bool, error) {
	res, err := d.db.Exec(`UPDATE nonces SET used = 1 WHERE nonce = ? AND used = 0`, nonce)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PruneNonces deletes expired nonce rows.
func (d *DB) PruneNonces(nowMs int64) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM nonces WHERE expires_at < ?`, nowMs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
