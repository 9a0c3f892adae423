package storage

// OperatorRecord is a member of the admin Web-of-Trust quorum.
type OperatorRecord struct {
	OperatorID   string
	PublicKey    []byte
	Label        string
	Reputation   float64
	Revoked      bool
	LastSignedAt int64
	CreatedAt    int64
}

// PutOperator inserts or updates an admin operator.
func (d *DB) PutOperator(o *OperatorRecord) error {
	_, err := d.db.Exec(
		`INSERT INTO admin_operators (operator_id, public_key, label, reputation, revoked, last_signed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(operator_id) DO UPDATE SET
		   label=excluded.label, reputation=excluded.reputation, revoked=excluded.revoked, last_signed_at=excluded.last_signed_at`,
		o.OperatorID, o.PublicKey, o.Label, o.Reputation, boolToInt(o.Revoked), o.LastSignedAt, o.CreatedAt,
	)
	return err
}

// GetOperator fetches an operator by id.
func (d *DB) GetOperator(operatorID string) (*OperatorRecord, error) {
	row := d.db.QueryRow(
		`SELECT operator_id, public_key, label, reputation, revoked, last_signed_at, created_at
		 FROM admin_operators WHERE operator_id = ?`, operatorID)
	var o OperatorRecord
	var revoked int
	if err := row.Scan(&o.OperatorID, &o.PublicKey, &o.Label, &o.Reputation, &revoked, &o.LastSignedAt, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Revoked = revoked != 0
	return &o, nil
}

// ListActiveOperators returns every non-revoked operator, for quorum tallying.
func (d *DB) ListActiveOperators() ([]OperatorRecord, error) {
	rows, err := d.db.Query(
		`SELECT operator_id, public_key, label, reputation, revoked, last_signed_at, created_at
		 FROM admin_operators WHERE revoked = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OperatorRecord
	for rows.Next() {
		var o OperatorRecord
		var revoked int
		if err := rows.Scan(&o.OperatorID, &o.PublicKey, &o.Label, &o.Reputation, &revoked, &o.LastSignedAt, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Revoked = revoked != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetOperatorReputation updates an operator's decayed reputation score.
func (d *DB) SetOperatorReputation(operatorID string, reputation float64) error {
	_, err := d.db.Exec(`UPDATE admin_operators SET reputation = ? WHERE operator_id = ?`, reputation, operatorID)
	return err
}

// RevokeOperator marks an operator as no longer trusted.
func (d *DB) RevokeOperator(operatorID string) error {
	_, err := d.db.Exec(`UPDATE admin_operators SET revoked = 1 WHERE operator_id = ?`, operatorID)
	return err
}

// CreateAction opens a new pending governance action awaiting quorum.
func (d *DB) CreateAction(id, kind, payload string, createdAt int64) error {
	_, err := d.db.Exec(
		`INSERT INTO admin_actions (id, kind, payload, quorum_met, created_at) VALUES (?, ?, ?, 0, ?)`,
		id, kind, payload, createdAt,
	)
	return err
}

// AddEndorsement records one operator's signature over a governance action.
// The UNIQUE(action_id, endorser_id) constraint rejects a second endorsement
// from the same operator.
func (d *DB) AddEndorsement(actionID, endorserID, signature string, createdAt int64) error {
	_, err := d.db.Exec(
		`INSERT INTO admin_endorsements (action_id, endorser_id, signature, created_at) VALUES (?, ?, ?, ?)`,
		actionID, endorserID, signature, createdAt,
	)
	return err
}

// CountEndorsements returns how many distinct operators have endorsed an action.
func (d *DB) CountEndorsements(actionID string) (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM admin_endorsements WHERE action_id = ?`, actionID).Scan(&n)
	return n, err
}

// MarkActionApplied flags an action as having met quorum and been applied.
func (d *DB) MarkActionApplied(actionID string, appliedAt int64) error {
	_, err := d.db.Exec(`UPDATE admin_actions SET quorum_met = 1, applied_at = ? WHERE id = ?`, appliedAt, actionID)
	return err
}

// ActionRecord mirrors a stored governance action row.
type ActionRecord struct {
	ID        string
	Kind      string
	Payload   string
	QuorumMet bool
	CreatedAt int64
	AppliedAt int64
}

// GetAction fetches a governance action by id.
func (d *DB) GetAction(actionID string) (*ActionRecord, error) {
	row := d.db.QueryRow(
		`SELECT id, kind, payload, quorum_met, created_at, COALESCE(applied_at,0) FROM admin_actions WHERE id = ?`, actionID)
	var a ActionRecord
	var met int
	if err := row.Scan(&a.ID, &a.Kind, &a.Payload, &met, &a.CreatedAt, &a.AppliedAt); err != nil {
		return nil, err
	}
	a.QuorumMet = met != 0
	return &a, nil
}
