package storage

import "database/sql"

// AgentRecord is the persisted identity row for one agent.
type AgentRecord struct {
	AgentID      string
	Role         string
	Tier         string
	StrikeCount  int
	LastActivity int64
	HeirAddress  string
	Revoked      bool
	LastASRTs    int64
}

// GetAgent fetches an agent by id, or (nil, sql.ErrNoRows) if not present.
func (d *DB) GetAgent(agentID string) (*AgentRecord, error) {
	row := d.db.QueryRow(
		`SELECT agent_id, role, tier, strike_count, last_activity, heir_address, revoked, last_asr_ts
		 FROM agents WHERE agent_id = ?`, agentID)
	var a AgentRecord
	var heir sql.NullString
	var revoked int
	if err := row.Scan(&a.AgentID, &a.Role, &a.Tier, &a.StrikeCount, &a.LastActivity, &heir, &revoked, &a.LastASRTs); err != nil {
		return nil, err
	}
	a.HeirAddress = heir.String
	a.Revoked = revoked != 0
	return &a, nil
}

// UpsertAgent inserts a new agent row, or updates the mutable fields of an
// existing one (role, tier, strikes, activity, heir, revoked status).
func (d *DB) UpsertAgent(a *AgentRecord) error {
	_, err := d.db.Exec(
		`INSERT INTO agents (agent_id, role, tier, strike_count, last_activity, heir_address, revoked, last_asr_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
		   role=excluded.role, tier=excluded.tier, strike_count=excluded.strike_count,
		   last_activity=excluded.last_activity, heir_address=excluded.heir_address,
		   revoked=excluded.revoked, last_asr_ts=excluded.last_asr_ts`,
		a.AgentID, a.Role, a.Tier, a.StrikeCount, a.LastActivity, nullableString(a.HeirAddress), boolToInt(a.Revoked), a.LastASRTs,
	)
	return err
}

// IncrementStrike atomically bumps an agent's strike count and returns the
// new value.
func (d *DB) IncrementStrike(agentID string) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRow(`SELECT strike_count FROM agents WHERE agent_id = ?`, agentID).Scan(&count)
	if err != nil {
		return 0, err
	}
	count++
	if _, err := tx.Exec(`UPDATE agents SET strike_count = ? WHERE agent_id = ?`, count, agentID); err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

// ResetStrikes clears an agent's strike count back to zero.
func (d *DB) ResetStrikes(agentID string) error {
	_, err := d.db.Exec(`UPDATE agents SET strike_count = 0 WHERE agent_id = ?`, agentID)
	return err
}

// ListActiveAgentIDs returns every non-revoked agent id, used by background
// sweeps that need to walk the agent population.
func (d *DB) ListActiveAgentIDs() ([]string, error) {
	rows, err := d.db.Query(`SELECT agent_id FROM agents WHERE revoked = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
