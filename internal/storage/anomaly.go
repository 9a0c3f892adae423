package storage

// LogAnomaly records one anomaly-sweep finding and the action taken in response.
func (d *DB) LogAnomaly(agentID, anomalyType, evidence, actionTaken string, createdAt int64) error {
	_, err := d.db.Exec(
		`INSERT INTO anomaly_logs (agent_id, type, evidence, action_taken, created_at) VALUES (?, ?, ?, ?, ?)`,
		agentID, anomalyType, evidence, actionTaken, createdAt,
	)
	return err
}

// AnomalyLogRow mirrors a stored anomaly log row.
type AnomalyLogRow struct {
	ID          int64
	AgentID     string
	Type        string
	Evidence    string
	ActionTaken string
	CreatedAt   int64
}

// ListAnomaliesForAgent returns an agent's anomaly history, newest first.
func (d *DB) ListAnomaliesForAgent(agentID string, limit int) ([]AnomalyLogRow, error) {
	rows, err := d.db.Query(
		`SELECT rowid, agent_id, type, evidence, action_taken, created_at
		 FROM anomaly_logs WHERE agent_id = ? ORDER BY created_at DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnomalyLogRow
	for rows.Next() {
		var r AnomalyLogRow
		if err := rows.Scan(&r.ID, &r.AgentID, &r.Type, &r.Evidence, &r.ActionTaken, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
