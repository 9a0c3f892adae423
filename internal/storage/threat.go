package storage

// RecordThreatEvent appends one sliding-window event for an agent.
func (d *DB) RecordThreatEvent(agentID, kind string, tsMs int64) error {
	_, err := d.db.Exec(`INSERT INTO threat_events (agent_id, kind, ts_ms) VALUES (?, ?, ?)`, agentID, kind, tsMs)
	return err
}

// CountThreatEvents counts events of a kind for an agent within [sinceMs, nowMs].
func (d *DB) CountThreatEvents(agentID, kind string, sinceMs, nowMs int64) (int, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM threat_events WHERE agent_id = ? AND kind = ? AND ts_ms >= ? AND ts_ms <= ?`,
		agentID, kind, sinceMs, nowMs,
	).Scan(&n)
	return n, err
}

// PruneThreatEvents deletes events older than cutoffMs, across all agents.
// Returns the number of rows removed.
func (d *DB) PruneThreatEvents(cutoffMs int64) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM threat_events WHERE ts_ms < ?`, cutoffMs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
