package storage

// IncrementRateWindow atomically bumps the request counter for
// (agentID, minuteBucket) and returns the new count. The fixed-window
// counter resets naturally at the next minute boundary because it keys on
// the bucket number.
func (d *DB) IncrementRateWindow(agentID string, minuteBucket int64) (int, error) {
	_, err := d.db.Exec(
		`INSERT INTO rate_windows (agent_id, minute_bucket, count) VALUES (?, ?, 1)
		 ON CONFLICT(agent_id, minute_bucket) DO UPDATE SET count = count + 1`,
		agentID, minuteBucket,
	)
	if err != nil {
		return 0, err
	}
	var count int
	err = d.db.QueryRow(`SELECT count FROM rate_windows WHERE agent_id = ? AND minute_bucket = ?`, agentID, minuteBucket).Scan(&count)
	return count, err
}

// PruneRateWindows deletes rate-window rows older than the given bucket,
// bounding table growth.
func (d *DB) PruneRateWindows(beforeBucket int64) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM rate_windows WHERE minute_bucket < ?`, beforeBucket)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
