package storage

// ASRRow is the persisted form of one Agent State Record.
type ASRRow struct {
	ASRID       string
	TimestampMs int64
	AgentID     string
	Action      string
	ThreatLevel int
	PQCStatus   string
	MetadataRaw string // canonical metadata encoding
	Signature   string
	BatchID     string // empty until assigned to a batch
}

// InsertASR appends a new record to the durable log. asr_id uniqueness is
// enforced by the UNIQUE constraint on asr_records.asr_id.
func (d *DB) InsertASR(r *ASRRow) error {
	_, err := d.db.Exec(
		`INSERT INTO asr_records (asr_id, timestamp_ms, agent_id, action, threat_level, pqc_status, metadata, signature, batch_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ASRID, r.TimestampMs, r.AgentID, r.Action, r.ThreatLevel, r.PQCStatus, r.MetadataRaw, r.Signature, nullableString(r.BatchID),
	)
	return err
}

// LastTimestampForAgent returns the most recent stored timestamp for an
// agent, or 0 if none exists, used to enforce per-agent monotonicity.
func (d *DB) LastTimestampForAgent(agentID string) (int64, error) {
	var ts int64
	err := d.db.QueryRow(`SELECT COALESCE(MAX(timestamp_ms), 0) FROM asr_records WHERE agent_id = ?`, agentID).Scan(&ts)
	return ts, err
}

// UnbatchedRecords returns records not yet assigned to a batch, oldest first,
// up to limit rows.
func (d *DB) UnbatchedRecords(limit int) ([]ASRRow, error) {
	rows, err := d.db.Query(
		`SELECT asr_id, timestamp_ms, agent_id, action, threat_level, pqc_status, metadata, signature
		 FROM asr_records WHERE batch_id IS NULL ORDER BY seq ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ASRRow
	for rows.Next() {
		var r ASRRow
		if err := rows.Scan(&r.ASRID, &r.TimestampMs, &r.AgentID, &r.Action, &r.ThreatLevel, &r.PQCStatus, &r.MetadataRaw, &r.Signature); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AssignBatch stamps a set of ASR ids with their batch id.
func (d *DB) AssignBatch(batchID string, asrIDs []string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE asr_records SET batch_id = ? WHERE asr_id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range asrIDs {
		if _, err := stmt.Exec(batchID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordsForAgent supports the ASR pipeline's records_for(agent, filter)
// query: time range and minimum threat level, ordered by
// (timestamp asc, asr_id asc).
func (d *DB) RecordsForAgent(agentID string, fromMs, toMs int64, minThreatLevel int) ([]ASRRow, error) {
	rows, err := d.db.Query(
		`SELECT asr_id, timestamp_ms, agent_id, action, threat_level, pqc_status, metadata, signature, COALESCE(batch_id, '')
		 FROM asr_records
		 WHERE agent_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ? AND threat_level >= ?
		 ORDER BY timestamp_ms ASC, asr_id ASC`,
		agentID, fromMs, toMs, minThreatLevel,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ASRRow
	for rows.Next() {
		var r ASRRow
		if err := rows.Scan(&r.ASRID, &r.TimestampMs, &r.AgentID, &r.Action, &r.ThreatLevel, &r.PQCStatus, &r.MetadataRaw, &r.Signature, &r.BatchID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BatchRow is the persisted form of a Merkle batch.
type BatchRow struct {
	BatchID      string
	OpenedAt     int64
	ClosedAt     int64 // 0 if still open
	Root         string
	RecordCount  int
	AnchorState  string
	AnchorTx     string
	AnchorHeight int64
	FailReason   string
}

// InsertBatch creates a new open batch row.
func (d *DB) InsertBatch(batchID string, openedAt int64) error {
	_, err := d.db.Exec(
		`INSERT INTO asr_batches (batch_id, opened_at, record_count, anchor_state) VALUES (?, ?, 0, 'pending')`,
		batchID, openedAt,
	)
	return err
}

// CloseBatch records the closing timestamp, Merkle root, and final record count.
func (d *DB) CloseBatch(batchID string, closedAt int64, root string, count int) error {
	_, err := d.db.Exec(
		`UPDATE asr_batches SET closed_at = ?, root = ?, record_count = ? WHERE batch_id = ?`,
		closedAt, root, count, batchID,
	)
	return err
}

// UpdateAnchorState transitions a batch's anchor_state and associated fields.
func (d *DB) UpdateAnchorState(batchID, state, tx string, height int64, failReason string) error {
	_, err := d.db.Exec(
		`UPDATE asr_batches SET anchor_state = ?, anchor_tx = ?, anchor_height = ?, fail_reason = ? WHERE batch_id = ?`,
		state, nullableString(tx), height, nullableString(failReason), batchID,
	)
	return err
}

// ListPendingAnchorBatches returns closed batches not yet submitted to an
// anchor sink.
func (d *DB) ListPendingAnchorBatches() ([]string, error) {
	rows, err := d.db.Query(
		`SELECT batch_id FROM asr_batches WHERE closed_at IS NOT NULL AND anchor_state = 'pending' ORDER BY closed_at ASC`)
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

// ListSubmittedAnchorBatches returns batches submitted to an anchor sink but
// not yet confirmed, used to drive confirmation polling.
func (d *DB) ListSubmittedAnchorBatches() ([]BatchRow, error) {
	rows, err := d.db.Query(
		`SELECT batch_id, opened_at, COALESCE(closed_at,0), COALESCE(root,''), record_count,
		        anchor_state, COALESCE(anchor_tx,''), COALESCE(anchor_height,0), COALESCE(fail_reason,'')
		 FROM asr_batches WHERE anchor_state = 'submitted'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchRow
	for rows.Next() {
		var b BatchRow
		if err := rows.Scan(&b.BatchID, &b.OpenedAt, &b.ClosedAt, &b.Root, &b.RecordCount,
			&b.AnchorState, &b.AnchorTx, &b.AnchorHeight, &b.FailReason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBatch fetches a batch row by id.
func (d *DB) GetBatch(batchID string) (*BatchRow, error) {
	row := d.db.QueryRow(
		`SELECT batch_id, opened_at, COALESCE(closed_at,0), COALESCE(root,''), record_count,
		        anchor_state, COALESCE(anchor_tx,''), COALESCE(anchor_height,0), COALESCE(fail_reason,'')
		 FROM asr_batches WHERE batch_id = ?`, batchID)
	var b BatchRow
	if err := row.Scan(&b.BatchID, &b.OpenedAt, &b.ClosedAt, &b.Root, &b.RecordCount,
		&b.AnchorState, &b.AnchorTx, &b.AnchorHeight, &b.FailReason); err != nil {
		return nil, err
	}
	return &b, nil
}

// PutProof stores a Merkle inclusion proof for one record.
func (d *DB) PutProof(asrID, batchID string, leafIndex int, pathJSON string) error {
	_, err := d.db.Exec(
		`INSERT INTO asr_proofs (asr_id, batch_id, leaf_index, path_json) VALUES (?, ?, ?, ?)
		 ON CONFLICT(asr_id) DO UPDATE SET batch_id=excluded.batch_id, leaf_index=excluded.leaf_index, path_json=excluded.path_json`,
		asrID, batchID, leafIndex, pathJSON,
	)
	return err
}

// GetProof retrieves a stored proof for a record.
func (d *DB) GetProof(asrID string) (batchID string, leafIndex int, pathJSON string, err error) {
	row := d.db.QueryRow(`SELECT batch_id, leaf_index, path_json FROM asr_proofs WHERE asr_id = ?`, asrID)
	err = row.Scan(&batchID, &leafIndex, &pathJSON)
	return
}
