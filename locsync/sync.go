package locsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Install creates the log and sequence tables and the change-log triggers
// for a shadow table on the upstream database.
func Install(ctx context.Context, db *sql.DB, shadowTable string) error {
	stmts := append([]string{LogTableDDL(""), SeqTableDDL("")}, SQLiteShadowLogTriggers(shadowTable, "", "")...)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("locsync: install %s: %w", shadowTable, err)
		}
	}
	return nil
}

// ReadLog returns up to limit log entries of a dataset/shadow pair with an
// SCN greater than after, in SCN order.
func ReadLog(ctx context.Context, db *sql.DB, datasetID, shadowTable string, after int64, limit int) ([]LogEntry, error) {
	var out []LogEntry
	err := sqlx.NewDb(db, "sqlite3").SelectContext(ctx, &out, `SELECT dataset_id, shadow_table, scn, op, document_id, payload, created_at
FROM `+DefaultLogTable+`
WHERE dataset_id = ? AND shadow_table = ? AND scn > ?
ORDER BY scn
LIMIT ?`, datasetID, shadowTable, after, limit)
	return out, err
}

// State returns the replica's sync state; LastSCN is 0 before the first run.
func State(ctx context.Context, db *sql.DB, datasetID, shadowTable string) (SyncState, error) {
	x := sqlx.NewDb(db, "sqlite3")
	if _, err := x.ExecContext(ctx, StateTableDDL()); err != nil {
		return SyncState{}, err
	}
	var states []SyncState
	if err := x.SelectContext(ctx, &states, `SELECT dataset_id, shadow_table, last_scn, updated_at FROM `+StateTable+` WHERE dataset_id = ? AND shadow_table = ?`, datasetID, shadowTable); err != nil {
		return SyncState{}, err
	}
	if len(states) == 0 {
		return SyncState{DatasetID: datasetID, ShadowTable: shadowTable}, nil
	}
	return states[0], nil
}

// Replicate applies upstream log entries past the replica's last SCN to the
// replica shadow table, batch by batch, each batch in one transaction with
// its state update. It returns the number of entries applied.
func Replicate(ctx context.Context, upstream, replica *sql.DB, cfg Config) (int, error) {
	if cfg.DatasetID == "" || cfg.ShadowTable == "" {
		return 0, fmt.Errorf("locsync: dataset and shadow table are required")
	}
	state, err := State(ctx, replica, cfg.DatasetID, cfg.ShadowTable)
	if err != nil {
		return 0, err
	}
	applied := 0
	for {
		entries, err := ReadLog(ctx, upstream, cfg.DatasetID, cfg.ShadowTable, state.LastSCN, cfg.batchSize())
		if err != nil {
			return applied, err
		}
		if len(entries) == 0 {
			return applied, nil
		}
		if err := apply(ctx, replica, cfg, entries); err != nil {
			return applied, err
		}
		applied += len(entries)
		state.LastSCN = entries[len(entries)-1].SCN
	}
}

func apply(ctx context.Context, db *sql.DB, cfg Config, entries []LogEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	table := cfg.replicaTable()
	for _, e := range entries {
		var r Row
		if err := json.Unmarshal(e.Payload, &r); err != nil {
			return fmt.Errorf("locsync: scn %d: %w", e.SCN, err)
		}
		switch e.Op {
		case "insert", "update":
			_, err = tx.ExecContext(ctx, `INSERT INTO `+table+`(dataset_id, id, formula) VALUES (?, ?, ?)
ON CONFLICT(dataset_id, id) DO UPDATE SET formula = excluded.formula`, r.DatasetID, r.ID, r.Formula)
		case "delete":
			_, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE dataset_id = ? AND id = ?`, r.DatasetID, r.ID)
		default:
			err = fmt.Errorf("locsync: scn %d: unknown op %q", e.SCN, e.Op)
		}
		if err != nil {
			return err
		}
	}
	last := entries[len(entries)-1].SCN
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+StateTable+`(dataset_id, shadow_table, last_scn, updated_at) VALUES (?, ?, ?, CAST(strftime('%s', 'now') AS INTEGER))
ON CONFLICT(dataset_id, shadow_table) DO UPDATE SET last_scn = excluded.last_scn, updated_at = excluded.updated_at`, cfg.DatasetID, cfg.ShadowTable, last); err != nil {
		return err
	}
	return tx.Commit()
}
