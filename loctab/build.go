package loctab

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/index/bruteforce"
	"github.com/viant/sqlite-loc/index/cover"
	"github.com/viant/sqlite-loc/index/loc"
	"github.com/viant/sqlite-loc/provenance"
	"github.com/viant/sqlite-loc/store"
)

const locksTable = "loc_storage_locks"

// ensureShadow ensures the per-table shadow table and its invalidation
// triggers exist.
func (t *Table) ensureShadow() error {
	if t.db == nil {
		return fmt.Errorf("loc: db is nil")
	}
	return EnsureShadow(t.db, t.shadow)
}

// EnsureShadow creates a shadow table with triggers that delete the
// persisted index and clear cached indexes on every change.
func EnsureShadow(db *sql.DB, shadow string) error {
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    dataset_id TEXT NOT NULL,
    id         TEXT NOT NULL,
    formula    TEXT NOT NULL,
    PRIMARY KEY(dataset_id, id)
)`, shadow)
	if _, err := db.Exec(stmt); err != nil {
		return err
	}
	if err := store.EnsureStorage(context.Background(), db); err != nil {
		return err
	}
	trigBase := sanitizeName("trg_loc_" + shadow)
	shadowLit := quoteLiteral(shadow)
	delNew := `DELETE FROM ` + store.StorageTable + ` WHERE name = ` + shadowLit + ` AND dataset_id = NEW.dataset_id;`
	invNew := `SELECT loc_invalidate(` + shadowLit + `, NEW.dataset_id);`
	delOld := `DELETE FROM ` + store.StorageTable + ` WHERE name = ` + shadowLit + ` AND dataset_id = OLD.dataset_id;`
	invOld := `SELECT loc_invalidate(` + shadowLit + `, OLD.dataset_id);`
	for _, trig := range []string{
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_ins AFTER INSERT ON %s BEGIN %s %s END;`, trigBase, shadow, delNew, invNew),
		// Updates invalidate both datasets to cover rows moving between them.
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_upd AFTER UPDATE ON %s BEGIN %s %s %s %s END;`, trigBase, shadow, delNew, invNew, delOld, invOld),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_del AFTER DELETE ON %s BEGIN %s %s END;`, trigBase, shadow, delOld, invOld),
	} {
		if _, err := db.Exec(trig); err != nil {
			return err
		}
	}
	return nil
}

func ensureLocks(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS ` + locksTable + ` (
    name       TEXT NOT NULL,
    dataset_id TEXT NOT NULL DEFAULT '',
    owner      TEXT NOT NULL,
    locked_at  INTEGER NOT NULL,
    PRIMARY KEY (name, dataset_id)
)`)
	return err
}

// scan lists shadow rows, optionally restricted to one dataset.
func (t *Table) scan(ctx context.Context, dataset string, byDataset bool) ([]resultRow, error) {
	q := fmt.Sprintf("SELECT rowid, dataset_id, id, formula FROM %s", t.shadow)
	args := []any{}
	if byDataset {
		q += " WHERE dataset_id = ?"
		args = append(args, dataset)
	}
	rows, err := t.db.QueryContext(ctx, q+" ORDER BY rowid", args...)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()
	var out []resultRow
	for rows.Next() {
		var r resultRow
		if err := rows.Scan(&r.rowid, &r.dataset, &r.id, &r.formula); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const (
	lockRetryDelay = 50 * time.Millisecond
	lockStaleAfter = 2 * time.Minute
)

var lockOwnerID = fmt.Sprintf("pid:%d-%d", os.Getpid(), time.Now().UnixNano())

func acquireIndexBuildLock(ctx context.Context, db *sql.DB, shadow, dataset string) (func(), error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := time.Now().Unix()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+locksTable+`(name, dataset_id, owner, locked_at) VALUES(?, ?, ?, ?)`, shadow, dataset, lockOwnerID, now); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		var owner string
		var lockedAt int64
		if err := tx.QueryRowContext(ctx, `SELECT owner, locked_at FROM `+locksTable+` WHERE name = ? AND dataset_id = ?`, shadow, dataset).Scan(&owner, &lockedAt); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if owner != lockOwnerID && lockedAt <= time.Now().Add(-lockStaleAfter).Unix() {
			res, err := tx.ExecContext(ctx, `UPDATE `+locksTable+` SET owner = ?, locked_at = ? WHERE name = ? AND dataset_id = ? AND locked_at = ?`, lockOwnerID, now, shadow, dataset, lockedAt)
			if err != nil {
				_ = tx.Rollback()
				return nil, err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				owner = lockOwnerID
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		if owner == lockOwnerID {
			return func() {
				_, _ = db.ExecContext(context.Background(), `DELETE FROM `+locksTable+` WHERE name = ? AND dataset_id = ? AND owner = ?`, shadow, dataset, lockOwnerID)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}

func (t *Table) loadPersistedIndex(ctx context.Context, dataset string) (*builtIndex, bool, error) {
	if !t.opts.persisted() {
		return nil, false, nil
	}
	blobs, err := store.NewSQLiteBlobs(ctx, t.db)
	if err != nil {
		return nil, false, err
	}
	idx, err := store.LoadIndex[row](ctx, blobs, t.shadow, dataset, rowCodec{}, rowMetric, t.opts.indexOptions()...)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, false, nil
	case err != nil:
		// A blob that no longer decodes is rebuilt.
		logger().Printf("loc: discarding persisted index %s/%s: %v", t.shadow, dataset, err)
		return nil, false, nil
	}
	return &builtIndex{Index: idx, kind: indexLoc, defaultK: idx.DefaultK()}, true, nil
}

// ensureIndex loads or builds the in-memory index of a dataset and persists
// it in loc_storage. It returns nil when the dataset has no rows.
func (t *Table) ensureIndex(ctx context.Context, dataset string) (*builtIndex, error) {
	if err := t.ensureShadow(); err != nil {
		return nil, err
	}
	if err := ensureLocks(t.db); err != nil {
		return nil, err
	}

	key := cacheKey(t.cachedDbPath(ctx), t.tableName, dataset)
	entry := getCacheEntry(key)
	if idx := entry.get(); idx != nil {
		return idx, nil
	}
	if idx, ok, err := t.loadPersistedIndex(ctx, dataset); err != nil {
		return nil, err
	} else if ok {
		entry.set(idx)
		return idx, nil
	}

	for !entry.startBuild() {
		if idx := entry.waitForBuild(); idx != nil {
			return idx, nil
		}
	}
	defer entry.finishBuild()

	unlock, err := acquireIndexBuildLock(ctx, t.db, t.shadow, dataset)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another process may have finished the build while we waited.
	if idx, ok, err := t.loadPersistedIndex(ctx, dataset); err != nil {
		return nil, err
	} else if ok {
		entry.set(idx)
		return idx, nil
	}
	idx, err := buildIndex(ctx, t.db, t.shadow, dataset, t.opts)
	if err != nil || idx == nil {
		return nil, err
	}
	entry.set(idx)
	return idx, nil
}

// buildIndex reads a dataset from the shadow table and builds the index kind
// selected by opts. List-of-Clusters indexes are persisted; scan and cover
// tree indexes live in the cache only. It returns nil when the dataset is
// empty.
func buildIndex(ctx context.Context, db *sql.DB, shadow, dataset string, opts tableOptions) (*builtIndex, error) {
	q := fmt.Sprintf("SELECT rowid, id, formula FROM %s WHERE dataset_id = ? ORDER BY rowid", shadow)
	rows, err := db.QueryContext(ctx, q, dataset)
	if err != nil {
		return nil, err
	}
	var items []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.RowID, &r.ID, &r.Formula); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	var annotator index.Annotator[row]
	if opts.provenance {
		if annotator, err = provenanceAnnotator(ctx, db); err != nil {
			return nil, err
		}
	}
	built := &builtIndex{kind: opts.resolveKind(len(items)), defaultK: opts.defaultK()}
	switch built.kind {
	case indexBrute, indexCover:
		parsed := parseRows(items, shadow, dataset)
		if built.kind == indexBrute {
			bf := &bruteforce.Index[row]{}
			err = bf.Build(parsed, rowMetric, annotator)
			built.Index = bf
		} else {
			ct := cover.New[row](opts.coverBase)
			err = ct.Build(parsed, rowMetric, annotator)
			built.Index = ct
		}
		if err != nil {
			return nil, err
		}
		return built, nil
	}

	indexOpts := opts.indexOptions()
	if annotator != nil {
		indexOpts = append(indexOpts, loc.WithAnnotator[row](annotator))
	}
	idx, err := loc.BuildFrom[row, row](ctx, items, parseRow, rowMetric, indexOpts...)
	if err != nil {
		return nil, err
	}
	if skipped := len(idx.Report().Skipped); skipped > 0 {
		logger().Printf("loc: %s/%s: skipped %d of %d rows", shadow, dataset, skipped, len(items))
	}
	blobs, err := store.NewSQLiteBlobs(ctx, db)
	if err != nil {
		return nil, err
	}
	if err := store.SaveIndex[row](ctx, blobs, shadow, dataset, idx, rowCodec{}); err != nil {
		logger().Printf("loc: %v", err)
	}
	built.Index = idx
	return built, nil
}

// parseRows normalises shadow rows for the scan and cover tree indexes,
// logging and dropping rows whose formula does not parse.
func parseRows(items []row, shadow, dataset string) []row {
	out := make([]row, 0, len(items))
	for _, item := range items {
		r, err := parseRow(item)
		if err != nil {
			logger().Printf("loc: %s/%s: skipping %s: %v", shadow, dataset, item.ID, err)
			continue
		}
		out = append(out, r)
	}
	return out
}

func provenanceAnnotator(ctx context.Context, db *sql.DB) (index.Annotator[row], error) {
	if err := provenance.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	table, err := provenance.LoadTable(ctx, db)
	if err != nil {
		return nil, err
	}
	catalog, err := provenance.LoadCatalogTable(ctx, db)
	if err != nil {
		return nil, err
	}
	a := provenance.NewAnnotator(table, catalog)
	return index.AnnotatorFunc[row](func(r row) index.Annotation { return a.Annotate(r.comp) }), nil
}

// Rebuild drops cached copies of a dataset index, then rebuilds and persists
// it with default options. It returns the number of indexed rows.
func Rebuild(ctx context.Context, db *sql.DB, shadow, dataset string) (int, error) {
	if err := EnsureShadow(db, shadow); err != nil {
		return 0, err
	}
	InvalidateCache(shadow, dataset)
	idx, err := buildIndex(ctx, db, shadow, dataset, tableOptions{})
	if err != nil || idx == nil {
		return 0, err
	}
	return idx.Len(), nil
}

// Datasets lists the distinct datasets of a shadow table.
func Datasets(ctx context.Context, db *sql.DB, shadow string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT dataset_id FROM %s ORDER BY dataset_id", shadow))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// sanitizeName converts a qualified name into a safe identifier for triggers.
func sanitizeName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}

// quoteLiteral returns an SQL string literal with single quotes escaped.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
