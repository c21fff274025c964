package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ItemsTable is the default table of indexed formulas.
const ItemsTable = "loc_items"

// Item is one stored formula.
type Item struct {
	DatasetID string `db:"dataset_id"`
	ID        string `db:"id"`
	Formula   string `db:"formula"`
}

// Items reads and writes formula rows. The table name is interpolated into
// SQL and must be trusted.
type Items struct {
	db    *sqlx.DB
	table string
}

// NewItems creates the items table when missing. An empty table name means
// ItemsTable.
func NewItems(ctx context.Context, db *sql.DB, table string) (*Items, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is nil")
	}
	if table == "" {
		table = ItemsTable
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    dataset_id TEXT NOT NULL,
    id         TEXT NOT NULL,
    formula    TEXT NOT NULL,
    PRIMARY KEY(dataset_id, id)
)`, table)); err != nil {
		return nil, err
	}
	return &Items{db: sqlx.NewDb(db, "sqlite3"), table: table}, nil
}

// Table returns the table name.
func (s *Items) Table() string { return s.table }

// Upsert inserts or replaces items in one transaction.
func (s *Items) Upsert(ctx context.Context, items ...Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareNamedContext(ctx, fmt.Sprintf(`INSERT INTO %s(dataset_id, id, formula)
VALUES (:dataset_id, :id, :formula)
ON CONFLICT(dataset_id, id) DO UPDATE SET formula = excluded.formula`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item); err != nil {
			return fmt.Errorf("store: upsert %s/%s: %w", item.DatasetID, item.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes items by id.
func (s *Items) Delete(ctx context.Context, dataset string, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`DELETE FROM %s WHERE dataset_id = ? AND id IN (?)`, s.table), dataset, ids)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// List returns the items of a dataset in insertion order.
func (s *Items) List(ctx context.Context, dataset string) ([]Item, error) {
	var out []Item
	err := s.db.SelectContext(ctx, &out, fmt.Sprintf(`SELECT dataset_id, id, formula FROM %s WHERE dataset_id = ? ORDER BY rowid`, s.table), dataset)
	return out, err
}

// Get returns the items with the given ids; missing ids are ignored.
func (s *Items) Get(ctx context.Context, dataset string, ids ...string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT dataset_id, id, formula FROM %s WHERE dataset_id = ? AND id IN (?)`, s.table), dataset, ids)
	if err != nil {
		return nil, err
	}
	var out []Item
	err = s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...)
	return out, err
}

// Datasets lists the distinct datasets.
func (s *Items) Datasets(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.SelectContext(ctx, &out, fmt.Sprintf(`SELECT DISTINCT dataset_id FROM %s ORDER BY dataset_id`, s.table))
	return out, err
}
