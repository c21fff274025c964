package provenance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	// LookupTable holds (formula, db) pairs keyed by canonical formula.
	LookupTable = "loc_provenance"
	// CatalogTable holds database descriptions.
	CatalogTable = "loc_databases"
)

// EnsureSchema creates the provenance tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+LookupTable+` (
    formula TEXT NOT NULL,
    db      TEXT NOT NULL,
    PRIMARY KEY(formula, db)
)`); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+CatalogTable+` (
    name         TEXT PRIMARY KEY,
    experimental INTEGER NOT NULL DEFAULT 0,
    structures   INTEGER NOT NULL DEFAULT 0
)`)
	return err
}

// sqlx picks its bind style from the driver name; modernc registers as
// "sqlite", which sqlx only knows as "sqlite3".
func newDB(db *sql.DB) *sqlx.DB { return sqlx.NewDb(db, "sqlite3") }

type lookupRow struct {
	Key string `db:"formula"`
	DB  string `db:"db"`
}

// LoadTable reads the lookup table into memory.
func LoadTable(ctx context.Context, db *sql.DB) (*Table, error) {
	var rows []lookupRow
	if err := newDB(db).SelectContext(ctx, &rows, `SELECT formula, db FROM `+LookupTable+` ORDER BY formula, db`); err != nil {
		return nil, fmt.Errorf("provenance: load lookup table: %w", err)
	}
	t := NewTable()
	for _, r := range rows {
		t.Add(r.Key, r.DB)
	}
	return t, nil
}

// LoadCatalogTable reads the catalog table.
func LoadCatalogTable(ctx context.Context, db *sql.DB) (Catalog, error) {
	var dbs []Database
	if err := newDB(db).SelectContext(ctx, &dbs, `SELECT name, experimental, structures FROM `+CatalogTable); err != nil {
		return nil, fmt.Errorf("provenance: load catalog: %w", err)
	}
	return NewCatalog(dbs...), nil
}

// SaveCatalog upserts catalog entries.
func SaveCatalog(ctx context.Context, db *sql.DB, c Catalog) error {
	x := newDB(db)
	for _, d := range c {
		if _, err := x.NamedExecContext(ctx, `INSERT INTO `+CatalogTable+`(name, experimental, structures)
VALUES (:name, :experimental, :structures)
ON CONFLICT(name) DO UPDATE SET experimental = excluded.experimental, structures = excluded.structures`, d); err != nil {
			return fmt.Errorf("provenance: save catalog %s: %w", d.Name, err)
		}
	}
	return nil
}

// AddLookup records that key appears in the given databases.
func AddLookup(ctx context.Context, db *sql.DB, key string, databases ...string) error {
	for _, name := range databases {
		if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO `+LookupTable+`(formula, db) VALUES (?, ?)`, key, name); err != nil {
			return fmt.Errorf("provenance: add %s: %w", key, err)
		}
	}
	return nil
}
