package vector

import (
	"context"
	"database/sql"
	"fmt"
)

// DocsTable is the default documents table.
const DocsTable = "docs"

// EnsureSchema creates a documents table when it does not already exist. An
// empty table name means DocsTable.
func EnsureSchema(ctx context.Context, db *sql.DB, table string) error {
	if table == "" {
		table = DocsTable
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id        TEXT PRIMARY KEY,
    content   TEXT,
    meta      TEXT,
    embedding BLOB
)`, table))
	return err
}
