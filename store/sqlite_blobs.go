package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// StorageTable is the SQLite table holding index blobs.
const StorageTable = "loc_storage"

// SQLiteBlobs stores index blobs in the loc_storage table.
type SQLiteBlobs struct {
	db *sql.DB
}

// EnsureStorage creates the loc_storage table when missing.
func EnsureStorage(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("store: db is nil")
	}
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+StorageTable+` (
    name       TEXT NOT NULL,
    dataset_id TEXT NOT NULL DEFAULT '',
    "index"    BLOB,
    PRIMARY KEY (name, dataset_id)
)`)
	return err
}

// NewSQLiteBlobs creates the storage table if needed.
func NewSQLiteBlobs(ctx context.Context, db *sql.DB) (*SQLiteBlobs, error) {
	if err := EnsureStorage(ctx, db); err != nil {
		return nil, err
	}
	return &SQLiteBlobs{db: db}, nil
}

// Get implements BlobStore.
func (s *SQLiteBlobs) Get(ctx context.Context, name, dataset string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT "index" FROM `+StorageTable+` WHERE name = ? AND dataset_id = ?`, name, dataset).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(blob) == 0) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Put implements BlobStore.
func (s *SQLiteBlobs) Put(ctx context.Context, name, dataset string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO `+StorageTable+`(name, dataset_id, "index") VALUES(?, ?, ?)`, name, dataset, data)
	return err
}

// Delete implements BlobStore.
func (s *SQLiteBlobs) Delete(ctx context.Context, name, dataset string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+StorageTable+` WHERE name = ? AND dataset_id = ?`, name, dataset)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ BlobStore = (*SQLiteBlobs)(nil)
