package store

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "loc/"

// BadgerBlobs stores index blobs in a Badger key-value store under
// "loc/<name>/<dataset>".
type BadgerBlobs struct {
	db *badger.DB
}

// NewBadgerBlobs wraps an open Badger database.
func NewBadgerBlobs(db *badger.DB) *BadgerBlobs {
	return &BadgerBlobs{db: db}
}

// OpenBadger opens a Badger database in dir, or in memory when dir is empty.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	return badger.Open(opts)
}

func badgerKey(name, dataset string) []byte {
	return []byte(badgerPrefix + name + "/" + dataset)
}

// Get implements BlobStore.
func (b *BadgerBlobs) Get(_ context.Context, name, dataset string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(name, dataset))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put implements BlobStore.
func (b *BadgerBlobs) Put(_ context.Context, name, dataset string, data []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(name, dataset), data)
	})
}

// Delete implements BlobStore.
func (b *BadgerBlobs) Delete(_ context.Context, name, dataset string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		key := badgerKey(name, dataset)
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// Datasets lists the datasets stored for name.
func (b *BadgerBlobs) Datasets(ctx context.Context, name string) ([]string, error) {
	prefix := []byte(badgerPrefix + name + "/")
	var out []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			out = append(out, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return out, err
}

var _ BlobStore = (*BadgerBlobs)(nil)
