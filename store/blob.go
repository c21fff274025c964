package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/sqlite-loc/index/loc"
	"github.com/viant/sqlite-loc/metric"
)

// ErrNotFound is returned when no blob is stored under a name/dataset pair.
var ErrNotFound = errors.New("store: not found")

// BlobStore keeps encoded indexes keyed by index name and dataset.
type BlobStore interface {
	Get(ctx context.Context, name, dataset string) ([]byte, error)
	Put(ctx context.Context, name, dataset string, data []byte) error
	Delete(ctx context.Context, name, dataset string) error
}

// SaveIndex encodes idx and stores it.
func SaveIndex[T any](ctx context.Context, blobs BlobStore, name, dataset string, idx *loc.Index[T], codec loc.Codec[T]) error {
	data, err := idx.Encode(codec)
	if err != nil {
		return err
	}
	if err := blobs.Put(ctx, name, dataset, data); err != nil {
		return fmt.Errorf("store: save %s/%s: %w", name, dataset, err)
	}
	return nil
}

// LoadIndex reads and decodes an index. It returns ErrNotFound when nothing
// was saved.
func LoadIndex[T any](ctx context.Context, blobs BlobStore, name, dataset string, codec loc.Codec[T], m metric.Metric[T], opts ...loc.Option) (*loc.Index[T], error) {
	data, err := blobs.Get(ctx, name, dataset)
	if err != nil {
		return nil, err
	}
	return loc.Decode(data, codec, m, opts...)
}
