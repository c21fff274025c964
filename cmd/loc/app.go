package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/viant/sqlite-loc/config"
	"github.com/viant/sqlite-loc/engine"
	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/index/loc"
	"github.com/viant/sqlite-loc/metric"
	"github.com/viant/sqlite-loc/provenance"
	"github.com/viant/sqlite-loc/store"
)

// app carries the resolved configuration shared by the commands.
type app struct {
	cfg    *config.Config
	out    io.Writer
	logger *log.Logger
}

// session holds the resources opened for one command.
type session struct {
	*app
	db      *sql.DB
	items   *store.Items
	blobs   store.BlobStore
	closers []func() error
}

func (a *app) open(ctx context.Context) (*session, error) {
	db, err := engine.Open(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	s := &session{app: a, db: db, closers: []func() error{db.Close}}
	if s.items, err = store.NewItems(ctx, db, a.cfg.Table); err != nil {
		s.Close()
		return nil, err
	}
	switch a.cfg.BlobStore {
	case config.BlobStoreBadger:
		kv, err := store.OpenBadger(a.cfg.BadgerDir)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, kv.Close)
		s.blobs = store.NewBadgerBlobs(kv)
	default:
		if s.blobs, err = store.NewSQLiteBlobs(ctx, db); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases resources in reverse opening order.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// annotator attaches element key sets and, when provenance tables exist,
// database flags.
func (s *session) annotator(ctx context.Context) (index.Annotator[material], error) {
	if err := provenance.EnsureSchema(ctx, s.db); err != nil {
		return nil, err
	}
	if s.cfg.Catalog != "" {
		catalog, err := provenance.LoadCatalog(s.cfg.Catalog)
		if err != nil {
			return nil, err
		}
		if err := provenance.SaveCatalog(ctx, s.db, catalog); err != nil {
			return nil, err
		}
	}
	table, err := provenance.LoadTable(ctx, s.db)
	if err != nil {
		return nil, err
	}
	catalog, err := provenance.LoadCatalogTable(ctx, s.db)
	if err != nil {
		return nil, err
	}
	var source provenance.Source
	if table.Len() > 0 {
		source = table
	}
	a := provenance.NewAnnotator(source, catalog)
	return index.AnnotatorFunc[material](func(m material) index.Annotation { return a.Annotate(m.comp) }), nil
}

func (s *session) indexOptions(ctx context.Context) ([]loc.Option, error) {
	annotator, err := s.annotator(ctx)
	if err != nil {
		return nil, err
	}
	return append(s.cfg.IndexOptions(), loc.WithLogger(s.logger), loc.WithAnnotator[material](annotator)), nil
}

// build indexes the dataset and persists the index blob.
func (s *session) build(ctx context.Context) (*loc.Index[material], error) {
	rows, err := s.items.List(ctx, s.cfg.Dataset)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset %q in %s is empty", s.cfg.Dataset, s.cfg.Table)
	}
	opts, err := s.indexOptions(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := loc.BuildFrom[store.Item, material](ctx, rows, parseItem, materialMetric, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.SaveIndex[material](ctx, s.blobs, s.cfg.Table, s.cfg.Dataset, idx, materialCodec{}); err != nil {
		return nil, err
	}
	return idx, nil
}

// load returns the persisted index of the dataset, building it when none
// was saved. Queries count distance computations through m.
func (s *session) load(ctx context.Context, m *metric.Counting[material]) (*loc.Index[material], error) {
	idx, err := store.LoadIndex[material](ctx, s.blobs, s.cfg.Table, s.cfg.Dataset, materialCodec{}, m, loc.WithLogger(s.logger))
	switch {
	case err == nil:
		return idx, nil
	case errors.Is(err, store.ErrNotFound):
		s.logger.Printf("no saved index for %s/%s, building", s.cfg.Table, s.cfg.Dataset)
	default:
		s.logger.Printf("discarding saved index for %s/%s: %v", s.cfg.Table, s.cfg.Dataset, err)
	}
	if _, err := s.build(ctx); err != nil {
		return nil, err
	}
	return store.LoadIndex[material](ctx, s.blobs, s.cfg.Table, s.cfg.Dataset, materialCodec{}, m, loc.WithLogger(s.logger))
}
