package vector

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/viant/sqlite-loc/index/loc"
	"github.com/viant/sqlite-loc/metric"
)

// SQLiteStore keeps documents in a SQLite table and answers similarity
// searches from a cluster index over their embeddings under the angular
// metric. The index is built on the first search after a write.
type SQLiteStore struct {
	db    *sqlx.DB
	table string
	opts  []loc.Option

	mu  sync.Mutex
	idx map[int]*loc.Index[Document] // by embedding dimension
}

// docRow is the stored form of a Document.
type docRow struct {
	ID        string `db:"id"`
	Content   string `db:"content"`
	Meta      string `db:"meta"`
	Embedding []byte `db:"embedding"`
}

var documentMetric = metric.Func[Document](func(a, b Document) (float64, error) {
	return AngularDistance(a.Embedding, b.Embedding)
})

// NewSQLiteStore creates a SQLite-backed Store over the docs table. opts
// configure the cluster index.
func NewSQLiteStore(db *sql.DB, opts ...loc.Option) (*SQLiteStore, error) {
	return NewSQLiteTableStore(db, DocsTable, opts...)
}

// NewSQLiteTableStore creates a SQLite-backed Store over a named table. The
// table name is interpolated into SQL and must be trusted.
func NewSQLiteTableStore(db *sql.DB, table string, opts ...loc.Option) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("vector: db is nil")
	}
	if err := EnsureSchema(context.Background(), db, table); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: sqlx.NewDb(db, "sqlite3"), table: table, opts: opts}, nil
}

// AddDocuments inserts or replaces documents in one transaction. Every
// document needs an ID and a non-empty embedding.
func (s *SQLiteStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, fmt.Sprintf(`INSERT INTO %s(id, content, meta, embedding)
VALUES (:id, :content, :meta, :embedding)
ON CONFLICT(id) DO UPDATE SET content = excluded.content, meta = excluded.meta, embedding = excluded.embedding`, s.table))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("vector: Document.ID must be set")
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("vector: document %s has no embedding", d.ID)
		}
		emb, err := EncodeEmbedding(d.Embedding)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, docRow{ID: d.ID, Content: d.Content, Meta: d.Metadata, Embedding: emb}); err != nil {
			return nil, err
		}
		ids = append(ids, d.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.invalidate()
	return ids, nil
}

// SimilaritySearch returns up to k documents ordered by ascending angular
// distance to queryEmbedding. Documents are indexed per embedding dimension
// and only those with the query's dimension are searched.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, k int) ([]Document, error) {
	if k <= 0 {
		return nil, nil
	}
	indexes, err := s.indexes(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexes[len(queryEmbedding)]
	if idx == nil {
		return nil, nil
	}
	matches, err := idx.KNearest(Document{Embedding: queryEmbedding}, k, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Document, len(matches))
	for i, m := range matches {
		out[i] = m.Item
		out[i].Distance = m.Distance
	}
	return out, nil
}

// Remove deletes a document by ID.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("vector: Remove called with empty id")
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *SQLiteStore) invalidate() {
	s.mu.Lock()
	s.idx = nil
	s.mu.Unlock()
}

// indexes returns the current indexes keyed by embedding dimension,
// building them when stale.
func (s *SQLiteStore) indexes(ctx context.Context) (map[int]*loc.Index[Document], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx != nil {
		return s.idx, nil
	}
	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT id, COALESCE(content, '') AS content, COALESCE(meta, '') AS meta, embedding FROM %s ORDER BY rowid`, s.table)); err != nil {
		return nil, err
	}
	byDim := make(map[int][]docRow)
	var dims []int
	for _, r := range rows {
		if len(r.Embedding) == 0 || len(r.Embedding)%4 != 0 {
			continue
		}
		dim := len(r.Embedding) / 4
		if _, ok := byDim[dim]; !ok {
			dims = append(dims, dim)
		}
		byDim[dim] = append(byDim[dim], r)
	}
	indexes := make(map[int]*loc.Index[Document], len(dims))
	for _, dim := range dims {
		idx, err := loc.BuildFrom[docRow, Document](ctx, byDim[dim], decodeRow, documentMetric, s.opts...)
		if err != nil {
			return nil, fmt.Errorf("vector: index dimension %d: %w", dim, err)
		}
		indexes[dim] = idx
	}
	s.idx = indexes
	return indexes, nil
}

func decodeRow(r docRow) (Document, error) {
	emb, err := DecodeEmbedding(r.Embedding)
	if err != nil {
		return Document{}, err
	}
	if len(emb) == 0 {
		return Document{}, fmt.Errorf("vector: document %s has no embedding", r.ID)
	}
	return Document{ID: r.ID, Content: r.Content, Metadata: r.Meta, Embedding: emb}, nil
}

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
