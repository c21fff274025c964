package locutil

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viant/sqlite-loc/composition"
	"github.com/viant/sqlite-loc/loctab"
	"github.com/viant/sqlite-loc/store"
)

// Collection provides a document-store style API over one dataset of a loc
// virtual table and its shadow table. Writes go to the shadow table, whose
// triggers invalidate persisted indexes; queries go through the virtual
// table.
type Collection struct {
	DB          *sql.DB
	VirtualName string
	ShadowName  string
	Column      string
	DatasetID   string

	items *store.Items
}

// Material is one stored formula.
type Material struct {
	ID      string
	Formula string
}

// Match represents a single search hit.
type Match struct {
	ID       string
	Formula  string
	Distance float64
	Ref      string
}

// NewCollection constructs a Collection for a loc virtual table created with
// the default formula column. The shadow table and its triggers are created
// when missing.
//
// db must be the connection the loc module is installed on: register the
// module with loctab.RegisterWithWorkers and pin db with SetMaxOpenConns(1),
// otherwise queries may land on a connection that has no loc module.
func NewCollection(ctx context.Context, db *sql.DB, virtualTable, datasetID string) (*Collection, error) {
	if db == nil {
		return nil, fmt.Errorf("locutil: db is nil")
	}
	shadow := ShadowTableName(virtualTable)
	if err := loctab.EnsureShadow(db, shadow); err != nil {
		return nil, err
	}
	items, err := store.NewItems(ctx, db, shadow)
	if err != nil {
		return nil, err
	}
	return &Collection{
		DB:          db,
		VirtualName: virtualTable,
		ShadowName:  shadow,
		Column:      "formula",
		DatasetID:   datasetID,
		items:       items,
	}, nil
}

// Upsert validates and stores materials. No row is written when any formula
// fails to parse.
func (c *Collection) Upsert(ctx context.Context, materials ...Material) error {
	rows := make([]store.Item, 0, len(materials))
	for _, m := range materials {
		if _, err := composition.Parse(m.Formula); err != nil {
			return fmt.Errorf("locutil: %s: %w", m.ID, err)
		}
		rows = append(rows, store.Item{DatasetID: c.DatasetID, ID: m.ID, Formula: m.Formula})
	}
	return c.items.Upsert(ctx, rows...)
}

// Delete removes materials by id and returns the number removed.
func (c *Collection) Delete(ctx context.Context, ids ...string) (int64, error) {
	return c.items.Delete(ctx, c.DatasetID, ids...)
}

// List returns the stored materials in insertion order.
func (c *Collection) List(ctx context.Context) ([]Material, error) {
	rows, err := c.items.List(ctx, c.DatasetID)
	if err != nil {
		return nil, err
	}
	out := make([]Material, len(rows))
	for i, r := range rows {
		out[i] = Material{ID: r.ID, Formula: r.Formula}
	}
	return out, nil
}

// Nearest returns the k materials closest to formula. When k <= 0 the
// table's default k applies.
func (c *Collection) Nearest(ctx context.Context, formula string, k int) ([]Match, error) {
	q := fmt.Sprintf("SELECT id, %s, distance, ref FROM %s WHERE dataset_id = ? AND %s MATCH ?", c.Column, c.VirtualName, c.Column)
	args := []any{c.DatasetID, formula}
	if k > 0 {
		q += " AND k = ?"
		args = append(args, k)
	}
	return c.query(ctx, q, args...)
}

// Within returns every material within radius of formula.
func (c *Collection) Within(ctx context.Context, formula string, radius float64) ([]Match, error) {
	q := fmt.Sprintf("SELECT id, %s, distance, ref FROM %s WHERE dataset_id = ? AND %s MATCH ? AND radius = ?", c.Column, c.VirtualName, c.Column)
	return c.query(ctx, q, c.DatasetID, formula, radius)
}

func (c *Collection) query(ctx context.Context, q string, args ...any) ([]Match, error) {
	rows, err := c.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Match
	for rows.Next() {
		var m Match
		var ref sql.NullString
		if err := rows.Scan(&m.ID, &m.Formula, &m.Distance, &ref); err != nil {
			return nil, err
		}
		m.Ref = ref.String
		out = append(out, m)
	}
	return out, rows.Err()
}
