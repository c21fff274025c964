package locadmin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/viant/sqlite-loc/loctab"
	"modernc.org/sqlite/vtab"
)

// Module provides administrative operations via a virtual table.
// Usage:
//
//	CREATE VIRTUAL TABLE loc_admin USING loc_admin(op);
//	SELECT op FROM loc_admin WHERE op MATCH 'main._loc_materials';       -- rebuild every dataset
//	SELECT op FROM loc_admin WHERE op MATCH 'main._loc_materials:oqmd';  -- rebuild one dataset
//
// Returns a single row with op='reindexed:<count>' on success.
type Module struct{ db *sql.DB }

type Table struct{ db *sql.DB }

type Cursor struct {
	table *Table
	rows  []string
	pos   int
}

// Register registers the loc_admin module; rebuilds run through db.
func Register(db *sql.DB) error {
	return RegisterWithWorkers(db, db)
}

// RegisterWithWorkers registers the loc_admin module with rebuilds running
// through workers, a second pool on the same database file. As with
// loctab.RegisterWithWorkers, db should be pinned to a single connection
// opened after registration.
func RegisterWithWorkers(db, workers *sql.DB) error {
	if workers == nil {
		workers = db
	}
	if err := vtab.RegisterModule(db, "loc_admin", &Module{db: workers}); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Connect(ctx, args)
}

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("loc_admin: need at least 3 args")
	}
	// Single TEXT column `op` reporting results.
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(op)", args[2])); err != nil {
		return nil, err
	}
	return &Table{db: m.db}, nil
}

func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		if c.Column == 0 && c.Op == vtab.OpMATCH {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			break
		}
	}
	return nil
}

func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }
func (t *Table) Disconnect() error             { return nil }
func (t *Table) Destroy() error                { return nil }

func (c *Cursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != 1 || len(vals) == 0 || vals[0] == nil {
		return nil
	}
	target, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("loc_admin: MATCH expects shadow table name as TEXT")
	}
	n, err := reindex(context.Background(), c.table.db, target)
	if err != nil {
		return err
	}
	c.rows = []string{fmt.Sprintf("reindexed:%d", n)}
	return nil
}

func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("loc_admin: Column out of range")
	}
	if col == 0 {
		return c.rows[c.pos], nil
	}
	return nil, nil
}
func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }
func (c *Cursor) Close() error          { c.rows = nil; c.pos = 0; return nil }

// reindex rebuilds and persists the indexes named by target, either a shadow
// table or "shadow:dataset". It returns the number of indexed rows.
func reindex(ctx context.Context, db *sql.DB, target string) (int, error) {
	shadow, dataset, one := strings.Cut(strings.TrimSpace(target), ":")
	if shadow == "" {
		return 0, fmt.Errorf("loc_admin: empty shadow table name")
	}
	datasets := []string{dataset}
	if !one {
		var err error
		if datasets, err = loctab.Datasets(ctx, db, shadow); err != nil {
			return 0, err
		}
	}
	total := 0
	for _, ds := range datasets {
		n, err := loctab.Rebuild(ctx, db, shadow, ds)
		if err != nil {
			return total, fmt.Errorf("loc_admin: %s:%s: %w", shadow, ds, err)
		}
		total += n
	}
	return total, nil
}
