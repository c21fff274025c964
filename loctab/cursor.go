package loctab

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/viant/sqlite-loc/composition"
	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/index/loc"
	"modernc.org/sqlite/vtab"
)

type resultRow struct {
	rowid    int64
	dataset  string
	id       string
	formula  string
	distance float64
	ref      string
}

// Cursor scans results from a loc table.
type Cursor struct {
	table *Table
	rows  []resultRow
	pos   int
	args  map[int]vtab.Value
}

// Filter computes the result set based on idxNum/vals.
func (c *Cursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows, c.pos, c.args = nil, 0, make(map[int]vtab.Value)
	if c.table == nil || c.table.db == nil {
		return nil
	}
	next := 0
	for _, bit := range []int{planDataset, planMatch, planK, planRadius, planExperimental, planStructure} {
		if idxNum&bit == 0 {
			continue
		}
		if next >= len(vals) || vals[next] == nil {
			return fmt.Errorf("loc: missing query argument")
		}
		c.args[bit] = vals[next]
		next++
	}
	ctx := context.Background()
	dataset := ""
	if v, ok := c.args[planDataset]; ok {
		var err error
		if dataset, err = asString(v); err != nil {
			return err
		}
	}
	if idxNum&planMatch == 0 {
		rows, err := c.table.scan(ctx, dataset, idxNum&planDataset != 0)
		if err != nil {
			return err
		}
		c.rows = rows
		return nil
	}
	return c.search(ctx, dataset)
}

func (c *Cursor) search(ctx context.Context, dataset string) error {
	raw, err := asString(c.args[planMatch])
	if err != nil {
		return err
	}
	query, err := composition.Parse(raw)
	if err != nil {
		return fmt.Errorf("loc: MATCH %q: %w: %w", raw, loc.ErrInvalidQuery, err)
	}
	k, radius := 0, math.Inf(1)
	if v, ok := c.args[planK]; ok {
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		if k = int(f); k <= 0 {
			return fmt.Errorf("loc: k=%v: %w", v, loc.ErrInvalidArgument)
		}
	}
	if v, ok := c.args[planRadius]; ok {
		if radius, err = asFloat(v); err != nil {
			return err
		}
		if radius < 0 || math.IsNaN(radius) {
			return fmt.Errorf("loc: radius %v: %w", radius, loc.ErrInvalidArgument)
		}
	}
	filter, err := c.filter()
	if err != nil {
		return err
	}

	idx, err := c.table.ensureIndex(ctx, dataset)
	if err != nil {
		return err
	}
	if idx == nil {
		return nil
	}
	q := row{comp: query}
	var matches []index.Match[row]
	switch {
	case k > 0:
		matches, err = idx.KNearest(q, k, filter)
	case !math.IsInf(radius, 1):
		matches, err = idx.RangeQuery(q, radius, filter)
	default:
		matches, err = idx.KNearest(q, idx.defaultK, filter)
	}
	if err != nil {
		return err
	}
	out := make([]resultRow, 0, len(matches))
	for _, m := range matches {
		if m.Distance > radius {
			break
		}
		out = append(out, resultRow{rowid: m.Item.RowID, dataset: dataset, id: m.Item.ID, formula: m.Item.Formula, distance: m.Distance, ref: m.Ref})
	}
	c.rows = out
	return nil
}

func (c *Cursor) filter() (loc.Filter, error) {
	flag := func(bit int) (set, want bool, err error) {
		v, ok := c.args[bit]
		if !ok {
			return false, false, nil
		}
		f, err := asFloat(v)
		if err != nil {
			return false, false, err
		}
		return true, f != 0, nil
	}
	expSet, exp, err := flag(planExperimental)
	if err != nil {
		return nil, err
	}
	stSet, st, err := flag(planStructure)
	if err != nil {
		return nil, err
	}
	if !expSet && !stSet {
		return nil, nil
	}
	return loc.FilterFunc(func(a *loc.Annotation) bool {
		return (!expSet || a.Experimental == exp) && (!stSet || a.Structure == st)
	}), nil
}

// Next advances the cursor.
func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

// Eof reports end-of-rows.
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

// Column returns the value of a column in the current row.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("loc: Column out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	r := c.rows[c.pos]
	switch col {
	case colDataset:
		return r.dataset, nil
	case colID:
		return r.id, nil
	case colFormula:
		return r.formula, nil
	case colDistance:
		return r.distance, nil
	case colK:
		return c.args[planK], nil
	case colRadius:
		return c.args[planRadius], nil
	case colExperimental:
		return c.args[planExperimental], nil
	case colStructure:
		return c.args[planStructure], nil
	case colRef:
		if r.ref == "" {
			return nil, nil
		}
		return r.ref, nil
	}
	return nil, fmt.Errorf("loc: unsupported column %d", col)
}

// Rowid returns the current rowid.
func (c *Cursor) Rowid() (int64, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return 0, fmt.Errorf("loc: Rowid out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	return c.rows[c.pos].rowid, nil
}

// Close releases resources.
func (c *Cursor) Close() error { c.rows = nil; c.pos = 0; return nil }

func asFloat(v vtab.Value) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	case []byte:
		return parseFloat(string(val))
	case string:
		return parseFloat(val)
	default:
		return 0, fmt.Errorf("loc: unsupported numeric type %T", v)
	}
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("loc: cannot parse number %q: %w", s, err)
	}
	return f, nil
}

func asString(v vtab.Value) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case nil:
		return "", fmt.Errorf("loc: argument is nil")
	default:
		return "", fmt.Errorf("loc: unsupported text type %T", v)
	}
}
