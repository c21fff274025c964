package loctab

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

// Column positions of the declared virtual table.
const (
	colDataset = iota
	colID
	colFormula
	colDistance
	colK
	colRadius
	colExperimental
	colStructure
	colRef
)

// Query plan bits; constraint arguments are passed in bit order.
const (
	planDataset = 1 << iota
	planMatch
	planK
	planRadius
	planExperimental
	planStructure
)

var (
	registerInvalidateOnce sync.Once
	loggerPtr              atomic.Pointer[log.Logger]
)

func init() { SetLogger(nil) }

// SetLogger sets the logger receiving per-row build and query failures. It
// is safe to call while queries run.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	loggerPtr.Store(l)
}

func logger() *log.Logger { return loggerPtr.Load() }

// Module implements vtab.Module for the loc virtual table.
type Module struct {
	db *sql.DB // pool for the module's own queries
}

// Table represents a single loc virtual table instance.
type Table struct {
	db        *sql.DB
	dbName    string
	tableName string
	shadow    string // qualified shadow table name (e.g. "main._loc_nn")

	dbPathOnce sync.Once
	dbPath     string

	opts tableOptions
}

// Register registers the loc virtual table module and the loc_invalidate
// function used by shadow-table triggers. The module runs its own queries
// (shadow scans, index builds, persistence) through db, so db must allow a
// second connection while a loc statement is open. See RegisterWithWorkers.
func Register(db *sql.DB) error {
	return RegisterWithWorkers(db, db)
}

// RegisterWithWorkers registers the loc module so that the queries it issues
// while a statement runs go through workers, a second pool opened on the
// same database file.
//
// The driver installs Go modules on the first connection opened after
// registration only. Callers should therefore pin db to that connection
// with db.SetMaxOpenConns(1), and open it after every module is registered.
func RegisterWithWorkers(db, workers *sql.DB) error {
	if workers == nil {
		workers = db
	}
	// Functions are picked up by connections opened after registration.
	registerInvalidateOnce.Do(func() { _ = sqlite.RegisterDeterministicScalarFunction("loc_invalidate", 2, invalidateFunc) })
	if err := vtab.RegisterModule(db, "loc", &Module{db: workers}); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

// Create initializes a loc table instance.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args, "CREATE")
}

// Connect attaches to an existing loc table instance.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args, "CONNECT")
}

func (m *Module) connect(ctx vtab.Context, args []string, op string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("loc: %s expects at least 3 args, got %d", op, len(args))
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("loc: EnableConstraintSupport failed: %w", err)
	}
	// The first bare argument names the formula column (e.g. USING loc(formula)).
	col := "formula"
	optStart := 3
	if len(args) > 3 {
		if a := strings.TrimSpace(args[3]); a != "" && !strings.Contains(a, "=") {
			col = a
			optStart = 4
		}
	}
	decl := fmt.Sprintf("CREATE TABLE %s(dataset_id TEXT, id TEXT, %s TEXT, distance REAL HIDDEN, k INTEGER HIDDEN, radius REAL HIDDEN, experimental INTEGER HIDDEN, structure INTEGER HIDDEN, ref TEXT HIDDEN)", args[2], col)
	if err := ctx.Declare(decl); err != nil {
		return nil, err
	}
	t := &Table{db: m.db, dbName: args[1], tableName: args[2], opts: parseTableOptions(args[optStart:])}
	t.shadow = t.qualifiedShadow()
	// Shadow and storage tables are created on first use to avoid
	// cross-connection DDL during xCreate.
	return t, nil
}

// BestIndex pushes down dataset_id equality, MATCH on the formula column and
// the hidden k, radius, experimental and structure arguments.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	var found [planStructure << 1]*vtab.Constraint
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		switch {
		case c.Column == colDataset && c.Op == vtab.OpEQ:
			found[planDataset] = c
		case c.Column == colFormula && c.Op == vtab.OpMATCH:
			found[planMatch] = c
		case c.Column == colK && c.Op == vtab.OpEQ:
			found[planK] = c
		case c.Column == colRadius && c.Op == vtab.OpEQ:
			found[planRadius] = c
		case c.Column == colExperimental && c.Op == vtab.OpEQ:
			found[planExperimental] = c
		case c.Column == colStructure && c.Op == vtab.OpEQ:
			found[planStructure] = c
		}
	}
	if found[planDataset] == nil {
		if found[planMatch] != nil {
			return fmt.Errorf("loc: dataset_id constraint is required with MATCH")
		}
		info.IdxNum = 0
		return nil
	}
	plan, nextArg := 0, 0
	use := func(bit int) {
		c := found[bit]
		c.ArgIndex = nextArg
		c.Omit = true
		nextArg++
		plan |= bit
	}
	use(planDataset)
	if found[planMatch] != nil {
		use(planMatch)
		for _, bit := range []int{planK, planRadius, planExperimental, planStructure} {
			if found[bit] != nil {
				use(bit)
			}
		}
	}
	info.IdxNum = plan
	return nil
}

// Open allocates a new cursor.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect cleans up per-connection resources.
func (t *Table) Disconnect() error { return nil }

// Destroy drops the cached indexes; the shadow table persists.
func (t *Table) Destroy() error {
	InvalidateCache(t.shadow, "")
	return nil
}

// qualifiedShadow returns a fully-qualified shadow table name.
func (t *Table) qualifiedShadow() string {
	base := "_loc_" + t.tableName
	if strings.TrimSpace(t.dbName) == "" {
		return base
	}
	return t.dbName + "." + base
}

// ShadowTableName returns the bare shadow table name of a loc virtual table.
func ShadowTableName(virtualTable string) string { return "_loc_" + virtualTable }

func tableNameFromShadow(shadow string) string {
	if i := strings.Index(shadow, "._loc_"); i >= 0 {
		return shadow[i+len("._loc_"):]
	}
	if strings.HasPrefix(shadow, "_loc_") {
		return strings.TrimPrefix(shadow, "_loc_")
	}
	return ""
}

func resolveDbPath(ctx context.Context, db *sql.DB, dbName string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("loc: db is nil")
	}
	rows, err := db.QueryContext(ctx, `SELECT name, file FROM pragma_database_list`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	if dbName == "" {
		dbName = "main"
	}
	for rows.Next() {
		var name, file string
		if err := rows.Scan(&name, &file); err != nil {
			return "", err
		}
		if name == dbName {
			if file == "" {
				return name, nil
			}
			return file, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return dbName, nil
}

func (t *Table) cachedDbPath(ctx context.Context) string {
	t.dbPathOnce.Do(func() {
		path, err := resolveDbPath(ctx, t.db, t.dbName)
		if err != nil {
			path = t.dbName
			if path == "" {
				path = "main"
			}
		}
		t.dbPath = path
	})
	return t.dbPath
}
