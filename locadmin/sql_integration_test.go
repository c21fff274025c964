package locadmin

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/viant/sqlite-loc/engine"
	"github.com/viant/sqlite-loc/loctab"
	"github.com/viant/sqlite-loc/store"
)

func TestLocAdminReindex(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "loc_admin.sqlite")
	db, err := engine.Open(dbPath)
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	defer db.Close()
	// The driver installs vtab modules on one connection; keep every
	// statement on it and run rebuilds through a second pool.
	db.SetMaxOpenConns(1)
	workers, err := engine.Open(dbPath + "?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("engine.Open workers failed: %v", err)
	}
	defer workers.Close()
	if err := loctab.RegisterWithWorkers(db, workers); err != nil {
		t.Fatalf("loctab.RegisterWithWorkers failed: %v", err)
	}
	if err := RegisterWithWorkers(db, workers); err != nil {
		t.Fatalf("locadmin.RegisterWithWorkers failed: %v", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		t.Fatalf("PRAGMA setup failed: %v", err)
	}
	if _, err := db.Exec(`CREATE VIRTUAL TABLE loc_admin USING loc_admin(op)`); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			t.Skipf("skipping: loc_admin vtab not available (%v)", err)
		}
		t.Fatalf("CREATE VIRTUAL TABLE loc_admin failed: %v", err)
	}

	const shadow = "main._loc_materials"
	if err := loctab.EnsureShadow(db, shadow); err != nil {
		t.Fatalf("create shadow: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO _loc_materials(dataset_id, id, formula) VALUES
        ('oqmd','m1','Fe2O3'),('oqmd','m2','NaCl'),('mp','m3','SiO2')`); err != nil {
		t.Fatalf("insert shadow failed: %v", err)
	}

	for _, tc := range []struct {
		match string
		want  string
	}{
		{match: shadow, want: "reindexed:3"},
		{match: shadow + ":oqmd", want: "reindexed:2"},
		{match: shadow + ":empty", want: "reindexed:0"},
	} {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		rows, err := db.QueryContext(ctx, `SELECT op FROM loc_admin WHERE op MATCH ?`, tc.match)
		if err != nil {
			cancel()
			if ctx.Err() == context.DeadlineExceeded || strings.Contains(err.Error(), "xBestIndex malfunction") {
				t.Skipf("skipping: loc_admin MATCH not supported in this environment (%v)", err)
			}
			t.Fatalf("loc_admin MATCH failed: %v", err)
		}
		if !rows.Next() {
			rows.Close()
			cancel()
			t.Fatalf("expected one result from loc_admin for %s", tc.match)
		}
		var op string
		if err := rows.Scan(&op); err != nil {
			t.Fatalf("scan op: %v", err)
		}
		rows.Close()
		cancel()
		if op != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.match, tc.want, op)
		}
	}

	var cnt int
	if err := db.QueryRow(`SELECT COUNT(*) FROM `+store.StorageTable+` WHERE name = ?`, shadow).Scan(&cnt); err != nil {
		t.Fatalf("count storage: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("expected 2 persisted indexes, got %d", cnt)
	}
}
