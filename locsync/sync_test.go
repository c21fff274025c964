package locsync

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const shadowDDL = `CREATE TABLE IF NOT EXISTS _loc_materials (
    dataset_id TEXT NOT NULL,
    id         TEXT NOT NULL,
    formula    TEXT NOT NULL,
    PRIMARY KEY(dataset_id, id)
)`

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(shadowDDL)
	require.NoError(t, err)
	return db
}

func formulas(t *testing.T, db *sql.DB, dataset string) map[string]string {
	t.Helper()
	rows, err := db.Query(`SELECT id, formula FROM _loc_materials WHERE dataset_id = ?`, dataset)
	require.NoError(t, err)
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var id, formula string
		require.NoError(t, rows.Scan(&id, &formula))
		out[id] = formula
	}
	require.NoError(t, rows.Err())
	return out
}

func TestReplicate(t *testing.T) {
	ctx := context.Background()
	upstream, replica := openDB(t), openDB(t)
	require.NoError(t, Install(ctx, upstream, "_loc_materials"))

	exec := func(q string, args ...any) {
		t.Helper()
		_, err := upstream.Exec(q, args...)
		require.NoError(t, err)
	}
	exec(`INSERT INTO _loc_materials(dataset_id, id, formula) VALUES ('oqmd', 'm1', 'Fe2O3'), ('oqmd', 'm2', 'NaCl'), ('mp', 'x', 'SiO2')`)
	exec(`UPDATE _loc_materials SET formula = 'FeO' WHERE id = 'm1'`)

	entries, err := ReadLog(ctx, upstream, "oqmd", "_loc_materials", 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{entries[0].SCN, entries[1].SCN, entries[2].SCN})
	assert.Equal(t, "update", entries[2].Op)
	assert.Equal(t, "m1", entries[2].DocumentID)

	cfg := Config{DatasetID: "oqmd", ShadowTable: "_loc_materials", BatchSize: 2}
	n, err := Replicate(ctx, upstream, replica, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, map[string]string{"m1": "FeO", "m2": "NaCl"}, formulas(t, replica, "oqmd"))
	assert.Empty(t, formulas(t, replica, "mp"))

	state, err := State(ctx, replica, "oqmd", "_loc_materials")
	require.NoError(t, err)
	assert.EqualValues(t, 3, state.LastSCN)

	n, err = Replicate(ctx, upstream, replica, cfg)
	require.NoError(t, err)
	assert.Zero(t, n)

	exec(`DELETE FROM _loc_materials WHERE id = 'm2'`)
	exec(`UPDATE _loc_materials SET id = 'm3' WHERE id = 'm1'`)
	n, err = Replicate(ctx, upstream, replica, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, map[string]string{"m3": "FeO"}, formulas(t, replica, "oqmd"))
}

func TestReplicate_RequiresConfig(t *testing.T) {
	db := openDB(t)
	_, err := Replicate(context.Background(), db, db, Config{})
	assert.Error(t, err)
}
