package locsync

import (
	"fmt"
	"strings"
)

const (
	// DefaultLogTable is the upstream change-log table that captures row-level SCN events.
	DefaultLogTable = "loc_shadow_log"

	// DefaultSeqTable stores the next SCN per dataset on the upstream database.
	DefaultSeqTable = "loc_dataset_scn"

	// StateTable records the last applied SCN on replicas.
	StateTable = "loc_sync_state"
)

// LogTableDDL returns the DDL for the change-log table, which upstream
// databases populate via triggers whenever the shadow table changes.
func LogTableDDL(logTable string) string {
	if logTable == "" {
		logTable = DefaultLogTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + logTable + ` (
    dataset_id   TEXT NOT NULL,
    shadow_table TEXT NOT NULL,
    scn          INTEGER NOT NULL,
    op           TEXT NOT NULL,
    document_id  TEXT NOT NULL,
    payload      BLOB NOT NULL,
    created_at   INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER)),
    PRIMARY KEY(dataset_id, shadow_table, scn)
);`
}

// SeqTableDDL returns the DDL for tracking next SCN per dataset.
func SeqTableDDL(seqTable string) string {
	if seqTable == "" {
		seqTable = DefaultSeqTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + seqTable + ` (
    dataset_id TEXT PRIMARY KEY,
    next_scn   INTEGER NOT NULL
);`
}

// StateTableDDL returns the DDL for the replica-side sync state.
func StateTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS ` + StateTable + ` (
    dataset_id   TEXT NOT NULL,
    shadow_table TEXT NOT NULL,
    last_scn     INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER)),
    PRIMARY KEY(dataset_id, shadow_table)
);`
}

// SQLiteShadowLogTriggers returns the trigger DDL statements that capture
// inserts, updates and deletes against a loc shadow table into the log
// table. The payload is a JSON object with dataset_id, id and formula.
func SQLiteShadowLogTriggers(shadowTable, seqTable, logTable string) []string {
	if seqTable == "" {
		seqTable = DefaultSeqTable
	}
	if logTable == "" {
		logTable = DefaultLogTable
	}
	base := "trg_locsync_" + sanitizeIdentifier(shadowTable)
	payload := func(alias string) string {
		return fmt.Sprintf(`json_object('dataset_id', %[1]s.dataset_id, 'id', %[1]s.id, 'formula', %[1]s.formula)`, alias)
	}
	advance := func(alias string) string {
		return fmt.Sprintf(`INSERT INTO %[1]s(dataset_id, next_scn)
    VALUES (%[2]s.dataset_id, 1)
    ON CONFLICT(dataset_id) DO UPDATE SET next_scn = next_scn + 1;`, seqTable, alias)
	}
	when := ""
	trigger := func(suffix, event, op, alias string) string {
		return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_%s AFTER %s ON %s%s
BEGIN
    %s
    INSERT INTO %s(dataset_id, shadow_table, scn, op, document_id, payload)
    VALUES (
        %[8]s.dataset_id,
        '%[4]s',
        (SELECT next_scn FROM %[9]s WHERE dataset_id = %[8]s.dataset_id),
        '%[10]s',
        %[8]s.id,
        %[11]s
    );
END;`, base, suffix, event, shadowTable, when, advance(alias), logTable, alias, seqTable, op, payload(alias))
	}
	insert := trigger("ai", "INSERT", "insert", "NEW")
	update := trigger("au", "UPDATE", "update", "NEW")
	del := trigger("ad", "DELETE", "delete", "OLD")
	// Key changes also retract the old row.
	when = "\nWHEN OLD.dataset_id <> NEW.dataset_id OR OLD.id <> NEW.id"
	move := trigger("am", "UPDATE", "delete", "OLD")
	return []string{insert, update, del, move}
}

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return replacer.Replace(name)
}
