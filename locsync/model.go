package locsync

// LogEntry mirrors a single row in loc_shadow_log on the upstream database.
type LogEntry struct {
	DatasetID   string `db:"dataset_id"`
	ShadowTable string `db:"shadow_table"`
	SCN         int64  `db:"scn"`
	Op          string `db:"op"`
	DocumentID  string `db:"document_id"`
	Payload     []byte `db:"payload"`
	CreatedAt   int64  `db:"created_at"` // unix seconds
}

// Row is the JSON payload of a log entry.
type Row struct {
	DatasetID string `json:"dataset_id"`
	ID        string `json:"id"`
	Formula   string `json:"formula"`
}

// SyncState describes the latest SCN applied locally for a given dataset/shadow pair.
// It corresponds to rows in loc_sync_state on downstream SQLite replicas.
type SyncState struct {
	DatasetID   string `db:"dataset_id"`
	ShadowTable string `db:"shadow_table"`
	LastSCN     int64  `db:"last_scn"`
	UpdatedAt   int64  `db:"updated_at"` // unix seconds
}

// Config captures the settings of one replication run.
type Config struct {
	// DatasetID identifies the dataset slice being synchronized.
	DatasetID string

	// ShadowTable is the upstream shadow table name as recorded in the log
	// (e.g. "_loc_materials").
	ShadowTable string

	// ReplicaTable is the local shadow table; defaults to ShadowTable.
	ReplicaTable string

	// BatchSize controls how many log entries to fetch/apply per iteration.
	BatchSize int
}

// DefaultBatchSize applies when Config.BatchSize is not positive.
const DefaultBatchSize = 500

func (c Config) replicaTable() string {
	if c.ReplicaTable != "" {
		return c.ReplicaTable
	}
	return c.ShadowTable
}

func (c Config) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}
