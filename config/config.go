// Package config loads settings for the loc command line tool from a YAML
// file, a .env file and LOC_* environment variables, in increasing order of
// precedence. Command line flags override all of them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/viant/sqlite-loc/index/loc"
	"github.com/viant/sqlite-loc/store"
)

// Blob store kinds.
const (
	BlobStoreSQLite = "sqlite"
	BlobStoreBadger = "badger"
)

// Config holds CLI settings.
type Config struct {
	// Database is the SQLite database path.
	Database string `yaml:"database"`
	// Table holds the formulas (dataset_id, id, formula).
	Table   string `yaml:"table"`
	Dataset string `yaml:"dataset"`

	CentroidRatio int     `yaml:"centroid_ratio"`
	K             int     `yaml:"k"`
	Radius        float64 `yaml:"radius"`
	// Seed fixes center sampling; nil draws a random seed per build.
	Seed        *uint64 `yaml:"seed"`
	Parallelism int     `yaml:"parallelism"`

	// BlobStore selects where built indexes are persisted: sqlite or badger.
	BlobStore string `yaml:"blob_store"`
	BadgerDir string `yaml:"badger_dir"`

	// Catalog is an optional YAML provenance catalog; when set, provenance
	// lookups from the database annotate the index.
	Catalog string `yaml:"catalog"`
	Verbose bool   `yaml:"verbose"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Database:      "loc.db",
		Table:         store.ItemsTable,
		Dataset:       "default",
		CentroidRatio: loc.DefaultCentroidRatio,
		K:             loc.DefaultK,
		Radius:        0.1,
		BlobStore:     BlobStoreSQLite,
	}
}

// Load returns the defaults overlaid with the YAML file at path (when path
// is non-empty), a .env file in the working directory (when present) and
// LOC_* environment variables.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}
	c.ApplyEnv()
	return c, c.Validate()
}

// ApplyEnv overrides fields from LOC_* environment variables. Malformed
// numbers are ignored.
func (c *Config) ApplyEnv() {
	c.Database = getEnv("LOC_DB", c.Database)
	c.Table = getEnv("LOC_TABLE", c.Table)
	c.Dataset = getEnv("LOC_DATASET", c.Dataset)
	c.CentroidRatio = getEnvInt("LOC_CENTROID_RATIO", c.CentroidRatio)
	c.K = getEnvInt("LOC_K", c.K)
	c.Radius = getEnvFloat("LOC_RADIUS", c.Radius)
	if val := os.Getenv("LOC_SEED"); val != "" {
		if seed, err := strconv.ParseUint(val, 10, 64); err == nil {
			c.Seed = &seed
		}
	}
	c.Parallelism = getEnvInt("LOC_PARALLELISM", c.Parallelism)
	c.BlobStore = strings.ToLower(getEnv("LOC_BLOB_STORE", c.BlobStore))
	c.BadgerDir = getEnv("LOC_BADGER_DIR", c.BadgerDir)
	c.Catalog = getEnv("LOC_CATALOG", c.Catalog)
	c.Verbose = getEnvBool("LOC_VERBOSE", c.Verbose)
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("config: database path is required")
	}
	if c.CentroidRatio < 1 {
		return fmt.Errorf("config: centroid_ratio must be >= 1, got %d", c.CentroidRatio)
	}
	if c.K < 1 {
		return fmt.Errorf("config: k must be >= 1, got %d", c.K)
	}
	if c.Radius < 0 {
		return fmt.Errorf("config: radius must be >= 0, got %v", c.Radius)
	}
	switch c.BlobStore {
	case BlobStoreSQLite, BlobStoreBadger:
	default:
		return fmt.Errorf("config: unknown blob_store %q", c.BlobStore)
	}
	return nil
}

// IndexOptions converts the settings into index build options.
func (c *Config) IndexOptions() []loc.Option {
	opts := []loc.Option{loc.WithCentroidRatio(c.CentroidRatio), loc.WithK(c.K)}
	if c.Seed != nil {
		opts = append(opts, loc.WithSeed(*c.Seed))
	}
	if c.Parallelism > 0 {
		opts = append(opts, loc.WithBuildParallelism(c.Parallelism))
	}
	return opts
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
