package provenance

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Database describes one source database.
type Database struct {
	Name         string `yaml:"name" db:"name"`
	Experimental bool   `yaml:"experimental" db:"experimental"`
	Structures   bool   `yaml:"structures" db:"structures"`
}

// Catalog maps database names to their description.
type Catalog map[string]Database

// NewCatalog builds a catalog from a list of databases.
func NewCatalog(dbs ...Database) Catalog {
	c := make(Catalog, len(dbs))
	for _, db := range dbs {
		c[db.Name] = db
	}
	return c
}

// Flags reports whether any of the named databases is experimental and
// whether any carries structures. Unknown names contribute nothing.
func (c Catalog) Flags(names []string) (experimental, structures bool) {
	for _, name := range names {
		db, ok := c[name]
		if !ok {
			continue
		}
		experimental = experimental || db.Experimental
		structures = structures || db.Structures
	}
	return experimental, structures
}

// ReadCatalog decodes a YAML list of databases:
//
//	- name: icsd
//	  experimental: true
//	  structures: true
func ReadCatalog(r io.Reader) (Catalog, error) {
	var dbs []Database
	if err := yaml.NewDecoder(r).Decode(&dbs); err != nil {
		if err == io.EOF {
			return Catalog{}, nil
		}
		return nil, fmt.Errorf("provenance: decode catalog: %w", err)
	}
	for i, db := range dbs {
		if db.Name == "" {
			return nil, fmt.Errorf("provenance: catalog entry %d has no name", i)
		}
	}
	return NewCatalog(dbs...), nil
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCatalog(f)
}
