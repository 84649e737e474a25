// Package config declares merge points statically, from YAML or CUE files.
//
// A configuration names each merge point and lists its sources in declaration
// order; a source's position is its origin index. Every source is an SQL table
// in the database that also holds the merge records.
package config

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mergepoint/internal/merge"
	"github.com/roach88/mergepoint/internal/source"
)

// Config is the root of a merge-point configuration file.
type Config struct {
	MergePoints []MergePoint `yaml:"merge_points" json:"merge_points"`
}

// MergePoint declares one merge point.
type MergePoint struct {
	// Name identifies the merge point in the store, the CLI and HTTP routes.
	Name string `yaml:"name" json:"name"`

	// Sources are the origins, in declaration order. Reordering sources
	// changes origin indexes of existing records and is not supported.
	Sources []Source `yaml:"sources" json:"sources"`
}

// Source declares one origin relation.
type Source struct {
	// Name is the stable origin name. Defaults to Table.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Table is the SQL table holding the relation.
	Table string `yaml:"table" json:"table"`

	// Key lists the primary-key columns.
	Key []string `yaml:"key" json:"key"`

	// Attributes lists the non-key columns exposed in the union view.
	Attributes []string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// OriginName returns Name, or Table when no name is set.
func (s Source) OriginName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Table
}

// Load reads a configuration file. The format follows the extension:
// .yaml and .yml are YAML, .cue is CUE. The result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	case ".cue":
		cfg, err = ParseCUE(path, data)
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", ext)
	}
	if err != nil {
		return nil, err
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, &InvalidError{Path: path, Errors: errs}
	}
	return cfg, nil
}

// ParseYAML decodes a YAML configuration. Unknown fields are rejected so a
// typo such as "atributes:" does not silently drop columns.
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// Point returns the merge point declared under name.
func (c *Config) Point(name string) (MergePoint, bool) {
	for _, mp := range c.MergePoints {
		if mp.Name == name {
			return mp, true
		}
	}
	return MergePoint{}, false
}

// Registry binds the merge point's sources to tables in db.
func (mp MergePoint) Registry(db *sql.DB) (*merge.Registry, error) {
	sources := make([]merge.Source, len(mp.Sources))
	for i, s := range mp.Sources {
		tbl, err := source.NewTable(db, source.TableSpec{
			Name:       s.OriginName(),
			Table:      s.Table,
			Key:        s.Key,
			Attributes: s.Attributes,
		})
		if err != nil {
			return nil, fmt.Errorf("merge point %s: %w", mp.Name, err)
		}
		sources[i] = tbl
	}
	return merge.NewRegistry(mp.Name, sources...)
}
