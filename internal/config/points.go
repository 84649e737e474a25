package config

import (
	"database/sql"
	"fmt"

	"github.com/roach88/mergepoint/internal/merge"
)

// Points is the set of merge tables a configuration declares, in declaration
// order. The first merge point is the default.
type Points struct {
	tables []*merge.Table
	byName map[string]*merge.Table
}

// Build binds every merge point of cfg to the origin tables in db and to the
// merge record store st. opts apply to every table.
func Build(cfg *Config, db *sql.DB, st merge.Store, opts ...merge.Option) (*Points, error) {
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, &InvalidError{Errors: errs}
	}

	p := &Points{byName: make(map[string]*merge.Table, len(cfg.MergePoints))}
	for _, mp := range cfg.MergePoints {
		reg, err := mp.Registry(db)
		if err != nil {
			return nil, err
		}
		t := merge.NewTable(st, reg, opts...)
		p.tables = append(p.tables, t)
		p.byName[mp.Name] = t
	}
	return p, nil
}

// NewPoints wraps already built tables, for callers that assemble registries
// themselves.
func NewPoints(tables ...*merge.Table) (*Points, error) {
	p := &Points{byName: make(map[string]*merge.Table, len(tables))}
	for _, t := range tables {
		if _, dup := p.byName[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate merge point %q", t.Name())
		}
		p.tables = append(p.tables, t)
		p.byName[t.Name()] = t
	}
	return p, nil
}

// Lookup returns the named merge table. An empty name selects the default.
func (p *Points) Lookup(name string) (*merge.Table, error) {
	if name == "" {
		if len(p.tables) == 0 {
			return nil, fmt.Errorf("no merge points configured")
		}
		return p.tables[0], nil
	}
	t, ok := p.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown merge point %q", name)
	}
	return t, nil
}

// Names returns the merge point names in declaration order.
func (p *Points) Names() []string {
	names := make([]string, len(p.tables))
	for i, t := range p.tables {
		names[i] = t.Name()
	}
	return names
}
