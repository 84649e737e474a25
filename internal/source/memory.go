package source

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

var _ merge.Source = (*Memory)(nil)

// Memory is an in-process origin relation keyed by its key schema.
// Safe for concurrent use.
type Memory struct {
	name  string
	key   []string
	attrs []string

	mu   sync.RWMutex
	rows map[string]ir.Object // canonical full key -> row
}

// NewMemory creates an empty relation.
func NewMemory(name string, key, attributes []string) *Memory {
	return &Memory{
		name:  name,
		key:   slices.Clone(key),
		attrs: slices.Clone(attributes),
		rows:  make(map[string]ir.Object),
	}
}

// Name implements merge.Source.
func (m *Memory) Name() string { return m.name }

// KeySchema implements merge.Source.
func (m *Memory) KeySchema() []string { return slices.Clone(m.key) }

// Attributes implements merge.Source.
func (m *Memory) Attributes() []string { return slices.Clone(m.attrs) }

// Put inserts or replaces a row. The row must carry every key attribute and
// nothing outside the relation's heading.
func (m *Memory) Put(row ir.Object) error {
	for _, k := range m.key {
		if ir.IsNull(row[k]) {
			return fmt.Errorf("%s: row is missing key attribute %q", m.name, k)
		}
	}
	for name := range row {
		if !slices.Contains(m.key, name) && !slices.Contains(m.attrs, name) {
			return fmt.Errorf("%s: unknown attribute %q", m.name, name)
		}
	}

	id, err := m.rowID(row)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id] = row.Clone()
	return nil
}

// MustPut is like Put but panics on error. Use only in tests.
func (m *Memory) MustPut(row ir.Object) {
	if err := m.Put(row); err != nil {
		panic(err)
	}
}

// Delete removes the row with the given full key and reports whether it existed.
func (m *Memory) Delete(key ir.Object) bool {
	id, err := m.rowID(key)
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	delete(m.rows, id)
	return ok
}

// Len returns the number of rows.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Matches implements merge.Source.
func (m *Memory) Matches(ctx context.Context, key ir.Object) (bool, error) {
	found, err := m.find(key)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// ResolveFullKey implements merge.Source. A partial key matching several rows
// is an error, not a match.
func (m *Memory) ResolveFullKey(ctx context.Context, key ir.Object) (ir.Object, error) {
	found, err := m.find(key)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%s: %w", m.name, merge.ErrOriginNotFound)
	case 1:
		return found[0].Project(m.key), nil
	default:
		return nil, fmt.Errorf("%s: partial key matches %d rows", m.name, len(found))
	}
}

// NonKeyAttributes implements merge.Source.
func (m *Memory) NonKeyAttributes(ctx context.Context, fullKey ir.Object) (ir.Object, error) {
	id, err := m.rowID(fullKey)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	row, ok := m.rows[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", m.name, merge.ErrOriginNotFound)
	}

	out := make(ir.Object, len(m.attrs))
	for _, a := range m.attrs {
		v, ok := row[a]
		if !ok {
			v = ir.Null{}
		}
		out[a] = v
	}
	return out, nil
}

// find returns the rows whose attributes equal every attribute of key.
func (m *Memory) find(key ir.Object) ([]ir.Object, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%s: empty key", m.name)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if covers(key, m.key) {
		id, err := m.rowID(key)
		if err != nil {
			return nil, err
		}
		row, ok := m.rows[id]
		if !ok || !restrictionHolds(row, key) {
			return nil, nil
		}
		return []ir.Object{row}, nil
	}

	var found []ir.Object
	for _, row := range m.rows {
		if restrictionHolds(row, key) {
			found = append(found, row)
		}
	}
	return found, nil
}

func (m *Memory) rowID(row ir.Object) (string, error) {
	canonical, err := ir.CanonicalKey(row.Project(m.key))
	if err != nil {
		return "", fmt.Errorf("%s: %w", m.name, err)
	}
	return string(canonical), nil
}

func covers(key ir.Object, schema []string) bool {
	for _, k := range schema {
		if _, ok := key[k]; !ok {
			return false
		}
	}
	return true
}

func restrictionHolds(row, key ir.Object) bool {
	for k, v := range key {
		if !ir.Equal(row[k], v) {
			return false
		}
	}
	return true
}
