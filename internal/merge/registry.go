package merge

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/mergepoint/internal/ir"
)

// Source is an origin relation a merge point may bind identities to.
// Implementations live outside this package; see internal/source.
type Source interface {
	// Name is the stable origin name recorded on every binding.
	Name() string

	// KeySchema is the ordered primary-key attribute set of the relation.
	KeySchema() []string

	// Attributes lists the non-key attributes the relation contributes to
	// the union view.
	Attributes() []string

	// Matches reports whether key, already restricted to KeySchema, names
	// a row of the relation.
	Matches(ctx context.Context, key ir.Object) (bool, error)

	// ResolveFullKey returns the full primary key of the row key names,
	// or ErrOriginNotFound.
	ResolveFullKey(ctx context.Context, key ir.Object) (ir.Object, error)

	// NonKeyAttributes returns the live non-key attribute values of the row
	// identified by fullKey, or ErrOriginNotFound.
	NonKeyAttributes(ctx context.Context, fullKey ir.Object) (ir.Object, error)
}

// Resolution is the outcome of resolving one candidate key.
type Resolution struct {
	Index  int
	Source Source
	Key    ir.Object // Full origin key
}

// Binding returns the binding a record for this resolution carries.
func (r Resolution) Binding() ir.Binding {
	return ir.Binding{OriginIndex: r.Index, Origin: r.Source.Name(), Key: r.Key}
}

// Registry is the fixed, ordered list of sources declared for one merge
// point. It is immutable after construction and safe for concurrent use.
type Registry struct {
	name     string
	sources  []Source
	keys     []map[string]struct{}
	headings []map[string]struct{}
}

// NewRegistry declares a merge point over sources, in declaration order.
// The origin index of a source is its position in sources.
func NewRegistry(name string, sources ...Source) (*Registry, error) {
	if name == "" {
		return nil, fmt.Errorf("new registry: merge point name is required")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("new registry %s: at least one source is required", name)
	}

	r := &Registry{
		name:     name,
		sources:  slices.Clone(sources),
		keys:     make([]map[string]struct{}, len(sources)),
		headings: make([]map[string]struct{}, len(sources)),
	}

	seen := make(map[string]bool, len(sources))
	for i, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("new registry %s: source %d is nil", name, i)
		}
		if src.Name() == "" {
			return nil, fmt.Errorf("new registry %s: source %d has no name", name, i)
		}
		if seen[src.Name()] {
			return nil, fmt.Errorf("new registry %s: duplicate source %q", name, src.Name())
		}
		seen[src.Name()] = true

		keySchema := src.KeySchema()
		if len(keySchema) == 0 {
			return nil, fmt.Errorf("new registry %s: source %q has an empty key schema", name, src.Name())
		}

		r.keys[i] = make(map[string]struct{}, len(keySchema))
		r.headings[i] = make(map[string]struct{}, len(keySchema)+len(src.Attributes()))
		for _, k := range keySchema {
			if _, dup := r.keys[i][k]; dup {
				return nil, fmt.Errorf("new registry %s: source %q repeats key attribute %q", name, src.Name(), k)
			}
			r.keys[i][k] = struct{}{}
			r.headings[i][k] = struct{}{}
		}
		for _, a := range src.Attributes() {
			if _, dup := r.headings[i][a]; dup {
				return nil, fmt.Errorf("new registry %s: source %q declares attribute %q twice", name, src.Name(), a)
			}
			r.headings[i][a] = struct{}{}
		}
	}

	return r, nil
}

// Name returns the merge point name.
func (r *Registry) Name() string { return r.name }

// Len returns the number of declared sources.
func (r *Registry) Len() int { return len(r.sources) }

// Sources returns the declared sources in declaration order.
func (r *Registry) Sources() []Source { return slices.Clone(r.sources) }

// Source returns the source declared at index.
func (r *Registry) Source(index int) (Source, bool) {
	if index < 0 || index >= len(r.sources) {
		return nil, false
	}
	return r.sources[index], true
}

// IndexOf returns the origin index of the named source.
func (r *Registry) IndexOf(name string) (int, bool) {
	for i, src := range r.sources {
		if src.Name() == name {
			return i, true
		}
	}
	return -1, false
}

// Columns returns the union view schema: every key attribute of any source,
// then every non-key attribute that is not also a key attribute. Both lists
// are sorted by name.
func (r *Registry) Columns() (keys, attributes []string) {
	keySet := make(map[string]struct{})
	for _, ks := range r.keys {
		for k := range ks {
			keySet[k] = struct{}{}
		}
	}
	attrSet := make(map[string]struct{})
	for _, src := range r.sources {
		for _, a := range src.Attributes() {
			if _, isKey := keySet[a]; !isKey {
				attrSet[a] = struct{}{}
			}
		}
	}
	return sortedNames(keySet), sortedNames(attrSet)
}

func sortedNames(set map[string]struct{}) []string {
	obj := make(ir.Object, len(set))
	for k := range set {
		obj[k] = ir.Null{}
	}
	return obj.SortedKeys()
}

// candidate reports whether source i can own key: the key must cover the
// source's whole key schema and carry no attribute outside its heading.
func (r *Registry) candidate(i int, key ir.Object) bool {
	for k := range r.keys[i] {
		if _, ok := key[k]; !ok {
			return false
		}
	}
	for name := range key {
		if _, ok := r.headings[i][name]; !ok {
			return false
		}
	}
	return true
}

// Resolve finds the single declared source that owns candidate.
//
// Sources are probed in declaration order. Every source is probed even after
// a match so that overlapping declarations are detected rather than resolved
// by order. Non-key attributes named by candidate restrict the match: a row
// whose live values differ does not match. Returns an orphan-key *Error when
// nothing matches and a mutual exclusivity *Error when more than one source
// does. Failures of the sources themselves are returned wrapped and are not
// *Error.
func (r *Registry) Resolve(ctx context.Context, candidate ir.Object) (Resolution, error) {
	if len(candidate) == 0 {
		return Resolution{}, NewInvalidKeyError(r.name, candidate, "candidate key has no attributes")
	}

	var matches []Resolution
	for i, src := range r.sources {
		if !r.candidate(i, candidate) {
			continue
		}
		restricted := candidate.Project(src.KeySchema())

		ok, err := src.Matches(ctx, restricted)
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve: source %s: %w", src.Name(), err)
		}
		if !ok {
			continue
		}

		full, err := src.ResolveFullKey(ctx, restricted)
		if errors.Is(err, ErrOriginNotFound) {
			// Deleted between the two probes; treat as not matching.
			continue
		}
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve: source %s: %w", src.Name(), err)
		}
		ok, err = nonKeyValuesHold(ctx, src, full, candidate)
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve: source %s: %w", src.Name(), err)
		}
		if !ok {
			continue
		}
		matches = append(matches, Resolution{Index: i, Source: src, Key: full})
	}

	switch len(matches) {
	case 0:
		return Resolution{}, NewOrphanKeyError(r.name, candidate)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Source.Name()
		}
		return Resolution{}, NewMutualExclusivityError(r.name, candidate, names)
	}
}

// nonKeyValuesHold reports whether every non-key attribute of candidate equals
// the live value in the row identified by full. A row deleted since the key
// probe does not hold.
func nonKeyValuesHold(ctx context.Context, src Source, full, candidate ir.Object) (bool, error) {
	keys := make(map[string]struct{}, len(src.KeySchema()))
	for _, k := range src.KeySchema() {
		keys[k] = struct{}{}
	}
	var extra []string
	for name := range candidate {
		if _, ok := keys[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(extra) == 0 {
		return true, nil
	}

	live, err := src.NonKeyAttributes(ctx, full)
	if errors.Is(err, ErrOriginNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, name := range extra {
		if !ir.Equal(candidate[name], live[name]) {
			return false, nil
		}
	}
	return true, nil
}
