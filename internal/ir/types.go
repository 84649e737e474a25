package ir

// Binding ties a merge identity to exactly one origin. It is the tagged union
// of all declared origins: OriginIndex selects the source, Key is that source's
// full origin key. A record holds one Binding by value, so "exactly one origin
// populated" holds by construction.
type Binding struct {
	OriginIndex int    `json:"origin_index"`
	Origin      string `json:"origin"`
	Key         Object `json:"origin_key"`
}

// Same reports whether two bindings name the same origin row.
func (b Binding) Same(other Binding) bool {
	return b.OriginIndex == other.OriginIndex &&
		b.Origin == other.Origin &&
		Equal(b.Key, other.Key)
}

// MergeRecord is one row of a merge table.
// Records are created by a batch insert and never updated in place.
type MergeRecord struct {
	Identity Identity `json:"identity"`
	Binding  Binding  `json:"binding"`
	Seq      int64    `json:"seq"`      // Logical insertion order within the merge point
	BatchID  string   `json:"batch_id"` // UUIDv7 of the committing batch
}
