// Package merge implements merge points: one identity space over several
// independently populated origin relations.
//
// A merge point is a Registry of declared sources and a Table of merge
// records. Table.Insert resolves candidate keys against the registry, derives
// a content identity per origin key and commits the batch atomically.
// Table.UnionView presents every origin's attributes under that identity.
//
// # Invariants
//
//   - Every identity is bound to exactly one origin. A Binding is stored by
//     value on each record, so a second binding cannot be represented.
//   - A candidate key must match exactly one declared source. Zero matches is
//     an orphan key, more than one is a mutual exclusivity violation; either
//     aborts the whole batch before anything is written.
//   - Re-inserting a key that is already merged with the same binding is a
//     no-op and returns the same identity. The same identity with a different
//     binding is an identity conflict.
//   - The union view is computed from live origin data on every call.
//
// Upstream deletion of an origin row is not enforced synchronously. The
// record stays; UnionView flags it dangling and Reconcile reports it so an
// operator can Purge it.
package merge
