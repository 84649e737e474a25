// Package store provides SQLite-backed durable storage for merge records.
//
// The store keeps two tables:
//   - merge_records: one row per merge identity, keyed by (merge_point, identity)
//   - merge_batches: one row per committed insert batch, for audit
//
// # Invariants
//
// Identity stability:
//   - A stored identity never changes its binding. InsertBatch checks every
//     existing identity inside the write transaction and aborts the whole
//     batch on a divergent binding.
//   - A binding (origin, origin key) has exactly one identity, enforced by a
//     unique index.
//
// Logical time:
//   - Ordering uses seq INTEGER (logical clock), never timestamps.
//   - Reads return ORDER BY seq ASC, identity COLLATE BINARY ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Write transactions take the write lock up front
//
// Origin keys are persisted as RFC 8785 canonical JSON (ir.MarshalCanonical)
// so the stored text is byte-stable across processes.
package store
