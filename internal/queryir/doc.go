// Package queryir is a small relational query representation used by
// SQL-backed source relations.
//
// Only what a merge point needs from an origin is expressible: restrict a
// relation by attribute equality, project columns, count. Queries are plain
// values so they can be validated before any SQL is produced.
package queryir
