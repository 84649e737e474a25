// Package source provides origin relations for merge points.
//
// Memory holds rows in process and is meant for tests and ephemeral use.
// Table reads an SQL table that an upstream pipeline populates; the merge
// point only ever reads it.
package source
