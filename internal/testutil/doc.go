// Package testutil provides deterministic fixtures shared by tests: sequential
// batch ids and a two-method position-tracking merge point backed by SQLite.
package testutil
