// Package ir holds the value model shared by every other package: attribute
// values and keys, the canonical encoding used for identity derivation, merge
// identities, and merge records.
//
// ir imports nothing internal. Key constraints:
//   - No float values anywhere; numbers are int64
//   - Canonical encoding follows RFC 8785; strings must already be NFC
//   - Identities are derived from content only, never from wall-clock time
package ir
