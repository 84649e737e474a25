package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DomainIdentity separates merge identities from any other SHA-256 use.
// The version suffix leaves room for a future encoding change.
const DomainIdentity = "mergepoint/identity/v1"

// IdentitySize is the width of a merge identity in bytes (128 bits).
const IdentitySize = 16

// Identity is the content-derived primary key of a merge record.
// The zero value is not a valid identity.
type Identity [IdentitySize]byte

// String returns the 32 character lowercase hex form.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// UUID returns id as an RFC 4122 UUID value for systems that store identities
// in uuid columns. The bytes are unchanged; version bits are not rewritten.
func (id Identity) UUID() uuid.UUID {
	return uuid.UUID(id)
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseIdentity parses the 32 character hex form. The hyphenated UUID form is
// accepted too; output is always the canonical lowercase hex form.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 36 {
		u, err := uuid.Parse(s)
		if err != nil {
			return id, fmt.Errorf("parse identity %q: %w", s, err)
		}
		return Identity(u), nil
	}
	if len(s) != 2*IdentitySize {
		return id, fmt.Errorf("parse identity %q: want %d hex characters, got %d", s, 2*IdentitySize, len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("parse identity %q: %w", s, err)
	}
	return id, nil
}

// MustParseIdentity is like ParseIdentity but panics on error.
// Use only in tests.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// CanonicalKey encodes an origin key for identity derivation.
//
// Attribute names are sorted by UTF-16 code units and each attribute is written
// as its canonical JSON name, followed by ":" and the canonical JSON value
// unless the value is null. A present-but-null attribute contributes its name
// only, so a key padded with nulls stays distinguishable from one without the
// attribute. Entries are joined with "," and wrapped in braces:
//
//	{"s":3}
//	{"p":0,"s":3}
//	{"p","s":3}        (p present but null)
//
// Names and string values are written unmodified. A name or string that is
// not in Unicode NFC form is an error, so canonically equivalent spellings of
// one text can never collide on an identity.
//
// This encoding is a wire format. Changing it changes every identity.
func CanonicalKey(key Object) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("canonical key: key has no attributes")
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range key.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if name == "" {
			return nil, fmt.Errorf("canonical key: empty attribute name")
		}
		if err := writeCanonicalString(&buf, name); err != nil {
			return nil, fmt.Errorf("canonical key: name %q: %w", name, err)
		}
		v := key[name]
		if IsNull(v) {
			continue
		}
		buf.WriteByte(':')
		if err := writeCanonical(&buf, v); err != nil {
			return nil, fmt.Errorf("canonical key: attribute %q: %w", name, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Derive computes the merge identity of an origin key:
//
//	SHA-256(DomainIdentity || 0x00 || CanonicalKey(key))[:16]
//
// The null byte separates the domain from the data so neither can be shifted
// into the other. Derive is pure and stable across processes.
func Derive(key Object) (Identity, error) {
	canonical, err := CanonicalKey(key)
	if err != nil {
		return Identity{}, fmt.Errorf("derive identity: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainIdentity))
	h.Write([]byte{0x00})
	h.Write(canonical)

	var id Identity
	copy(id[:], h.Sum(nil))
	return id, nil
}

// MustDerive is like Derive but panics on error.
// Use only in tests or when the key is known to be valid.
func MustDerive(key Object) Identity {
	id, err := Derive(key)
	if err != nil {
		panic(err)
	}
	return id
}
