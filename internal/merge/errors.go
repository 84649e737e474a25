package merge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/mergepoint/internal/ir"
)

// ErrNotFound is returned when a merge record does not exist.
var ErrNotFound = errors.New("merge record not found")

// ErrOriginNotFound is returned by a Source when no origin row matches a key.
var ErrOriginNotFound = errors.New("origin row not found")

// ErrOriginExists is returned by Purge for a record whose origin row still
// exists.
var ErrOriginExists = errors.New("origin row still exists")

// ErrorCode categorises merge errors.
type ErrorCode string

const (
	// CodeOrphanKey: the candidate key matches no declared source.
	CodeOrphanKey ErrorCode = "ORPHAN_KEY"

	// CodeMutualExclusivity: the candidate key matches more than one source.
	CodeMutualExclusivity ErrorCode = "MUTUAL_EXCLUSIVITY"

	// CodeIdentityConflict: the derived identity is already bound to a
	// different origin.
	CodeIdentityConflict ErrorCode = "IDENTITY_CONFLICT"

	// CodeInvalidKey: the candidate key is empty or not encodable.
	CodeInvalidKey ErrorCode = "INVALID_KEY"
)

// Error is a validation or integrity failure of a merge operation.
// It always carries the offending candidate keys so upstream data can be
// corrected. None of these errors are retried.
type Error struct {
	Code ErrorCode

	Message string

	// MergePoint names the merge point the operation ran against.
	MergePoint string

	// Keys are the offending candidate keys, as supplied by the caller.
	Keys []ir.Object

	// Sources names the declared sources that matched (exclusivity) or the
	// source of the new binding (conflict).
	Sources []string

	// Identity is set for identity conflicts.
	Identity ir.Identity

	// Existing is the binding already stored under Identity, for conflicts.
	Existing *ir.Binding
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var details []string
	if e.MergePoint != "" {
		details = append(details, "merge_point="+e.MergePoint)
	}
	if len(e.Keys) > 0 {
		details = append(details, "keys="+formatKeys(e.Keys))
	}
	if len(e.Sources) > 0 {
		details = append(details, "sources="+strings.Join(e.Sources, ","))
	}
	if !e.Identity.IsZero() {
		details = append(details, "identity="+e.Identity.String())
	}
	if len(details) > 0 {
		b.WriteString(" (" + strings.Join(details, ", ") + ")")
	}
	return b.String()
}

func formatKeys(keys []ir.Object) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		data, err := json.Marshal(k)
		if err != nil {
			parts[i] = fmt.Sprint(map[string]ir.Value(k))
			continue
		}
		parts[i] = string(data)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func hasCode(err error, code ErrorCode) bool {
	for _, me := range Errors(err) {
		if me.Code == code {
			return true
		}
	}
	return false
}

// IsOrphanKey reports whether err contains an orphan-key failure.
func IsOrphanKey(err error) bool { return hasCode(err, CodeOrphanKey) }

// IsMutualExclusivity reports whether err contains a mutual exclusivity violation.
func IsMutualExclusivity(err error) bool { return hasCode(err, CodeMutualExclusivity) }

// IsIdentityConflict reports whether err contains an identity conflict.
func IsIdentityConflict(err error) bool { return hasCode(err, CodeIdentityConflict) }

// IsInvalidKey reports whether err contains an invalid-key failure.
func IsInvalidKey(err error) bool { return hasCode(err, CodeInvalidKey) }

// Errors flattens err into the merge errors it carries, in order. It walks
// both single wraps and errors.Join trees.
func Errors(err error) []*Error {
	switch e := err.(type) {
	case nil:
		return nil
	case *Error:
		return []*Error{e}
	case interface{ Unwrap() []error }:
		var out []*Error
		for _, sub := range e.Unwrap() {
			out = append(out, Errors(sub)...)
		}
		return out
	case interface{ Unwrap() error }:
		return Errors(e.Unwrap())
	default:
		return nil
	}
}

// NewOrphanKeyError reports a candidate key that matches no declared source.
func NewOrphanKeyError(point string, key ir.Object) *Error {
	return &Error{
		Code:       CodeOrphanKey,
		Message:    "candidate key matches no declared source",
		MergePoint: point,
		Keys:       []ir.Object{key},
	}
}

// NewMutualExclusivityError reports a candidate key matching several sources.
func NewMutualExclusivityError(point string, key ir.Object, sources []string) *Error {
	return &Error{
		Code:       CodeMutualExclusivity,
		Message:    fmt.Sprintf("candidate key matches %d declared sources", len(sources)),
		MergePoint: point,
		Keys:       []ir.Object{key},
		Sources:    sources,
	}
}

// NewIdentityConflictError reports an identity already bound elsewhere.
func NewIdentityConflictError(point string, id ir.Identity, existing, attempted ir.Binding) *Error {
	return &Error{
		Code:       CodeIdentityConflict,
		Message:    fmt.Sprintf("identity already bound to origin %s", existing.Origin),
		MergePoint: point,
		Keys:       []ir.Object{attempted.Key},
		Sources:    []string{attempted.Origin},
		Identity:   id,
		Existing:   &existing,
	}
}

// NewInvalidKeyError reports a malformed candidate key.
func NewInvalidKeyError(point string, key ir.Object, reason string) *Error {
	return &Error{
		Code:       CodeInvalidKey,
		Message:    reason,
		MergePoint: point,
		Keys:       []ir.Object{key},
	}
}
