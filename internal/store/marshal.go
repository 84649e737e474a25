package store

import (
	"fmt"

	"github.com/roach88/mergepoint/internal/ir"
)

// recordRow is the column form of one merge record.
type recordRow struct {
	identity    string
	originIndex int
	originName  string
	originKey   string
}

// encodeRecord converts a record to its column form. The origin key is stored
// as canonical JSON so equal bindings produce byte-equal rows.
func encodeRecord(rec ir.MergeRecord) (recordRow, error) {
	if rec.Identity.IsZero() {
		return recordRow{}, fmt.Errorf("record has a zero identity")
	}
	if rec.Binding.Origin == "" {
		return recordRow{}, fmt.Errorf("record %s has no origin", rec.Identity)
	}
	if rec.Binding.OriginIndex < 0 {
		return recordRow{}, fmt.Errorf("record %s has negative origin index %d", rec.Identity, rec.Binding.OriginIndex)
	}
	if len(rec.Binding.Key) == 0 {
		return recordRow{}, fmt.Errorf("record %s has an empty origin key", rec.Identity)
	}
	key, err := ir.MarshalCanonical(rec.Binding.Key)
	if err != nil {
		return recordRow{}, fmt.Errorf("record %s: marshal origin key: %w", rec.Identity, err)
	}
	return recordRow{
		identity:    rec.Identity.String(),
		originIndex: rec.Binding.OriginIndex,
		originName:  rec.Binding.Origin,
		originKey:   string(key),
	}, nil
}

// decodeBinding parses the stored binding columns.
func decodeBinding(originIndex int, originName, originKey string) (ir.Binding, error) {
	key, err := ir.ParseObject([]byte(originKey))
	if err != nil {
		return ir.Binding{}, fmt.Errorf("unmarshal origin key: %w", err)
	}
	return ir.Binding{OriginIndex: originIndex, Origin: originName, Key: key}, nil
}
