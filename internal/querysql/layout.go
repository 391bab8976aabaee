package querysql

import (
	"github.com/roach88/graphq/internal/ir"
	"github.com/roach88/graphq/internal/query"
)

// Value type tags stored in props.vtype.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeRef    = "ref"
	TypeObject = "object"
	TypeArray  = "array"
)

// SummaryPos is the position of the per-property summary row.
const SummaryPos = -1

// PropRow is one row of the props table.
//
// Every non-null property has a summary row at SummaryPos: VType is "array"
// for arrays (VNum holds the length) or the scalar's type, and Blank records
// whether the raw value is blank. The flattened, non-null elements follow at
// positions 0..n-1, each with its string form in VText, its case-folded form
// in VFold, and its numeric form in VNum for numbers and booleans.
type PropRow struct {
	Key   string
	Pos   int
	VType string
	VText *string
	VFold *string
	VNum  *float64
	Blank bool
}

// EncodeProps returns the props rows of an entity in key order.
func EncodeProps(props ir.IRObject) []PropRow {
	var rows []PropRow
	for _, key := range props.SortedKeys() {
		raw := props[key]
		if ir.IsNull(raw) {
			continue
		}
		summary := PropRow{Key: key, Pos: SummaryPos, VType: ValueType(raw), Blank: ir.IsBlank(raw)}
		if arr, ok := raw.(ir.IRArray); ok {
			n := float64(len(arr))
			summary.VNum = &n
		}
		rows = append(rows, summary)

		for i, elem := range ir.Flatten(raw) {
			text := ir.Stringify(elem)
			folded := query.Fold(text)
			rows = append(rows, PropRow{
				Key:   key,
				Pos:   i,
				VType: ValueType(elem),
				VText: &text,
				VFold: &folded,
				VNum:  numeric(elem),
			})
		}
	}
	return rows
}

// ValueType returns the vtype tag of a value.
func ValueType(v ir.IRValue) string {
	switch v.(type) {
	case ir.IRString:
		return TypeString
	case ir.IRInt:
		return TypeInt
	case ir.IRFloat:
		return TypeFloat
	case ir.IRBool:
		return TypeBool
	case ir.IRRef:
		return TypeRef
	case ir.IRArray:
		return TypeArray
	default:
		return TypeObject
	}
}

func numeric(v ir.IRValue) *float64 {
	var n float64
	switch val := v.(type) {
	case ir.IRInt:
		n = float64(val)
	case ir.IRFloat:
		n = float64(val)
	case ir.IRBool:
		if val {
			n = 1
		}
	default:
		return nil
	}
	return &n
}
