package ir

import (
	"cmp"
	"strconv"
	"strings"
)

// IsNull reports whether v is absent or an explicit null.
func IsNull(v IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(IRNull)
	return ok
}

// IsBlank reports whether v is null, a whitespace-only string or an empty array.
func IsBlank(v IRValue) bool {
	switch val := v.(type) {
	case nil, IRNull:
		return true
	case IRString:
		return strings.TrimSpace(string(val)) == ""
	case IRArray:
		return len(val) == 0
	default:
		return false
	}
}

// Compare orders two scalar values.
//
// The second result is false when the pair is not comparable (different kinds,
// nulls, arrays, objects). Callers treat an incomparable pair as "no match"
// rather than an error. Int and Float compare numerically with each other.
func Compare(a, b IRValue) (int, bool) {
	switch x := a.(type) {
	case IRInt:
		switch y := b.(type) {
		case IRInt:
			return cmp.Compare(x, y), true
		case IRFloat:
			return cmp.Compare(float64(x), float64(y)), true
		}
	case IRFloat:
		switch y := b.(type) {
		case IRInt:
			return cmp.Compare(float64(x), float64(y)), true
		case IRFloat:
			return cmp.Compare(x, y), true
		}
	case IRString:
		if y, ok := b.(IRString); ok {
			return strings.Compare(string(x), string(y)), true
		}
	case IRBool:
		if y, ok := b.(IRBool); ok {
			switch {
			case x == y:
				return 0, true
			case !bool(x):
				return -1, true
			default:
				return 1, true
			}
		}
	case IRRef:
		if y, ok := b.(IRRef); ok {
			return strings.Compare(x.ID, y.ID), true
		}
	}
	return 0, false
}

// Equal reports deep equality. Two nulls are equal; arrays compare element-wise
// in order; numbers compare numerically across Int and Float.
func Equal(a, b IRValue) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch x := a.(type) {
	case IRArray:
		y, ok := b.(IRArray)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case IRObject:
		y, ok := b.(IRObject)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	c, ok := Compare(a, b)
	return ok && c == 0
}

// Stringify renders a value the way string comparisons see it.
// Null renders as the empty string; arrays join their elements with ",".
func Stringify(v IRValue) string {
	switch val := v.(type) {
	case nil, IRNull:
		return ""
	case IRString:
		return string(val)
	case IRInt:
		return strconv.FormatInt(int64(val), 10)
	case IRFloat:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case IRBool:
		return strconv.FormatBool(bool(val))
	case IRRef:
		return val.ID
	case IRArray:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Stringify(elem)
		}
		return strings.Join(parts, ",")
	case IRObject:
		b, err := MarshalCanonical(val)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}
