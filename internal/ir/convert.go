package ir

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the declared scalar type of a property.
type Kind string

// Declared property kinds.
const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindRef    Kind = "ref"
)

// ErrConversion is wrapped by every Convert failure.
var ErrConversion = errors.New("value conversion failed")

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindString, KindInt, KindFloat, KindBool, KindRef:
		return k, nil
	case "":
		return KindString, nil
	default:
		return "", fmt.Errorf("unknown property kind %q", s)
	}
}

// Numeric reports whether values of this kind are stored and ordered as numbers.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat || k == KindBool
}

// Convert converts a scalar to the given kind on a best-effort basis.
//
// Null converts to null. Arrays are not converted here; callers convert
// elements individually. A failure wraps ErrConversion and leaves the caller
// free to fall back to the value's string form.
func Convert(v IRValue, kind Kind) (IRValue, error) {
	if IsNull(v) {
		return IRNull{}, nil
	}
	if _, ok := v.(IRArray); ok {
		return nil, fmt.Errorf("%w: array cannot convert to %s", ErrConversion, kind)
	}

	switch kind {
	case KindString:
		if s, ok := v.(IRString); ok {
			return s, nil
		}
		return IRString(Stringify(v)), nil

	case KindInt:
		switch val := v.(type) {
		case IRInt:
			return val, nil
		case IRFloat:
			f := float64(val)
			if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
				return nil, fmt.Errorf("%w: %v is not integral", ErrConversion, f)
			}
			return IRInt(int64(f)), nil
		case IRBool:
			if val {
				return IRInt(1), nil
			}
			return IRInt(0), nil
		case IRString:
			n, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an int", ErrConversion, string(val))
			}
			return IRInt(n), nil
		}

	case KindFloat:
		switch val := v.(type) {
		case IRFloat:
			return val, nil
		case IRInt:
			return IRFloat(float64(val)), nil
		case IRString:
			f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a float", ErrConversion, string(val))
			}
			return IRFloat(f), nil
		}

	case KindBool:
		switch val := v.(type) {
		case IRBool:
			return val, nil
		case IRInt:
			return IRBool(val != 0), nil
		case IRString:
			b, err := strconv.ParseBool(strings.TrimSpace(string(val)))
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a bool", ErrConversion, string(val))
			}
			return IRBool(b), nil
		}

	case KindRef:
		switch val := v.(type) {
		case IRRef:
			return val, nil
		case IRString:
			id := strings.TrimSpace(string(val))
			if id == "" {
				return IRNull{}, nil
			}
			return IRRef{ID: id}, nil
		}

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrConversion, kind)
	}

	return nil, fmt.Errorf("%w: %T cannot convert to %s", ErrConversion, v, kind)
}
