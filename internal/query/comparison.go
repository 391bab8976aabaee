package query

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
)

// Op is a comparison operator.
type Op string

const (
	OpEqual          Op = "eq"
	OpNotEqual       Op = "ne"
	OpGreater        Op = "gt"
	OpGreaterOrEqual Op = "ge"
	OpLess           Op = "lt"
	OpLessOrEqual    Op = "le"
	OpStartsWith     Op = "starts_with"
	OpEndsWith       Op = "ends_with"
	OpContains       Op = "contains"
	OpEqualFold      Op = "eq_fold"
	OpStartsWithFold Op = "starts_with_fold"
	OpEndsWithFold   Op = "ends_with_fold"
	OpContainsFold   Op = "contains_fold"
	OpMatches        Op = "matches"
	OpIsNull         Op = "is_null"
	OpIsNotNull      Op = "is_not_null"
)

var knownOps = map[Op]bool{
	OpEqual: true, OpNotEqual: true, OpGreater: true, OpGreaterOrEqual: true,
	OpLess: true, OpLessOrEqual: true, OpStartsWith: true, OpEndsWith: true,
	OpContains: true, OpEqualFold: true, OpStartsWithFold: true, OpEndsWithFold: true,
	OpContainsFold: true, OpMatches: true, OpIsNull: true, OpIsNotNull: true,
}

// ParseOp validates an operator name.
func ParseOp(s string) (Op, error) {
	op := Op(s)
	if !knownOps[op] {
		return "", fmt.Errorf("unknown comparison operator %q", s)
	}
	return op, nil
}

// Folding reports whether the operator compares case-insensitively.
func (op Op) Folding() bool {
	switch op {
	case OpEqualFold, OpStartsWithFold, OpEndsWithFold, OpContainsFold:
		return true
	}
	return false
}

// Textual reports whether the operator compares string forms.
func (op Op) Textual() bool {
	switch op {
	case OpStartsWith, OpEndsWith, OpContains, OpMatches:
		return true
	}
	return op.Folding()
}

// fold applies Unicode case folding.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Fold returns the case-folded form used by case-insensitive comparisons and
// fulltext search. Indexes store it alongside text values.
func Fold(s string) string { return fold(s) }

// Comparison tests a property against one value.
//
// Collection properties match when any element satisfies the operator, except
// OpNotEqual, which requires that no element equals the value. A null
// property only satisfies OpIsNull and OpNotEqual.
type Comparison struct {
	Key   graph.PropertyKey
	Op    Op
	Value ir.IRValue

	// StringMode is set when Value could not be converted to the key's kind;
	// elements are then compared by their string forms.
	StringMode bool

	reOnce sync.Once
	re     *regexp.Regexp
	reErr  error
}

func (*Comparison) queryNode() {}

// NewComparison converts value to the key's kind. A conversion failure is
// returned as a Warning alongside a usable string-mode predicate.
func NewComparison(key graph.PropertyKey, op Op, value ir.IRValue) (*Comparison, *Warning) {
	c := &Comparison{Key: key, Op: op, Value: value}
	if op == OpIsNull || op == OpIsNotNull {
		c.Value = ir.IRNull{}
		return c, nil
	}
	if op.Textual() {
		c.Value = ir.IRString(ir.Stringify(value))
		return c, nil
	}
	converted, err := key.Convert(value)
	if err != nil {
		c.Value = ir.IRString(ir.Stringify(value))
		c.StringMode = true
		return c, &Warning{Key: key.Name, Value: value, Err: err}
	}
	c.Value = converted
	return c, nil
}

func (c *Comparison) Kind() string { return "comparison" }

func (c *Comparison) Exact() bool {
	switch c.Op {
	case OpEqual, OpNotEqual, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

func (c *Comparison) Indexable() bool { return c.Pushdown() != PushNone }

func (c *Comparison) Pushdown() Pushdown {
	if c.Op == OpMatches || c.Op.Folding() {
		return PushNone
	}
	return PushExact
}

// Regexp returns the compiled pattern of an OpMatches comparison.
// The pattern is compiled once.
func (c *Comparison) Regexp() (*regexp.Regexp, error) {
	c.reOnce.Do(func() {
		pattern := ir.Stringify(c.Value)
		c.re, c.reErr = regexp.Compile(pattern)
		if c.reErr != nil {
			c.reErr = fmt.Errorf("%w: key %q: %v", ErrInvalidRegex, c.Key.Name, c.reErr)
		}
	})
	return c.re, c.reErr
}

func (c *Comparison) prepare(Env) error {
	if c.Op == OpMatches {
		_, err := c.Regexp()
		return err
	}
	if !knownOps[c.Op] {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, c.Op)
	}
	return nil
}

// Matches implements Node.
func (c *Comparison) Matches(e graph.Entity) bool {
	raw := e.Get(c.Key.Name)
	switch c.Op {
	case OpIsNull:
		return ir.IsNull(raw)
	case OpIsNotNull:
		return !ir.IsNull(raw)
	}

	elems := ir.Flatten(raw)
	if c.Op == OpNotEqual {
		for _, v := range elems {
			if c.test(OpEqual, v) {
				return false
			}
		}
		return true
	}
	for _, v := range elems {
		if c.test(c.Op, v) {
			return true
		}
	}
	return false
}

// Test reports whether a single non-null value satisfies the operator.
func (c *Comparison) Test(v ir.IRValue) bool {
	return c.test(c.Op, v)
}

func (c *Comparison) test(op Op, v ir.IRValue) bool {
	if c.StringMode && !op.Textual() {
		cmp := strings.Compare(ir.Stringify(v), ir.Stringify(c.Value))
		return orderSatisfies(op, cmp)
	}

	switch op {
	case OpEqual:
		return ir.Equal(v, c.Value)
	case OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
		cmp, ok := ir.Compare(v, c.Value)
		return ok && orderSatisfies(op, cmp)
	case OpStartsWith:
		return strings.HasPrefix(ir.Stringify(v), ir.Stringify(c.Value))
	case OpEndsWith:
		return strings.HasSuffix(ir.Stringify(v), ir.Stringify(c.Value))
	case OpContains:
		return strings.Contains(ir.Stringify(v), ir.Stringify(c.Value))
	case OpEqualFold:
		return fold(ir.Stringify(v)) == fold(ir.Stringify(c.Value))
	case OpStartsWithFold:
		return strings.HasPrefix(fold(ir.Stringify(v)), fold(ir.Stringify(c.Value)))
	case OpEndsWithFold:
		return strings.HasSuffix(fold(ir.Stringify(v)), fold(ir.Stringify(c.Value)))
	case OpContainsFold:
		return strings.Contains(fold(ir.Stringify(v)), fold(ir.Stringify(c.Value)))
	case OpMatches:
		re, err := c.Regexp()
		return err == nil && re.MatchString(ir.Stringify(v))
	}
	return false
}

func orderSatisfies(op Op, cmp int) bool {
	switch op {
	case OpEqual:
		return cmp == 0
	case OpGreater:
		return cmp > 0
	case OpGreaterOrEqual:
		return cmp >= 0
	case OpLess:
		return cmp < 0
	case OpLessOrEqual:
		return cmp <= 0
	}
	return false
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Key.Name, c.Op, ir.Stringify(c.Value))
}

// Range tests a property against optional lower and upper bounds.
// A nil or null bound is absent and always satisfies its side.
type Range struct {
	Key          graph.PropertyKey
	Lo, Hi       ir.IRValue
	IncLo, IncHi bool
}

func (*Range) queryNode() {}

// NewRange converts the bounds to the key's kind. Bounds that fail to convert
// are kept as given and reported as warnings.
func NewRange(key graph.PropertyKey, lo, hi ir.IRValue, incLo, incHi bool) (*Range, []Warning) {
	r := &Range{Key: key, IncLo: incLo, IncHi: incHi}
	var warns []Warning
	conv := func(v ir.IRValue) ir.IRValue {
		if ir.IsNull(v) {
			return nil
		}
		c, err := key.Convert(v)
		if err != nil {
			warns = append(warns, Warning{Key: key.Name, Value: v, Err: err})
			return v
		}
		return c
	}
	r.Lo = conv(lo)
	r.Hi = conv(hi)
	return r, warns
}

func (r *Range) Kind() string { return "range" }

func (r *Range) Exact() bool { return true }

func (r *Range) Indexable() bool { return true }

func (r *Range) Pushdown() Pushdown { return PushExact }

func (r *Range) prepare(Env) error {
	for _, b := range []ir.IRValue{r.Lo, r.Hi} {
		if b == nil {
			continue
		}
		switch b.(type) {
		case ir.IRArray, ir.IRObject:
			return fmt.Errorf("%w: key %q: bound %s is not a scalar", ErrMalformedRange, r.Key.Name, ir.Stringify(b))
		}
	}
	if r.Lo != nil && r.Hi != nil {
		if _, ok := ir.Compare(r.Lo, r.Hi); !ok {
			return fmt.Errorf("%w: key %q: bounds %T and %T are not comparable", ErrMalformedRange, r.Key.Name, r.Lo, r.Hi)
		}
	}
	return nil
}

// Matches implements Node.
func (r *Range) Matches(e graph.Entity) bool {
	for _, v := range ir.Flatten(e.Get(r.Key.Name)) {
		if r.Test(v) {
			return true
		}
	}
	return false
}

// Test reports whether a single value lies within the bounds.
func (r *Range) Test(v ir.IRValue) bool {
	if r.Lo != nil {
		cmp, ok := ir.Compare(v, r.Lo)
		if !ok || cmp < 0 || (cmp == 0 && !r.IncLo) {
			return false
		}
	}
	if r.Hi != nil {
		cmp, ok := ir.Compare(v, r.Hi)
		if !ok || cmp > 0 || (cmp == 0 && !r.IncHi) {
			return false
		}
	}
	return true
}

func (r *Range) String() string {
	lb, rb := "(", ")"
	if r.IncLo {
		lb = "["
	}
	if r.IncHi {
		rb = "]"
	}
	return fmt.Sprintf("%s in %s%s,%s%s", r.Key.Name, lb, ir.Stringify(r.Lo), ir.Stringify(r.Hi), rb)
}
