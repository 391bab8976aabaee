package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxMaterialized is the default number of entities one execution may
// hold in memory.
const DefaultMaxMaterialized = 100_000

// Budget counts the entities an execution materializes and enforces a
// maximum.
//
// Each execution has its own Budget. It is charged for every candidate read
// from a source or the index, before post-filtering.
type Budget struct {
	limit   int
	current int
}

// NewBudget creates a budget with the given limit. A limit <= 0 is unlimited.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit}
}

// Charge adds n entities. Returns LimitExceededError once the total exceeds
// the limit.
func (b *Budget) Charge(n int) error {
	b.current += n
	if b.limit > 0 && b.current > b.limit {
		return &LimitExceededError{Count: b.current, Limit: b.limit}
	}
	return nil
}

// Current returns the number of entities charged so far.
func (b *Budget) Current() int { return b.current }

// LimitExceededError is returned when an execution materializes more
// entities than its budget allows.
type LimitExceededError struct {
	Count int
	Limit int
}

// Error implements the error interface.
func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("materialized %d entities, limit is %d", e.Count, e.Limit)
}

// IsLimitExceededError returns true if the error is a LimitExceededError.
// Uses errors.As to handle wrapped errors.
func IsLimitExceededError(err error) bool {
	var le *LimitExceededError
	return errors.As(err, &le)
}
