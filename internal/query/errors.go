package query

import (
	"errors"
	"fmt"

	"github.com/roach88/graphq/internal/ir"
)

var (
	// ErrInvalidRegex is wrapped when a regular expression does not compile.
	ErrInvalidRegex = errors.New("invalid regular expression")

	// ErrMalformedRange is wrapped when range bounds cannot be compared.
	ErrMalformedRange = errors.New("malformed range")

	// ErrInvalidQuery is wrapped by builder errors reported from Query.Err.
	ErrInvalidQuery = errors.New("invalid query")
)

// Warning records a search value that could not be converted to its key's
// declared kind. The predicate falls back to comparing string forms.
type Warning struct {
	Key   string
	Value ir.IRValue
	Err   error
}

func (w Warning) String() string {
	return fmt.Sprintf("key %q: value %q: %v", w.Key, ir.Stringify(w.Value), w.Err)
}
