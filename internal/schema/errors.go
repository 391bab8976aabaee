package schema

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a schema error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error and its position, preferring a
// position in the user's document over one in the shape definition.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) == 0 {
		return err
	}
	pos := positions[0]
	for _, p := range positions {
		if p.Filename() != shapeFile {
			pos = p
			break
		}
	}
	field := strings.Join(errors.Path(first), ".")
	if field == "" {
		field = "cue"
	}
	return &CompileError{
		Field:   field,
		Message: first.Error(),
		Pos:     pos,
	}
}
