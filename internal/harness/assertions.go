package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when a step does not meet its expectation.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Step     string     // Step name
	Field    string     // Expectation that failed, e.g. "ids"
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Result   StepResult // Full step outcome for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: step %q: %s\n", e.Step, e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	r := e.Result
	fmt.Fprintf(&buf, "\nStep result:\n")
	if r.Error != "" {
		fmt.Fprintf(&buf, "  error: %s\n", r.Error)
	} else {
		fmt.Fprintf(&buf, "  ids: %v (skipped %d)\n", r.IDs, r.Skipped)
		fmt.Fprintf(&buf, "  route: %s %v\n", r.Route, r.Reasons)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&buf, "  warning: %s\n", w)
	}

	return buf.String()
}

// CheckStep compares a step outcome with its expectation.
// Returns one error per failed check; nil when everything matches.
func CheckStep(e *Expect, r StepResult) []error {
	if e == nil {
		return nil
	}
	var errs []error
	fail := func(field, expected, actual string) {
		errs = append(errs, &AssertionError{
			Step:     r.Name,
			Field:    field,
			Expected: expected,
			Actual:   actual,
			Result:   r,
		})
	}

	if e.Error != "" || r.Error != "" {
		if e.Error != r.Error {
			fail("error", orNone(e.Error), orNone(r.Error))
			// The remaining checks are meaningless for a failed execution.
			return errs
		}
	}

	if len(e.IDs) > 0 {
		if !sameIDs(e.IDs, r.IDs, e.Unordered) {
			order := "in order"
			if e.Unordered {
				order = "in any order"
			}
			fail("ids", fmt.Sprintf("%v %s", e.IDs, order), fmt.Sprintf("%v", r.IDs))
		}
	}
	if e.Empty && len(r.IDs) > 0 {
		fail("empty", "no results", fmt.Sprintf("%v", r.IDs))
	}
	if e.Skipped != nil && *e.Skipped != r.Skipped {
		fail("skipped", fmt.Sprint(*e.Skipped), fmt.Sprint(r.Skipped))
	}
	if e.Found != nil && *e.Found != r.Found {
		fail("found", fmt.Sprint(*e.Found), fmt.Sprint(r.Found))
	}
	if e.Route != "" && e.Route != r.Route {
		fail("route", e.Route, r.Route)
	}
	if e.Warnings != nil && *e.Warnings != len(r.Warnings) {
		fail("warnings", fmt.Sprint(*e.Warnings), fmt.Sprintf("%d %v", len(r.Warnings), r.Warnings))
	}
	return errs
}

func sameIDs(want, got []string, unordered bool) bool {
	if !unordered {
		return slices.Equal(want, got)
	}
	w := slices.Clone(want)
	g := slices.Clone(got)
	slices.Sort(w)
	slices.Sort(g)
	return slices.Equal(w, g)
}

func orNone(s string) string {
	if s == "" {
		return "no error"
	}
	return s
}
