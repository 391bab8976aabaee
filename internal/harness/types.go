package harness

// StepResult is the observed outcome of one step.
type StepResult struct {
	Name        string   `json:"name"`
	ExecutionID string   `json:"execution_id,omitempty"`
	Seq         int64    `json:"seq,omitempty"`
	IDs         []string `json:"ids"`
	Skipped     int      `json:"skipped"`
	Found       bool     `json:"found"`

	// Route and Reasons come from the execution plan.
	Route   string   `json:"route,omitempty"`
	Reasons []string `json:"reasons,omitempty"`

	Materialized int      `json:"materialized"`
	Warnings     []string `json:"warnings,omitempty"`

	// Error is the error kind when the execution failed.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step met its expectation.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep records a step outcome.
func (r *Result) AddStep(s StepResult) {
	r.Steps = append(r.Steps, s)
}
