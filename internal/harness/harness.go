package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/graphq/internal/engine"
	"github.com/roach88/graphq/internal/geocode"
	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/memindex"
	"github.com/roach88/graphq/internal/query"
	"github.com/roach88/graphq/internal/schema"
	"github.com/roach88/graphq/internal/store"
	"github.com/roach88/graphq/internal/testutil"
)

// Harness is the test execution engine.
// It runs the steps of one scenario against one executor.
type Harness struct {
	schema   *graph.Schema
	executor *engine.Executor
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Compile the schema
// 2. Create a fresh in-memory store and load the records
// 3. Execute each step's query
// 4. Check each step against its expectation
//
// A returned error means the scenario could not run; failed expectations
// are reported through Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	s, err := compileSchema(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	records, err := graph.Records(scenario.Records)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithExecutionIDs(testutil.NewFixedIDGenerator(scenario.ExecutionID)),
		engine.WithClock(engine.NewClock()),
		engine.WithGeocoder(geocode.NewStatic(scenario.Geocoder)),
	}
	if scenario.MaxMaterialized > 0 {
		opts = append(opts, engine.WithMaxMaterialized(scenario.MaxMaterialized))
	}

	var x *engine.Executor
	switch scenario.Backend {
	case BackendMemory:
		ix := memindex.New()
		if err := ix.Put(records...); err != nil {
			return nil, fmt.Errorf("failed to load records: %w", err)
		}
		x = engine.New(ix, ix.Store(), opts...)
	default:
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		if err := st.Put(ctx, records...); err != nil {
			return nil, fmt.Errorf("failed to load records: %w", err)
		}
		x = engine.New(st.Index(), st, opts...)
	}

	h := &Harness{schema: s, executor: x, logger: logger}
	result := NewResult()
	for _, step := range scenario.Steps {
		sr, err := h.executeStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
		result.AddStep(sr)
		for _, failure := range CheckStep(step.Expect, sr) {
			result.AddError(failure.Error())
		}
	}
	return result, nil
}

func compileSchema(s *Scenario) (*graph.Schema, error) {
	if s.SchemaFile != "" {
		return schema.Load(s.SchemaFile)
	}
	return schema.CompileString(s.Schema, s.Name+".cue")
}

// executeStep runs one query. Query errors become part of the step result;
// only cancellation of ctx is returned as an error.
func (h *Harness) executeStep(ctx context.Context, step Step) (StepResult, error) {
	q := step.Query.Build(h.schema)
	sr := StepResult{Name: step.Name, IDs: []string{}, Warnings: warningStrings(q.Warnings())}

	res, err := h.executor.Execute(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return sr, ctx.Err()
		}
		var qe *engine.QueryError
		if !errors.As(err, &qe) {
			return sr, err
		}
		sr.ExecutionID = qe.ExecutionID
		sr.Error = string(qe.Kind)
		h.logger.Info("step failed", "step", step.Name, "kind", qe.Kind, "error", err)
		return sr, nil
	}

	sr.ExecutionID = res.ExecutionID
	sr.Seq = res.Seq
	sr.IDs = res.IDs()
	sr.Skipped = res.Skipped
	sr.Found = res.Found()
	sr.Route = string(res.Plan.Route)
	sr.Reasons = res.Plan.Reasons
	sr.Materialized = res.Materialized

	h.logger.Info("step completed",
		"step", step.Name,
		"execution_id", res.ExecutionID,
		"results", len(sr.IDs),
		"route", sr.Route,
	)
	return sr, nil
}

func warningStrings(ws []query.Warning) []string {
	if len(ws) == 0 {
		return nil
	}
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}
