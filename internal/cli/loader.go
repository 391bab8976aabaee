package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/graphq/internal/config"
	"github.com/roach88/graphq/internal/engine"
	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/memindex"
	"github.com/roach88/graphq/internal/metrics"
	"github.com/roach88/graphq/internal/query"
	"github.com/roach88/graphq/internal/schema"
	"github.com/roach88/graphq/internal/store"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeConfig    = "E001" // Config file unreadable or invalid
	ErrCodeSchema    = "E002" // Schema missing or failed to compile
	ErrCodeRecords   = "E003" // Record file unreadable or invalid
	ErrCodeQueryFile = "E004" // Query definition unreadable or invalid
	ErrCodeStore     = "E005" // Store could not be opened or written
	ErrCodeBackend   = "E006" // Command not supported by the configured backend
	ErrCodeNotFound  = "E007" // Path not found
)

// CommandError is a setup failure with the error code reported for it.
type CommandError struct {
	Code    string
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CommandError) Unwrap() error { return e.Err }

func commandError(code, message string, err error) *CommandError {
	return &CommandError{Code: code, Message: message, Err: err}
}

// errorDetails returns the source position of schema errors for JSON output.
func errorDetails(err error) any {
	var ce *schema.CompileError
	if errors.As(err, &ce) && ce.Pos.IsValid() {
		return map[string]any{
			"file":   ce.Pos.Filename(),
			"line":   ce.Pos.Line(),
			"column": ce.Pos.Column(),
			"field":  ce.Field,
		}
	}
	return nil
}

// env is what a command runs against: the configuration, its logger and
// metrics, and, once opened, the schema and backend.
type env struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	schema *graph.Schema
	index  query.Index
	store  graph.Store

	// sqlite is the backing store of the sqlite backend, nil for memory.
	sqlite *store.Store
	mem    *memindex.Index
}

// newEnv loads the configuration and builds the logger. Log lines go to
// stderr, at the configured level or Debug with --verbose.
func newEnv(opts *RootOptions, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, commandError(ErrCodeConfig, "failed to load config", err)
	}

	level, _ := config.ParseLevel(cfg.Log.Level) // validated by Load
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})

	e := &env{cfg: cfg, logger: slog.New(handler)}
	if cfg.Metrics.Enabled {
		e.registry = prometheus.NewRegistry()
		e.metrics = metrics.New(e.registry)
	}
	return e, nil
}

// loadSchema compiles path, or the configured schema when path is empty.
func (e *env) loadSchema(path string) error {
	if path == "" {
		path = e.cfg.Schema
	}
	if path == "" {
		return commandError(ErrCodeSchema, "no schema: pass --schema or set schema in the config file", nil)
	}
	s, err := schema.Load(path)
	if err != nil {
		return commandError(ErrCodeSchema, "failed to compile schema", err)
	}
	e.logger.Debug("schema compiled", "path", path, "types", len(s.TypeNames()))
	e.schema = s
	return nil
}

// openBackend opens the configured store and index.
func (e *env) openBackend() error {
	switch e.cfg.Store.Backend {
	case config.BackendMemory:
		e.mem = memindex.New()
		e.index = e.mem
		e.store = e.mem.Store()
		e.logger.Debug("memory backend ready")
	default:
		st, err := store.Open(e.cfg.Store.Path)
		if err != nil {
			return commandError(ErrCodeStore, "failed to open store", err)
		}
		e.sqlite = st
		e.index = st.Index()
		e.store = st
		e.logger.Debug("store opened", "path", e.cfg.Store.Path)
	}
	return nil
}

// put writes records to the open backend.
func (e *env) put(ctx context.Context, records []graph.Record) error {
	var err error
	if e.sqlite != nil {
		err = e.sqlite.Put(ctx, records...)
	} else {
		err = e.mem.Put(records...)
	}
	if err != nil {
		return commandError(ErrCodeStore, "failed to write records", err)
	}
	return nil
}

// loadRecords reads record files and writes them to the backend.
func (e *env) loadRecords(ctx context.Context, paths []string) (int, error) {
	var records []graph.Record
	for _, path := range paths {
		recs, err := graph.LoadRecords(path)
		if err != nil {
			return 0, commandError(ErrCodeRecords, "failed to load records", err)
		}
		records = append(records, recs...)
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := e.put(ctx, records); err != nil {
		return 0, err
	}
	e.logger.Debug("records loaded", "files", len(paths), "records", len(records))
	return len(records), nil
}

// executor builds an executor over the open backend from the configuration.
func (e *env) executor() (*engine.Executor, error) {
	geo, err := e.cfg.NewGeocoder(e.metrics)
	if err != nil {
		return nil, commandError(ErrCodeConfig, "failed to build geocoder", err)
	}
	opts := append(e.cfg.ExecutorOptions(),
		engine.WithLogger(e.logger),
		engine.WithGeocoder(geo),
		engine.WithMetrics(e.metrics),
	)
	return engine.New(e.index, e.store, opts...), nil
}

// close releases the backend and reports metrics when they are enabled.
func (e *env) close() {
	if e.registry != nil {
		reportMetrics(e.logger, e.registry)
	}
	if e.sqlite != nil {
		if err := e.sqlite.Close(); err != nil {
			e.logger.Error("error closing store", "error", err)
		}
	}
}

// reportMetrics logs every collected series at Info.
func reportMetrics(logger *slog.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs := []any{"metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				attrs = append(attrs, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				attrs = append(attrs, "count", h.GetSampleCount(), "sum", h.GetSampleSum())
			}
			logger.Info("metric", attrs...)
		}
	}
}

// signalContext derives a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// fail reports err through the formatter and returns the matching ExitError.
// Setup errors exit with ExitCommandError, query errors with ExitFailure.
func fail(f *OutputFormatter, err error) error {
	var ce *CommandError
	if errors.As(err, &ce) {
		msg := ce.Message
		if ce.Err != nil {
			msg = fmt.Sprintf("%s: %v", ce.Message, ce.Err)
		}
		_ = f.Error(ce.Code, msg, errorDetails(ce.Err))
		return WrapExitError(ExitCommandError, ce.Message, ce.Err)
	}
	var qe *engine.QueryError
	if errors.As(err, &qe) {
		_ = f.Error(string(qe.Kind), qe.Error(), map[string]string{"execution_id": qe.ExecutionID})
		return WrapExitError(ExitFailure, "query failed", err)
	}
	_ = f.Error("E000", err.Error(), nil)
	return WrapExitError(ExitFailure, "command failed", err)
}
