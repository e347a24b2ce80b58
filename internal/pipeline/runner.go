package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/specialistvlad/cipipe/internal/config"
	"github.com/specialistvlad/cipipe/internal/ctxlog"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/metrics"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/registry"
)

// Pipeline results as recorded in metrics and reported to modules.
const (
	ResultPassed    = "passed"
	ResultSoftError = "soft-error"
	ResultError     = "error"
)

// Runner executes pipelines built from a module catalog.
type Runner struct {
	catalog *module.Catalog
	config  config.Source
	retries int
	metrics *metrics.Metrics
	out     io.Writer
	runID   func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithConfig sets the source of persisted module configuration.
func WithConfig(src config.Source) Option {
	return func(r *Runner) { r.config = src }
}

// WithRetries sets how many times a pipeline is restarted after a retryable
// error. Negative values are treated as zero.
func WithRetries(n int) Option {
	return func(r *Runner) {
		if n < 0 {
			n = 0
		}
		r.retries = n
	}
}

// WithMetrics records attempts, module durations and results in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithOutput sets where modules write user-facing output.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithRunID overrides run ID generation.
func WithRunID(fn func() string) Option {
	return func(r *Runner) { r.runID = fn }
}

// New creates a Runner for modules in catalog.
func New(catalog *module.Catalog, opts ...Option) *Runner {
	r := &Runner{
		catalog: catalog,
		out:     io.Discard,
		runID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes steps. The returned error is a *failure.Failure naming the
// module that ended the pipeline, or nil on success.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	for _, s := range steps {
		if !r.catalog.Has(s.Module) {
			return failure.Config("unknown module '%s'", s.Module)
		}
	}

	runID := r.runID()
	ctx, logger := ctxlog.With(ctx, "run_id", runID)

	var (
		instances []*module.Instance
		terminal  *failure.Failure
	)
	// Destroy must run even if the pipeline was interrupted, so it uses a
	// context that outlives the cancellation.
	teardown := context.WithoutCancel(ctx)

	for attempt := 0; attempt <= r.retries; attempt++ {
		r.destroy(teardown, instances, nil)

		if attempt > 0 {
			logger.Warn("🔁 Retrying pipeline", "attempt", attempt, "retries", r.retries)
		}
		r.metrics.AttemptStarted()

		instances, terminal = r.attempt(ctx, runID, steps)
		if terminal == nil || !failure.IsRetryable(terminal.Err) {
			break
		}
		logger.Error("Retryable error", "module", terminal.Module, "error", terminal.Err)
	}

	r.destroy(teardown, instances, terminal)

	result := Result(terminal)
	r.metrics.PipelineFinished(result)
	if terminal != nil {
		return terminal
	}
	logger.Info("🏁 Pipeline finished.", "result", result)
	return nil
}

// attempt runs every step once. It returns every instance it constructed,
// in construction order, and the failure that stopped it, if any.
func (r *Runner) attempt(ctx context.Context, runID string, steps []Step) ([]*module.Instance, *failure.Failure) {
	reg := registry.New()
	instances := make([]*module.Instance, 0, len(steps))

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return instances, &failure.Failure{Module: step.Module, Err: failure.Wrap(failure.KindInfra, err, "pipeline interrupted")}
		}

		desc, _ := r.catalog.Lookup(step.Module)
		stepCtx, logger := ctxlog.With(ctx, "module", step.Module)
		inst, err := module.Construct(desc, module.Env{
			Registry: reg,
			RunID:    runID,
			Logger:   logger,
			Metrics:  r.metrics,
			Out:      r.out,
		})
		if err != nil {
			return instances, &failure.Failure{Module: step.Module, Err: err}
		}
		instances = append(instances, inst)

		if err := r.runModule(stepCtx, inst, step.Args); err != nil {
			kind := failure.KindOf(err)
			if kind == failure.KindUnknown && ctx.Err() != nil {
				err = failure.Wrap(failure.KindInfra, err, "pipeline interrupted")
			}
			r.metrics.ModuleFailed(step.Module, failure.KindOf(err).String())
			return instances, &failure.Failure{Module: step.Module, Err: err}
		}
	}
	return instances, nil
}

func (r *Runner) runModule(ctx context.Context, inst *module.Instance, args []string) (err error) {
	logger := ctxlog.FromContext(ctx)
	defer func() {
		if p := recover(); p != nil {
			err = failure.Infra("module panicked: %v", p)
		}
	}()

	if err := inst.Prepare(ctx, r.config, args); err != nil {
		return err
	}

	logger.Info("▶️ Executing module.")
	start := time.Now()
	err = inst.Execute(ctx)
	r.metrics.ModuleExecuted(inst.Name(), time.Since(start))
	if err != nil {
		return err
	}
	logger.Debug("Module executed.", "duration", time.Since(start))
	return nil
}

// destroy tears instances down in reverse order. Errors are logged and do
// not stop the remaining destroys.
func (r *Runner) destroy(ctx context.Context, instances []*module.Instance, terminal *failure.Failure) {
	logger := ctxlog.FromContext(ctx)
	for i := len(instances) - 1; i >= 0; i-- {
		inst := instances[i]
		if err := destroyOne(ctx, inst, terminal); err != nil {
			logger.Error("Module destroy failed", "module", inst.Name(), "error", err)
		}
	}
}

func destroyOne(ctx context.Context, inst *module.Instance, terminal *failure.Failure) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("destroy panicked: %v", p)
		}
	}()
	return inst.Destroy(ctx, terminal)
}

// Result describes how a pipeline ended: passed, soft-error or error.
func Result(f *failure.Failure) string {
	switch {
	case f == nil:
		return ResultPassed
	case f.Soft():
		return ResultSoftError
	default:
		return ResultError
	}
}

// LogFailure logs f the way the command line presents it.
func LogFailure(logger *slog.Logger, err error) {
	var f *failure.Failure
	if !errors.As(err, &f) {
		logger.Error("Pipeline failed", "error", err)
		return
	}
	attrs := []any{"module", f.Module, "kind", failure.KindOf(f.Err).String(), "error", f.Err}
	if f.Soft() {
		logger.Warn("⚠️ Pipeline ended with a soft error", attrs...)
		return
	}
	logger.Error("❌ Pipeline failed", attrs...)
}
