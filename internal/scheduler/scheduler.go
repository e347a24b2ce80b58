package scheduler

import (
	"context"
	"fmt"

	"github.com/specialistvlad/cipipe/internal/capabilities"
	"github.com/specialistvlad/cipipe/internal/ctxlog"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/metrics"
	"github.com/specialistvlad/cipipe/internal/schedule"
)

const (
	phaseProvision = "provision"
	phaseSetup     = "setup"
)

// Scheduler drives a schedule through provisioning and setup.
type Scheduler struct {
	provision capabilities.ProvisionFunc
	metrics   *metrics.Metrics
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics records phase progress and entry outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a Scheduler that acquires guests with provision.
func New(provision capabilities.ProvisionFunc, opts ...Option) *Scheduler {
	s := &Scheduler{provision: provision}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run provisions every entry and then sets up every provisioned entry. The
// returned schedule is sched itself, in its original order, with every entry
// in its final stage. Setup does not run if provisioning failed.
func (s *Scheduler) Run(ctx context.Context, sched schedule.Schedule) (schedule.Schedule, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("🚀 Scheduling tests.", "entries", len(sched))

	if err := s.Provision(ctx, sched); err != nil {
		return sched, err
	}
	if err := s.Setup(ctx, sched); err != nil {
		return sched, err
	}

	logger.Info("🏁 Schedule prepared.", "ready", len(sched.InStage(schedule.Ready)))
	return sched, nil
}

// Provision requests a guest for every entry concurrently. Entries end up
// Provisioned or Failed.
func (s *Scheduler) Provision(ctx context.Context, sched schedule.Schedule) error {
	logger := ctxlog.FromContext(ctx)

	for _, entry := range sched {
		entry.Stage = schedule.Provisioning
	}

	results := runJobs(ctx, phaseProvision, sched, s.metrics, func(ctx context.Context, entry *schedule.Entry) (schedule.Guest, error) {
		entryLogger := entry.Logger(logger)
		entryLogger.Info("Provisioning guest.", "environment", entry.Environment.String())

		guest, err := s.provision(ctxlog.WithLogger(ctx, entryLogger), entry.Environment)
		if err != nil {
			return nil, err
		}
		if guest == nil {
			return nil, failure.Infra("provisioner returned no guest for environment %s", entry.Environment)
		}
		entryLogger.Info("Guest provisioned.", "guest", guest.Name())
		return guest, nil
	})

	for i, res := range results {
		entry := sched[i]
		if res.err != nil {
			entry.Stage = schedule.Failed
			entry.Err = res.err
			continue
		}
		entry.Guest = res.value
		entry.Stage = schedule.Provisioned
	}

	return settle(ctx, phaseProvision, sched, "at least one provisioning attempt failed")
}

// Setup prepares every Provisioned entry's guest concurrently. Entries in any
// other stage are left untouched.
func (s *Scheduler) Setup(ctx context.Context, sched schedule.Schedule) error {
	logger := ctxlog.FromContext(ctx)
	targets := sched.InStage(schedule.Provisioned)

	for _, entry := range targets {
		entry.Stage = schedule.SettingUp
	}

	results := runJobs(ctx, phaseSetup, targets, s.metrics, func(ctx context.Context, entry *schedule.Entry) (struct{}, error) {
		entryLogger := entry.Logger(logger)
		entryLogger.Info("Setting up guest.", "guest", entry.Guest.Name())

		if err := entry.Guest.Setup(ctxlog.WithLogger(ctx, entryLogger)); err != nil {
			return struct{}{}, err
		}
		entryLogger.Info("Guest is ready.", "guest", entry.Guest.Name())
		return struct{}{}, nil
	})

	for i, res := range results {
		entry := targets[i]
		if res.err != nil {
			entry.Stage = schedule.Failed
			entry.Err = res.err
			continue
		}
		entry.Stage = schedule.Ready
	}

	return settle(ctx, phaseSetup, targets, "at least one guest setup failed")
}

// settle logs every failed entry of a phase and picks the error to report:
// the first soft failure, else the first captured failure, else a generic
// infrastructure error.
func settle(ctx context.Context, phase string, entries schedule.Schedule, generic string) error {
	logger := ctxlog.FromContext(ctx)

	failed := entries.InStage(schedule.Failed)
	if len(failed) == 0 {
		return nil
	}

	for _, entry := range failed {
		entry.Logger(logger).Error("Schedule entry failed.", "phase", phase, "environment", entry.Environment.String(), "error", entry.Err)
	}

	for _, entry := range failed {
		if failure.IsSoft(entry.Err) {
			return &EntryError{Phase: phase, Entry: entry, Err: entry.Err}
		}
	}
	for _, entry := range failed {
		if entry.Err != nil {
			return &EntryError{Phase: phase, Entry: entry, Err: entry.Err}
		}
	}
	return failure.Infra("%s", generic)
}

// EntryError is the failure reported for a phase, attributed to the entry
// that caused it.
type EntryError struct {
	Phase string
	Entry *schedule.Entry
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s of schedule entry '%s' (%s) failed: %v", e.Phase, e.Entry.ID, e.Entry.Environment, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// FailureKind keeps the classification of the underlying error. Unclassified
// errors count as infrastructure failures.
func (e *EntryError) FailureKind() failure.Kind {
	if kind := failure.KindOf(e.Err); kind != failure.KindUnknown {
		return kind
	}
	return failure.KindInfra
}
