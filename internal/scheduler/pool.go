package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/cipipe/internal/ctxlog"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/metrics"
	"github.com/specialistvlad/cipipe/internal/schedule"
)

// result is what one job produced for the entry at the same index.
type result[T any] struct {
	value T
	err   error
}

// runJobs runs job once per entry, all of them concurrently, and returns the
// results in entry order. Progress is logged as jobs finish.
func runJobs[T any](
	ctx context.Context,
	phase string,
	entries schedule.Schedule,
	m *metrics.Metrics,
	job func(ctx context.Context, entry *schedule.Entry) (T, error),
) []result[T] {
	logger := ctxlog.FromContext(ctx).With("phase", phase)
	results := make([]result[T], len(entries))
	if len(entries) == 0 {
		return results
	}

	done := make(chan int, len(entries))
	var g errgroup.Group
	g.SetLimit(len(entries))

	logger.Debug("Starting jobs.", "count", len(entries))
	m.EntriesPending(phase, len(entries))

	for i, entry := range entries {
		g.Go(func() error {
			defer func() { done <- i }()
			defer func() {
				if r := recover(); r != nil {
					results[i] = result[T]{err: failure.Infra("%s of schedule entry '%s' panicked: %v", phase, entry.ID, r)}
				}
			}()

			value, err := job(ctx, entry)
			results[i] = result[T]{value: value, err: err}
			return nil
		})
	}

	for pending := len(entries); pending > 0; {
		i := <-done
		pending--

		m.EntriesPending(phase, pending)
		m.EntryFinished(phase, results[i].err == nil)
		logger.Info("⏳ guests pending", "pending", pending, "finished_entry", entries[i].ID)
	}

	// Every job has reported completion, Wait only reaps the goroutines.
	_ = g.Wait()
	return results
}
