package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/specialistvlad/cipipe/internal/ctxlog"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/metrics"
	"github.com/specialistvlad/cipipe/internal/schedule"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testGuest struct {
	name     string
	env      schedule.Environment
	setupErr error
	setups   *atomic.Int32
}

func (g *testGuest) Name() string                      { return g.name }
func (g *testGuest) Environment() schedule.Environment { return g.env }
func (g *testGuest) Setup(ctx context.Context) error {
	if g.setups != nil {
		g.setups.Add(1)
	}
	return g.setupErr
}

func testContext(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(&lockedWriter{w: buf}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger), buf
}

type lockedWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func newSchedule(arches ...string) schedule.Schedule {
	var s schedule.Schedule
	for _, arch := range arches {
		s = append(s, schedule.NewEntry("test-"+arch, "restraint", schedule.Environment{Arch: arch}))
	}
	return s
}

type stageView struct {
	ID    string
	Stage string
	Guest string
}

func view(s schedule.Schedule) []stageView {
	out := make([]stageView, 0, len(s))
	for _, e := range s {
		out = append(out, stageView{ID: e.ID, Stage: e.Stage.String(), Guest: e.GuestName()})
	}
	return out
}

func TestRun_AllEntriesReady(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, logs := testContext(t)
	sched := newSchedule("x86_64", "aarch64", "s390x")
	provision := func(ctx context.Context, env schedule.Environment) (schedule.Guest, error) {
		return &testGuest{name: "guest-" + env.Arch, env: env}, nil
	}

	// --- Act ---
	got, err := New(provision, WithMetrics(metrics.New())).Run(ctx, sched)

	// --- Assert ---
	require.NoError(t, err)
	want := []stageView{
		{ID: "test-x86_64", Stage: "ready", Guest: "guest-x86_64"},
		{ID: "test-aarch64", Stage: "ready", Guest: "guest-aarch64"},
		{ID: "test-s390x", Stage: "ready", Guest: "guest-s390x"},
	}
	if diff := cmp.Diff(want, view(got)); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, logs.String(), "guests pending")
	assert.Contains(t, logs.String(), "schedule_entry=test-s390x")
}

func TestProvision_RunsConcurrently(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Every provisioning call blocks until all of them have started, which
	// only completes if the pool runs one worker per entry.
	ctx, _ := testContext(t)
	const n = 8
	var arches []string
	for i := 0; i < n; i++ {
		arches = append(arches, string(rune('a'+i)))
	}
	sched := newSchedule(arches...)

	var started sync.WaitGroup
	started.Add(n)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	provision := func(ctx context.Context, env schedule.Environment) (schedule.Guest, error) {
		started.Done()
		select {
		case <-allStarted:
			return &testGuest{name: env.Arch}, nil
		case <-time.After(5 * time.Second):
			return nil, errors.New("provisioning was not concurrent")
		}
	}

	// --- Act ---
	err := New(provision).Provision(ctx, sched)

	// --- Assert ---
	require.NoError(t, err)
	assert.Len(t, sched.InStage(schedule.Provisioned), n)
}

func TestProvision_WaitsForAllBeforeFailing(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, logs := testContext(t)
	sched := newSchedule("x86_64", "s390x", "aarch64", "ppc64le")
	var finished atomic.Int32
	provision := func(ctx context.Context, env schedule.Environment) (schedule.Guest, error) {
		defer finished.Add(1)
		if env.Arch == "s390x" {
			return nil, errors.New("no s390x capacity")
		}
		// The failing entry returns first; the rest take a little longer.
		time.Sleep(20 * time.Millisecond)
		return &testGuest{name: env.Arch}, nil
	}

	// --- Act ---
	err := New(provision).Provision(ctx, sched)

	// --- Assert ---
	require.Error(t, err)
	assert.EqualValues(t, 4, finished.Load(), "every provisioning attempt must finish before the error is raised")

	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "test-s390x", entryErr.Entry.ID)
	assert.Equal(t, phaseProvision, entryErr.Phase)
	assert.Equal(t, failure.KindInfra, failure.KindOf(err))

	assert.Equal(t, schedule.Failed, sched[1].Stage)
	assert.Len(t, sched.InStage(schedule.Provisioned), 3)
	assert.Contains(t, logs.String(), "no s390x capacity")
}

func TestProvision_SoftFailureTakesPrecedence(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testContext(t)
	sched := newSchedule("x86_64", "s390x", "aarch64")
	provision := func(ctx context.Context, env schedule.Environment) (schedule.Guest, error) {
		switch env.Arch {
		case "x86_64":
			return nil, failure.Infra("hypervisor unreachable")
		case "aarch64":
			return nil, failure.Soft("no guest matches arch '%s'", env.Arch)
		}
		return &testGuest{name: env.Arch}, nil
	}

	// --- Act ---
	err := New(provision).Provision(ctx, sched)

	// --- Assert ---
	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "test-aarch64", entryErr.Entry.ID)
	assert.True(t, failure.IsSoft(err))
}

func TestRun_SetupSkippedWhenProvisioningFails(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testContext(t)
	sched := newSchedule("x86_64", "s390x")
	var setups atomic.Int32
	provision := func(ctx context.Context, env schedule.Environment) (schedule.Guest, error) {
		if env.Arch == "s390x" {
			return nil, errors.New("boom")
		}
		return &testGuest{name: env.Arch, setups: &setups}, nil
	}

	// --- Act ---
	_, err := New(provision).Run(ctx, sched)

	// --- Assert ---
	require.Error(t, err)
	assert.Zero(t, setups.Load())
	assert.Equal(t, schedule.Provisioned, sched[0].Stage)
}

func TestSetup_OnlyProvisionedEntries(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, _ := testContext(t)
	var setups atomic.Int32
	broken := schedule.NewEntry("broken", "restraint", schedule.Environment{Arch: "x86_64"})
	broken.Stage = schedule.Provisioned
	broken.Guest = &testGuest{name: "broken", setupErr: errors.New("ansible failed"), setups: &setups}

	neverProvisioned := schedule.NewEntry("unprovisioned", "restraint", schedule.Environment{Arch: "s390x"})
	neverProvisioned.Stage = schedule.Failed
	neverProvisioned.Err = errors.New("earlier failure")
	neverProvisioned.Guest = &testGuest{name: "stale", setups: &setups}

	healthy := schedule.NewEntry("healthy", "restraint", schedule.Environment{Arch: "aarch64"})
	healthy.Stage = schedule.Provisioned
	healthy.Guest = &testGuest{name: "healthy", setups: &setups}

	sched := schedule.Schedule{broken, neverProvisioned, healthy}

	// --- Act ---
	err := New(nil).Setup(ctx, sched)

	// --- Assert ---
	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "broken", entryErr.Entry.ID)
	assert.Equal(t, phaseSetup, entryErr.Phase)

	assert.EqualValues(t, 2, setups.Load())
	assert.Equal(t, schedule.Failed, broken.Stage)
	assert.Equal(t, "earlier failure", neverProvisioned.Err.Error())
	assert.Equal(t, schedule.Ready, healthy.Stage)
}

func TestProvision_PanicBecomesInfraFailure(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)
	sched := newSchedule("x86_64")
	provision := func(ctx context.Context, env schedule.Environment) (schedule.Guest, error) {
		panic("provisioner bug")
	}

	err := New(provision).Provision(ctx, sched)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: provisioner bug")
	assert.Equal(t, failure.KindInfra, failure.KindOf(err))
	assert.Equal(t, schedule.Failed, sched[0].Stage)
}

func TestProvision_NilGuestIsFailure(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)
	sched := newSchedule("x86_64")
	provision := func(ctx context.Context, env schedule.Environment) (schedule.Guest, error) {
		return nil, nil
	}

	err := New(provision).Provision(ctx, sched)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "provisioner returned no guest")
}

func TestProvision_EmptySchedule(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)
	got, err := New(func(context.Context, schedule.Environment) (schedule.Guest, error) {
		t.Fatal("provision must not be called")
		return nil, nil
	}).Run(ctx, nil)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSettle_GenericWhenNoFailureCaptured(t *testing.T) {
	t.Parallel()

	ctx, _ := testContext(t)
	entry := schedule.NewEntry("lost", "restraint", schedule.Environment{})
	entry.Stage = schedule.Failed

	err := settle(ctx, phaseProvision, schedule.Schedule{entry}, "at least one provisioning attempt failed")

	require.EqualError(t, err, "at least one provisioning attempt failed")
	assert.Equal(t, failure.KindInfra, failure.KindOf(err))
}
