// Package testutil holds helpers shared by module tests.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cipipe/internal/config"
	"github.com/specialistvlad/cipipe/internal/ctxlog"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Harness runs single modules against a registry the test controls, the
// way one step of a pipeline attempt would.
type Harness struct {
	Registry *registry.Registry
	// Out captures user-facing module output.
	Out *SafeBuffer
	// Logs captures debug-level text logs.
	Logs   *SafeBuffer
	Logger *slog.Logger
	// Config is the persisted configuration modules see, nil for none.
	Config config.Source
	RunID  string
}

// NewHarness creates a harness with an empty registry. Logs are printed at
// the end of the test when CIPIPE_TEST_LOGS=true.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	logs := &SafeBuffer{}
	h := &Harness{
		Registry: registry.New(),
		Out:      &SafeBuffer{},
		Logs:     logs,
		Logger:   slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		RunID:    "test-run",
	}

	t.Cleanup(func() {
		if os.Getenv("CIPIPE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return h
}

// Context returns a background context carrying the harness logger.
func (h *Harness) Context() context.Context {
	return ctxlog.WithLogger(context.Background(), h.Logger)
}

// Provide publishes fn under the binding's name as if a module called
// "test" had registered it.
func (h *Harness) Provide(b registry.Binding) {
	h.Registry.Register(b.Name, stubOwner("test"), b.Fn)
}

type stubOwner string

func (o stubOwner) Name() string { return string(o) }

// Construct builds the module name registered by r.
func (h *Harness) Construct(t *testing.T, r module.Registrar, name string) *module.Instance {
	t.Helper()

	catalog := module.NewCatalog()
	r.Register(catalog)
	desc, ok := catalog.Lookup(name)
	require.True(t, ok, "module '%s' is not registered", name)

	inst, err := module.Construct(desc, module.Env{
		Registry: h.Registry,
		RunID:    h.RunID,
		Logger:   h.Logger,
		Out:      h.Out,
	})
	require.NoError(t, err)
	return inst
}

// Execute constructs the module, parses args and executes it. The instance
// is returned even when a step fails so tests can destroy it.
func (h *Harness) Execute(t *testing.T, r module.Registrar, name string, args ...string) (*module.Instance, error) {
	t.Helper()

	inst := h.Construct(t, r, name)
	ctx := h.Context()
	if err := inst.Prepare(ctx, h.Config, args); err != nil {
		return inst, err
	}
	return inst, inst.Execute(ctx)
}
