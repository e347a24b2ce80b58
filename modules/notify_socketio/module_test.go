package notify_socketio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/testutil"
)

type recordingPublisher struct {
	target Target
	sent   []Notification
	err    error
}

func (p *recordingPublisher) publish(_ context.Context, target Target, n Notification) error {
	p.target = target
	p.sent = append(p.sent, n)
	return p.err
}

func TestModule_DestroySendsResult(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		failure *failure.Failure
		want    Notification
	}{
		{
			name: "passed",
			want: Notification{RunID: "test-run", Result: "passed"},
		},
		{
			name:    "soft error",
			failure: &failure.Failure{Module: "test-scheduler", Err: failure.Soft("nothing to test")},
			want:    Notification{RunID: "test-run", Result: "soft-error", Module: "test-scheduler", Kind: "soft", Message: "nothing to test"},
		},
		{
			name:    "error",
			failure: &failure.Failure{Module: "static-guest", Err: errors.New("boom")},
			want:    Notification{RunID: "test-run", Result: "error", Module: "static-guest", Kind: "unknown", Message: "boom"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			h := testutil.NewHarness(t)
			p := &recordingPublisher{}
			inst, err := h.Execute(t, &Module{Publish: p.publish}, name, "--url", "wss://ci.example.com/socket.io/", "--timeout", "3s")
			require.NoError(t, err)

			// --- Act ---
			err = inst.Destroy(h.Context(), tc.failure)

			// --- Assert ---
			require.NoError(t, err)
			require.Len(t, p.sent, 1)
			assert.Equal(t, tc.want, p.sent[0])
			assert.Equal(t, Target{
				URL:       "wss://ci.example.com/socket.io/",
				Namespace: "/",
				Event:     "pipeline-result",
				Timeout:   3 * time.Second,
			}, p.target)
		})
	}
}

func TestModule_PublishError(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t)
	p := &recordingPublisher{err: errors.New("unreachable")}
	inst, err := h.Execute(t, &Module{Publish: p.publish}, name, "--url", "ws://localhost:1/")
	require.NoError(t, err)

	err = inst.Destroy(h.Context(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestModule_DestroyBeforeSanitySendsNothing(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t)
	p := &recordingPublisher{}
	inst := h.Construct(t, &Module{Publish: p.publish}, name)

	require.NoError(t, inst.Destroy(h.Context(), nil))
	assert.Empty(t, p.sent)
}

func TestModule_InvalidTimeout(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t)

	_, err := h.Execute(t, &Module{}, name, "--url", "ws://localhost/", "--timeout=-1s")

	require.Error(t, err)
	assert.Equal(t, failure.KindConfig, failure.KindOf(err))
}

func TestEmit_UnreachableServer(t *testing.T) {
	t.Parallel()

	err := emit(context.Background(), Target{
		URL:       "ws://127.0.0.1:1/socket.io/",
		Namespace: "/",
		Event:     "pipeline-result",
		Timeout:   500 * time.Millisecond,
	}, Notification{RunID: "r", Result: "passed"})

	assert.Error(t, err)
}
