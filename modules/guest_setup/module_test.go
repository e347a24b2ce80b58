package guest_setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cipipe/internal/capabilities"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/registry"
	"github.com/specialistvlad/cipipe/internal/schedule"
	"github.com/specialistvlad/cipipe/internal/testutil"
)

func TestModule_SetupGuest(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		command   string
		timeout   string
		wantError string
	}{
		{name: "success", command: `test "$GUEST_NAME:$GUEST_ARCH:$GUEST_COMPOSE" = "vm1:x86_64:Fedora-33"`},
		{name: "failure carries output", command: "echo broken >&2; exit 3", wantError: `"broken"`},
		{name: "timeout", command: "sleep 5", timeout: "50ms", wantError: "timed out"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			h := testutil.NewHarness(t)
			args := []string{"--command", tc.command}
			if tc.timeout != "" {
				args = append(args, "--timeout", tc.timeout)
			}
			_, err := h.Execute(t, &Module{}, name, args...)
			require.NoError(t, err)
			setup, ok := registry.Lookup(h.Registry, capabilities.SetupGuest)
			require.True(t, ok)
			guest := &testutil.FakeGuest{GuestName: "vm1", Env: schedule.Environment{Arch: "x86_64", Compose: "Fedora-33"}}

			// --- Act ---
			err = setup(h.Context(), guest)

			// --- Assert ---
			if tc.wantError == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantError)
			assert.Equal(t, failure.KindInfra, failure.KindOf(err))
		})
	}
}

func TestModule_InvalidTimeout(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t)

	_, err := h.Execute(t, &Module{}, name, "--command", "true", "--timeout", "soon")

	require.Error(t, err)
	assert.Equal(t, failure.KindConfig, failure.KindOf(err))
}
