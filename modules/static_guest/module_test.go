package static_guest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cipipe/internal/capabilities"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/registry"
	"github.com/specialistvlad/cipipe/internal/schedule"
	"github.com/specialistvlad/cipipe/internal/testutil"
)

func startPool(t *testing.T, h *testutil.Harness, args ...string) capabilities.ProvisionFunc {
	t.Helper()
	_, err := h.Execute(t, &Module{}, name, args...)
	require.NoError(t, err)
	provision, ok := registry.Lookup(h.Registry, capabilities.Provision)
	require.True(t, ok)
	return provision
}

func TestModule_ProvisionIsExclusive(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	h := testutil.NewHarness(t)
	provision := startPool(t, h, "-g", "a:x86_64", "-g", "b:x86_64:Fedora-33", "-g", "c:s390x")
	want := schedule.Environment{Arch: "x86_64", Compose: "Fedora-33"}

	// --- Act ---
	first, err1 := provision(h.Context(), want)
	second, err2 := provision(h.Context(), want)
	_, err3 := provision(h.Context(), want)

	// --- Assert ---
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, "a", first.Name())
	assert.Equal(t, "b", second.Name())
	require.Error(t, err3)
	assert.Equal(t, failure.KindInfra, failure.KindOf(err3))
}

func TestModule_NoMatchingGuestIsSoft(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t)
	provision := startPool(t, h, "-g", "a:x86_64")

	_, err := provision(h.Context(), schedule.Environment{Arch: "aarch64"})

	require.Error(t, err)
	assert.True(t, failure.IsSoft(err))
	assert.Contains(t, err.Error(), "arch=aarch64")
}

func TestModule_Capabilities(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t)
	startPool(t, h, "-g", "a:x86_64,b:s390x", "-g", "c:x86_64")

	caps, ok := registry.Lookup(h.Registry, capabilities.ProvisionerCapabilities)
	require.True(t, ok)

	assert.Equal(t, []string{"s390x", "x86_64"}, caps().AvailableArches)
	assert.False(t, caps().SupportsAnyArch())
}

func TestModule_GuestSetupDelegates(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	h := testutil.NewHarness(t)
	provision := startPool(t, h, "-g", "a:x86_64")
	g, err := provision(h.Context(), schedule.Environment{Arch: "x86_64"})
	require.NoError(t, err)

	// --- Act & Assert ---
	require.NoError(t, g.Setup(h.Context()), "setup is a no-op without setup_guest")

	boom := errors.New("boom")
	var got string
	h.Provide(capabilities.SetupGuest.Bind(func(_ context.Context, guest schedule.Guest) error {
		got = guest.Name()
		return boom
	}))
	assert.ErrorIs(t, g.Setup(h.Context()), boom)
	assert.Equal(t, "a", got)
}

func TestModule_InvalidGuests(t *testing.T) {
	t.Parallel()

	testCases := map[string][]string{
		"missing arch": {"-g", "a"},
		"duplicate":    {"-g", "a:x86_64", "-g", "a:s390x"},
		"missing":      nil,
	}

	for tcName, args := range testCases {
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()

			h := testutil.NewHarness(t)
			_, err := h.Execute(t, &Module{}, name, args...)

			require.Error(t, err)
			assert.Equal(t, failure.KindConfig, failure.KindOf(err))
		})
	}
}
