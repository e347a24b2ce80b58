package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cipipe/internal/cli"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, args)

	// --- Assert ---
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_ModuleHelp(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"--config-dir", t.TempDir(), "static-guest", "--help"})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "static-guest - ")
	assert.Contains(t, out.String(), "--guest")
}

func TestRun_Pipeline(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	out := &bytes.Buffer{}
	args := []string{
		"--config-dir", t.TempDir(),
		"eval-context", "--no-environment", "--var", "FOO=foo",
		"rules-engine", "--rule", "FOO.match('bar')",
	}

	// --- Act ---
	err := run(context.Background(), out, args)

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, out.String(), "FOO.match('bar') => false")
}

func TestRun_ExitCodes(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	schedule := filepath.Join(dir, "schedule.yaml")
	require.NoError(t, os.WriteFile(schedule, []byte("- id: smoke\n  runner: smoke.sh\n"), 0o600))

	testCases := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{
			name:     "disallowed rule",
			args:     []string{"rules-engine", "--rule", "1 * 1"},
			wantCode: 1,
		},
		{
			name: "no testable arch is a soft error",
			args: []string{
				"rules-engine",
				"static-guest", "--guest", "box:x86_64",
				"test-schedule-file", "--schedule", schedule,
				"test-scheduler", "--arch", "s390x",
			},
			wantCode: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Act ---
			err := run(context.Background(), &bytes.Buffer{}, append([]string{"--config-dir", dir}, tc.args...))

			// --- Assert ---
			var exitErr *cli.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tc.wantCode, exitErr.Code)
		})
	}
}
