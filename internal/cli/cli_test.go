package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cipipe/internal/app"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/pipeline"
)

func TestParse_Pipeline(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{
		"-r", "2", "--log-level", "DEBUG", "--log-format", "json",
		"--config-dir", "/a", "--config-dir", "/b", "-i",
		"eval-context", "--var", "A=1",
		"rules-engine", "--rule", "A == '1'",
		"test-schedule-report",
	}
	out := &bytes.Buffer{}

	// --- Act ---
	cfg, shouldExit, err := Parse(args, out, app.NewCatalog())

	// --- Assert ---
	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Equal(t, &app.Config{
		Steps: []pipeline.Step{
			{Module: "eval-context", Args: []string{"--var", "A=1"}},
			{Module: "rules-engine", Args: []string{"--rule", "A == '1'"}},
			{Module: "test-schedule-report", Args: []string{}},
		},
		ConfigDirs: []string{"/a", "/b"},
		Retries:    2,
		LogFormat:  "json",
		LogLevel:   "debug",
		Info:       true,
	}, cfg)
	assert.Empty(t, out.String())
}

func TestParse_ModuleHelpIsNotGlobalHelp(t *testing.T) {
	t.Parallel()

	cfg, shouldExit, err := Parse([]string{"rules-engine", "--help"}, &bytes.Buffer{}, app.NewCatalog())

	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Equal(t, []pipeline.Step{{Module: "rules-engine", Args: []string{"--help"}}}, cfg.Steps)
}

func TestParse_ShouldExit(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
		want []string
	}{
		{name: "help", args: []string{"-h"}, want: []string{"Usage:", "--retries", "--config-dir"}},
		{name: "no arguments", args: nil, want: []string{"Usage:"}},
		{name: "version", args: []string{"-V"}, want: []string{"cipipe version dev"}},
		{name: "list", args: []string{"--list"}, want: []string{"Available modules:", "provision:", "static-guest", "rules:", "rules-engine"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			out := &bytes.Buffer{}

			// --- Act ---
			cfg, shouldExit, err := Parse(tc.args, out, app.NewCatalog())

			// --- Assert ---
			require.NoError(t, err)
			assert.True(t, shouldExit)
			assert.Nil(t, cfg)
			for _, want := range tc.want {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestParse_UsageErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		args      []string
		wantError string
	}{
		{name: "unknown flag", args: []string{"--this-is-not-a-valid-flag"}, wantError: "unknown flag: --this-is-not-a-valid-flag"},
		{name: "bad retries", args: []string{"-r", "many", "eval-context"}, wantError: "invalid argument"},
		{name: "negative retries", args: []string{"-r", "-1", "eval-context"}, wantError: "retries must not be negative"},
		{name: "unknown module", args: []string{"no-such-module"}, wantError: "unknown module 'no-such-module'"},
		{name: "log format", args: []string{"--log-format", "xml", "eval-context"}, wantError: "invalid log-format"},
		{name: "log level", args: []string{"--log-level", "trace", "eval-context"}, wantError: "invalid log-level"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := Parse(tc.args, &bytes.Buffer{}, app.NewCatalog())

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantError)
		})
	}
}

func TestParse_ConfigDirsFromEnvironment(t *testing.T) {
	t.Setenv(ConfigDirsEnv, "/etc/one:/etc/two")

	cfg, _, err := Parse([]string{"eval-context"}, &bytes.Buffer{}, app.NewCatalog())

	require.NoError(t, err)
	assert.Equal(t, []string{"/etc/one", "/etc/two"}, cfg.ConfigDirs)
}

func TestExitFor(t *testing.T) {
	t.Parallel()

	usage := &ExitError{Code: 2, Message: "bad flag"}

	testCases := []struct {
		name     string
		err      error
		wantCode int
		wantNil  bool
	}{
		{name: "success", err: nil, wantNil: true},
		{name: "module help", err: &failure.Failure{Module: "x", Err: pflag.ErrHelp}, wantNil: true},
		{name: "usage", err: usage, wantCode: 2},
		{name: "soft failure", err: &failure.Failure{Module: "x", Err: failure.Soft("nothing to do")}, wantCode: 0},
		{name: "infra failure", err: &failure.Failure{Module: "x", Err: failure.Infra("down")}, wantCode: 1},
		{name: "plain error", err: errors.New("boom"), wantCode: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ExitFor(tc.err)

			if tc.wantNil {
				assert.NoError(t, err)
				return
			}
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tc.wantCode, exitErr.Code)
			assert.Equal(t, tc.err.Error(), exitErr.Message)
		})
	}
}
