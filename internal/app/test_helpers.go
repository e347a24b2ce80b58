package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Logs and
// module output share one buffer.
func SetupAppTest(t *testing.T, cfg *Config, modules ...module.Registrar) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.ConfigDirs == nil {
		cfg.ConfigDirs = []string{t.TempDir()}
	}
	testApp := NewApp(logBuffer, cfg, NewCatalog(modules...))

	t.Cleanup(func() {
		if os.Getenv("CIPIPE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
