package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Logs are
// captured at debug level; set GRIDCI_TEST_LOGS=true to print them.
func SetupAppTest(t *testing.T, cfg *Config, modules ...executor.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, modules...)

	t.Cleanup(func() {
		if os.Getenv("GRIDCI_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
