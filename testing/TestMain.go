// Package testing forces test mode for packages that import it, so binaries
// and app wiring skip network side effects under go test.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// TestModeEnv is read into app.Config.TestMode.
const TestModeEnv = "LEDGERDESK_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(TestModeEnv, "1")
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
