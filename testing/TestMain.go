package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	_ "github.com/taskgate/taskgate/internal/testing/guard"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("TASKGATE_TEST_MODE", "1")
		if os.Getenv("JWT_SECRET") == "" {
			_ = os.Setenv("JWT_SECRET", "test-jwt-secret")
		}
		if os.Getenv("GATEWAY_SECRET") == "" {
			_ = os.Setenv("GATEWAY_SECRET", "test-gateway-secret")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
