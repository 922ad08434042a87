package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TASKGATE_TEST_MODE") == "" {
			_ = os.Setenv("TASKGATE_TEST_MODE", "1")
		}
	})
}
