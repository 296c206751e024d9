package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SUPERVISOR_TEST_MODE") == "" {
			_ = os.Setenv("SUPERVISOR_TEST_MODE", "1")
		}
	})
}
