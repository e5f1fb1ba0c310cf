package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("KASIRPOS_TEST_MODE") == "" {
			_ = os.Setenv("KASIRPOS_TEST_MODE", "1")
		}
	})
}
