// Package testing switches the process into test mode when imported for side
// effects, and supplies the environment LoadConfig needs.
package testing

import (
	"os"
	"sync"
)

// Env lists the variables set for tests when they are not already present.
var Env = map[string]string{
	"EXHIBITPOS_TEST_MODE": "1",
	"SESSION_SECRET":       "test-secret",
	"LOG_FORMAT":           "json",
}

var once sync.Once

// Ensure applies Env once per process.
func Ensure() {
	once.Do(func() {
		for k, v := range Env {
			if _, ok := os.LookupEnv(k); !ok {
				_ = os.Setenv(k, v)
			}
		}
	})
}

func init() {
	Ensure()
}
