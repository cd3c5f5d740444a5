package app

import (
	"os"
	"strings"
	"sync/atomic"
)

// TestModeEnv makes the binaries return before touching Postgres or Redis.
const TestModeEnv = "EXHIBITPOS_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	RefreshTestMode()
	return *testMode.Load()
}

// RefreshTestMode re-reads the flag after environment changes.
func RefreshTestMode() {
	on := truthy(os.Getenv(TestModeEnv))
	testMode.Store(&on)
}

func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
