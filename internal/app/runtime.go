package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// testModeEnv short-circuits the cmd binaries; internal/testing/guard sets it.
const testModeEnv = "GUDANG_TEST_MODE"

var (
	testModeOnce sync.Once
	testMode     atomic.Bool
)

// InTestMode reports whether binaries should return before touching
// Postgres, Redis or the network.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment. Unparseable values count as off.
func RefreshTestMode() {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	testMode.Store(err == nil && on)
}
