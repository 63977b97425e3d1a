// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// Integration skips the test in short mode, when CRUDKIT_SKIP_CONTAINERS is set, or when no
// container runtime is reachable.
func Integration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("CRUDKIT_SKIP_CONTAINERS") != "" {
		t.Skip("skipping container test (CRUDKIT_SKIP_CONTAINERS is set)")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}
