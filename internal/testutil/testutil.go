package testutil

import "testing"

// RequireDocker skips container-backed tests under -short.
func RequireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}
}
