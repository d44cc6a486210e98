package testutil

import (
	"context"
	"testing"
	"time"
)

// Context returns a context that is cancelled when the test finishes, with a
// generous deadline so a wedged pipeline run fails the test instead of
// hanging the suite.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
