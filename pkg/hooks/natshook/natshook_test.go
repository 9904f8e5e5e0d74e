package natshook

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tusgate/tusgate/pkg/engine"
)

// Exercises the notifier against a real NATS server; skipped unless one is
// reachable, since nats.go offers no in-process fake to dial against.
func TestNatsHookPublishesEvent(t *testing.T) {
	url := os.Getenv("TUSGATE_TEST_NATS_URL")
	if url == "" {
		t.Skip("TUSGATE_TEST_NATS_URL not set")
	}

	n := &Notifier{URL: url, SubjectPrefix: "tusgate.hooks.test."}
	require.NoError(t, n.Setup())

	_, err := n.Invoke(context.Background(), engine.EventPostFinish, engine.Snapshot{Upload: engine.Record{ID: "upload-1"}})
	require.NoError(t, err)
}
