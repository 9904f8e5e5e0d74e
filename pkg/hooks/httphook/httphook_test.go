package httphook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tusgate/tusgate/pkg/engine"
	"github.com/tusgate/tusgate/pkg/hookdispatch"
)

func snapshot() engine.Snapshot {
	return engine.Snapshot{
		Upload: engine.Record{ID: "upload-1"},
		Request: engine.RequestInfo{
			Method: http.MethodPost,
			URI:    "/files/upload-1",
			Header: map[string][]string{"X-Forward-Me": {"value"}},
		},
	}
}

func newNotifier(endpoint string) *Notifier {
	return &Notifier{
		Endpoint:       endpoint,
		MaxRetries:     1,
		Backoff:        time.Millisecond,
		Timeout:        5 * time.Second,
		ForwardHeaders: []string{"X-Forward-Me"},
		SizeLimit:      1 << 20,
	}
}

func TestHTTPHookForwardsPayloadAndHeaders(t *testing.T) {
	var gotHeader string
	var gotPayload hookdispatch.Payload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Forward-Me")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotPayload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := newNotifier(srv.URL)
	require.NoError(t, n.Setup())

	_, err := n.Invoke(context.Background(), engine.EventPreCreate, snapshot())
	require.NoError(t, err)
	assert.Equal(t, "value", gotHeader)
	assert.Equal(t, "upload-1", gotPayload.Upload.ID)
}

func TestHTTPHookParsesRejectResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rejectUpload": true, "reason": "too big"}`))
	}))
	defer srv.Close()

	n := newNotifier(srv.URL)
	require.NoError(t, n.Setup())

	res, err := n.Invoke(context.Background(), engine.EventPreCreate, snapshot())
	require.NoError(t, err)
	assert.True(t, res.Reject)
	assert.Equal(t, "too big", res.Reason)
}

func TestHTTPHookNonJSONResponseIsIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := newNotifier(srv.URL)
	require.NoError(t, n.Setup())

	res, err := n.Invoke(context.Background(), engine.EventPostFinish, snapshot())
	require.NoError(t, err)
	assert.False(t, res.Reject)
}

func TestHTTPHookErrorStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := &Notifier{Endpoint: srv.URL, MaxRetries: 1, Backoff: time.Millisecond, Timeout: 5 * time.Second, SizeLimit: 1 << 20}
	require.NoError(t, n.Setup())

	_, err := n.Invoke(context.Background(), engine.EventPostFinish, snapshot())
	assert.Error(t, err)
}

func TestHTTPHookOversizedResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reason": "` + string(make([]byte, 100)) + `"}`))
	}))
	defer srv.Close()

	n := &Notifier{Endpoint: srv.URL, MaxRetries: 1, Backoff: time.Millisecond, Timeout: 5 * time.Second, SizeLimit: 8}
	require.NoError(t, n.Setup())

	_, err := n.Invoke(context.Background(), engine.EventPostFinish, snapshot())
	assert.Error(t, err)
}
