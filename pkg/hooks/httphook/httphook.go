// Package httphook implements hookdispatch.Notifier by POSTing the event
// payload to a configured endpoint, modeled on the teacher's
// pkg/hooks/http package.
package httphook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/sethgrid/pester"

	"github.com/tusgate/tusgate/pkg/engine"
	"github.com/tusgate/tusgate/pkg/hookdispatch"
)

// Notifier POSTs a JSON-encoded Payload to Endpoint and, if the response is
// itself JSON, parses it as a hookdispatch.Response.
type Notifier struct {
	Endpoint       string
	MaxRetries     int
	Backoff        time.Duration
	Timeout        time.Duration
	ForwardHeaders []string
	SizeLimit      int64
	Format         hookdispatch.Format

	client *pester.Client
}

func (n *Notifier) Setup() error {
	client := pester.New()
	client.KeepLog = true
	client.MaxRetries = n.MaxRetries
	backoff := n.Backoff
	client.Backoff = func(_ int) time.Duration { return backoff }
	n.client = client
	return nil
}

func (n *Notifier) Invoke(ctx context.Context, kind engine.EventKind, snap engine.Snapshot) (hookdispatch.Result, error) {
	body, err := hookdispatch.Marshal(n.Format, kind, snap)
	if err != nil {
		return hookdispatch.Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, n.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Endpoint, bytes.NewReader(body))
	if err != nil {
		return hookdispatch.Result{}, err
	}
	for _, key := range n.ForwardHeaders {
		if vals, ok := snap.Request.Header[http.CanonicalHeaderKey(key)]; ok {
			req.Header[key] = vals
		}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		return hookdispatch.Result{}, err
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, n.SizeLimit+1))
	if err != nil {
		return hookdispatch.Result{}, err
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return hookdispatch.Result{}, fmt.Errorf("hook endpoint returned %d: %s", res.StatusCode, string(respBody))
	}
	if int64(len(respBody)) > n.SizeLimit {
		return hookdispatch.Result{}, fmt.Errorf("hook response exceeded maximum size of %d bytes", n.SizeLimit)
	}
	if len(respBody) == 0 {
		return hookdispatch.Result{}, nil
	}

	contentType := res.Header.Get("Content-Type")
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil && mediaType != "application/json" {
			return hookdispatch.Result{}, nil
		}
	}

	var parsed hookdispatch.Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return hookdispatch.Result{}, fmt.Errorf("parsing hook response: %w", err)
	}
	return parsed.ToResult(), nil
}

var _ hookdispatch.Notifier = (*Notifier)(nil)
