// Package natshook implements hookdispatch.Notifier by publishing the event
// payload on a NATS subject, grounded on cs3org-reva's
// pkg/notification/utils.ConnectToNats.
package natshook

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/tusgate/tusgate/pkg/engine"
	"github.com/tusgate/tusgate/pkg/hookdispatch"
)

// Notifier publishes to "<SubjectPrefix><event>". Like the other broker
// notifiers, it never rejects and should only be registered for post-*
// events.
type Notifier struct {
	URL           string
	SubjectPrefix string
	Format        hookdispatch.Format

	conn *nats.Conn
}

func (n *Notifier) Setup() error {
	conn, err := nats.Connect(n.URL, nats.MaxReconnects(-1))
	if err != nil {
		return fmt.Errorf("natshook: connecting: %w", err)
	}
	n.conn = conn
	return nil
}

func (n *Notifier) Invoke(ctx context.Context, kind engine.EventKind, snap engine.Snapshot) (hookdispatch.Result, error) {
	body, err := hookdispatch.Marshal(n.Format, kind, snap)
	if err != nil {
		return hookdispatch.Result{}, err
	}

	if err := n.conn.Publish(n.SubjectPrefix+string(kind), body); err != nil {
		return hookdispatch.Result{}, fmt.Errorf("natshook: publishing: %w", err)
	}
	return hookdispatch.Result{}, nil
}

var _ hookdispatch.Notifier = (*Notifier)(nil)
