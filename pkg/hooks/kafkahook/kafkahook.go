// Package kafkahook implements hookdispatch.Notifier by publishing the
// event payload to a Kafka topic, grounded on cs3org-reva's use of
// segmentio/kafka-go.
package kafkahook

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/tusgate/tusgate/pkg/engine"
	"github.com/tusgate/tusgate/pkg/hookdispatch"
)

// Notifier writes one message per event to Topic, keyed by upload id so a
// consumer can partition by upload. Like amqphook, it never rejects and
// should only be registered for post-* events.
type Notifier struct {
	Brokers []string
	Topic   string
	Format  hookdispatch.Format

	writer *kafka.Writer
}

func (n *Notifier) Setup() error {
	n.writer = &kafka.Writer{
		Addr:     kafka.TCP(n.Brokers...),
		Topic:    n.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	return nil
}

func (n *Notifier) Invoke(ctx context.Context, kind engine.EventKind, snap engine.Snapshot) (hookdispatch.Result, error) {
	body, err := hookdispatch.Marshal(n.Format, kind, snap)
	if err != nil {
		return hookdispatch.Result{}, err
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(snap.Upload.ID),
		Value: body,
	})
	if err != nil {
		return hookdispatch.Result{}, fmt.Errorf("kafkahook: writing message: %w", err)
	}
	return hookdispatch.Result{}, nil
}

var _ hookdispatch.Notifier = (*Notifier)(nil)
