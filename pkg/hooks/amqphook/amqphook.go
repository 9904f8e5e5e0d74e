// Package amqphook implements hookdispatch.Notifier by publishing the event
// payload to a RabbitMQ exchange, with one routing key per event so a
// deployment can bind per-event queues. Messages carry only the JSON
// payload; no celery-style task headers are attached.
// There is no equivalent hook transport in the teacher; this is grounded in
// the broader pack's use of the amqp091-go client as the maintained
// successor to streadway/amqp.
package amqphook

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tusgate/tusgate/pkg/engine"
	"github.com/tusgate/tusgate/pkg/hookdispatch"
)

// Notifier publishes to Exchange using "<RoutingPrefix><event>" as the
// routing key. It never rejects an upload: message delivery is
// fire-and-forget, so this notifier should only be registered for post-*
// events.
type Notifier struct {
	URL           string
	Exchange      string
	RoutingPrefix string
	Format        hookdispatch.Format

	conn *amqp.Connection
	ch   *amqp.Channel
}

func (n *Notifier) Setup() error {
	conn, err := amqp.Dial(n.URL)
	if err != nil {
		return fmt.Errorf("amqphook: dialing broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqphook: opening channel: %w", err)
	}
	if err := ch.ExchangeDeclare(n.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqphook: declaring exchange: %w", err)
	}
	n.conn = conn
	n.ch = ch
	return nil
}

func (n *Notifier) Invoke(ctx context.Context, kind engine.EventKind, snap engine.Snapshot) (hookdispatch.Result, error) {
	body, err := hookdispatch.Marshal(n.Format, kind, snap)
	if err != nil {
		return hookdispatch.Result{}, err
	}

	err = n.ch.PublishWithContext(ctx, n.Exchange, n.RoutingPrefix+string(kind), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return hookdispatch.Result{}, fmt.Errorf("amqphook: publishing: %w", err)
	}
	return hookdispatch.Result{}, nil
}

var _ hookdispatch.Notifier = (*Notifier)(nil)
