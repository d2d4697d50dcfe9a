package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/streadway/amqp"

	"github.com/haulcrm/campaign-engine/internal/model"
)

// EventConsumer consumes lead lifecycle events from an AMQP queue. This is
// the durable inbound event feed; the CRM publishes, the engine consumes.
type EventConsumer struct {
	URL       string
	QueueName string
}

// maxEventRetries caps redelivery of a failing event before it is dropped.
const maxEventRetries = 3

// eventRetryCount reads the x-retry-count header. AMQP decodes the value as
// a platform-dependent integer width, so every width is accepted.
func eventRetryCount(headers amqp.Table) int {
	switch n := headers["x-retry-count"].(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	}
	return 0
}

// Run consumes events until the context is cancelled. Events that fail
// handling are requeued up to three times; the per-event idempotency claim
// downstream makes redelivery safe.
func (c *EventConsumer) Run(ctx context.Context, handle func(ctx context.Context, ev model.LeadEvent) error) error {
	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		c.QueueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf("📨 consuming lead events from %q", q.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, open := <-msgs:
			if !open {
				return fmt.Errorf("event channel closed")
			}

			var ev model.LeadEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				log.Println("⚠️ invalid lead event:", err)
				d.Ack(false)
				continue
			}

			if err := handle(ctx, ev); err != nil {
				log.Println("⚠️ failed to handle lead event:", err)
				retries := eventRetryCount(d.Headers)
				if retries < maxEventRetries {
					// A plain Nack requeue keeps the original headers, so
					// republish with the incremented count instead.
					pub := amqp.Publishing{
						ContentType: "application/json",
						Body:        d.Body,
						Headers:     amqp.Table{"x-retry-count": int32(retries + 1)},
					}
					if perr := ch.Publish("", q.Name, false, false, pub); perr != nil {
						log.Println("⚠️ failed to requeue lead event:", perr)
						d.Nack(false, true)
						continue
					}
				} else {
					log.Printf("⚠️ dropping lead event %q after %d attempts", ev.EventID, retries)
				}
			}

			d.Ack(false)
		}
	}
}
