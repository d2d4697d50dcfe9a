package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/haulcrm/campaign-engine/internal/model"
)

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue is an in-process queue with retry, used in development and
// tests in place of the AMQP broker.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("Job failed (attempt %d/%d): %v\n", job.RetryCount, job.MaxRetries, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("Job permanently failed after %d attempts: %+v\n", job.MaxRetries, job.Payload)
			return // No requeue
		}

		// Exponential backoff before retry
		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// LeadEventTopic is the topic lead lifecycle events arrive on.
const LeadEventTopic = "lead_events"

// StartLeadEventSubscriber wires a lead-event handler to the queue. The
// handler's idempotency (per rule/lead/event claim) makes redelivery safe.
func StartLeadEventSubscriber(q Queue, handle func(ctx context.Context, ev model.LeadEvent) error) {
	go func() {
		err := q.Subscribe(LeadEventTopic, func(payload any) error {
			ev, ok := payload.(model.LeadEvent)
			if !ok {
				log.Printf("⚠️ invalid lead event payload type %T", payload)
				return nil // drop, no retry
			}

			if err := handle(context.Background(), ev); err != nil {
				log.Println("⚠️ failed to handle lead event:", err)
				return err // triggers retry in queue
			}
			return nil
		})

		if err != nil {
			log.Println("⚠️ failed to start subscriber for lead_events:", err)
		}
	}()
}
