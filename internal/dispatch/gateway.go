// internal/dispatch/gateway.go
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// Dispatch is the outbound message handed to the carrier gateway.
type Dispatch struct {
	Destination    string `json:"destination"`
	Channel        string `json:"channel"`
	Subject        string `json:"subject,omitempty"`
	Body           string `json:"body"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Gateway is the send-channel abstraction. The engine decides what to send to
// whom and when; the gateway owns actual SMS/email delivery. Implementations
// must treat IdempotencyKey as a dedup key so a retried call is safe.
type Gateway interface {
	Send(ctx context.Context, d Dispatch) error
}

// HTTPGateway posts dispatches to a carrier API. Every call is bounded by
// Timeout; a timeout is reported as a failure outcome, not as unknown. A
// delayed success behind a timeout is deduplicated carrier-side by the
// idempotency key.
type HTTPGateway struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewHTTPGateway builds an HTTP gateway with a bounded client timeout.
func NewHTTPGateway(url string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		URL:     url,
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Send(ctx context.Context, d Dispatch) error {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", d.IdempotencyKey)

	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch rejected: gateway returned %d", resp.StatusCode)
	}
	return nil
}

// MemoryGateway records dispatches in memory. Used in development and tests.
// It deduplicates on IdempotencyKey the way a real carrier gateway is
// expected to.
type MemoryGateway struct {
	mu   sync.Mutex
	sent map[string]Dispatch
	// FailFunc, when set, decides whether a dispatch fails. Duplicate keys
	// never reach it.
	FailFunc func(d Dispatch) error
}

// NewMemoryGateway builds an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{sent: make(map[string]Dispatch)}
}

func (g *MemoryGateway) Send(ctx context.Context, d Dispatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	if _, dup := g.sent[d.IdempotencyKey]; dup {
		g.mu.Unlock()
		return nil // already delivered, dedup
	}
	g.mu.Unlock()

	if g.FailFunc != nil {
		if err := g.FailFunc(d); err != nil {
			return err
		}
	}

	g.mu.Lock()
	g.sent[d.IdempotencyKey] = d
	g.mu.Unlock()

	log.Printf("📤 dispatched %s to %s (key=%s)", d.Channel, d.Destination, d.IdempotencyKey)
	return nil
}

// Sent returns all delivered dispatches, keyed by idempotency key.
func (g *MemoryGateway) Sent() map[string]Dispatch {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]Dispatch, len(g.sent))
	for k, v := range g.sent {
		out[k] = v
	}
	return out
}
