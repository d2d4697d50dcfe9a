package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMemoryGatewayDeduplicatesOnKey(t *testing.T) {
	g := NewMemoryGateway()
	d := Dispatch{Destination: "+1551", Channel: "SMS", Body: "Hi", IdempotencyKey: "recipient-1-step-0"}

	if err := g.Send(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if err := g.Send(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if len(g.Sent()) != 1 {
		t.Errorf("duplicate key should be delivered once, got %d", len(g.Sent()))
	}
}

func TestMemoryGatewayFailFunc(t *testing.T) {
	g := NewMemoryGateway()
	g.FailFunc = func(d Dispatch) error { return errors.New("carrier down") }

	err := g.Send(context.Background(), Dispatch{IdempotencyKey: "k"})
	if err == nil {
		t.Fatal("expected failure")
	}
	if len(g.Sent()) != 0 {
		t.Error("failed dispatch must not be recorded as sent")
	}

	// After a failure the key is free to retry.
	g.FailFunc = nil
	if err := g.Send(context.Background(), Dispatch{IdempotencyKey: "k"}); err != nil {
		t.Fatal(err)
	}
	if len(g.Sent()) != 1 {
		t.Error("retry after failure should deliver")
	}
}

func TestHTTPGatewaySendsIdempotencyKeyHeader(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	g := NewHTTPGateway(server.URL, 2*time.Second)
	err := g.Send(context.Background(), Dispatch{
		Destination: "+1551", Channel: "SMS", Body: "Hi", IdempotencyKey: "rule-1-lead-2-event-x",
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotKey != "rule-1-lead-2-event-x" {
		t.Errorf("Idempotency-Key header = %q", gotKey)
	}
}

func TestHTTPGatewayRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	g := NewHTTPGateway(server.URL, 2*time.Second)
	if err := g.Send(context.Background(), Dispatch{IdempotencyKey: "k"}); err == nil {
		t.Error("non-2xx response should be an error")
	}
}

func TestHTTPGatewayTimeoutIsAFailure(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	g := NewHTTPGateway(server.URL, 50*time.Millisecond)
	if err := g.Send(context.Background(), Dispatch{IdempotencyKey: "k"}); err == nil {
		t.Error("a timed-out dispatch must surface as an error")
	}
}
