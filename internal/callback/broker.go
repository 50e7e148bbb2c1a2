// Package callback resolves the asynchronous result of a payment attempt
// back to the orchestrator. Messages arrive from the payment surface (a
// cross-window message, a webhook, or a same-process publish in tests);
// only same-origin senders are accepted. The absence of a message is a
// timeout, never success.
package callback

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Status is the resolved outcome of one payment attempt.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
	// StatusAbandoned is synthesized when no message arrives before the
	// caller's deadline, e.g. the customer closed the popup and walked
	// away. It is a timeout condition, not a protocol violation.
	StatusAbandoned Status = "abandoned"
)

// Message is the raw callback payload: {type: "<gateway>_callback",
// reference, status}.
type Message struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Result is the resolved outcome delivered to a subscriber.
type Result struct {
	Reference string
	Status    Status
}

// Broker matches incoming callback messages to pending subscriptions by
// payment reference. One subscriber per reference; a later Subscribe for
// the same reference replaces the earlier one.
type Broker struct {
	origin string

	mu      sync.Mutex
	waiters map[string]chan Result

	dropped func() // observes discarded messages, may be nil
}

// NewBroker creates a broker accepting messages only from origin.
func NewBroker(origin string) *Broker {
	return &Broker{origin: origin, waiters: make(map[string]chan Result)}
}

// OnDropped registers an observer called once per discarded message.
func (b *Broker) OnDropped(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropped = fn
}

// Subscribe registers interest in the callback for a reference. The
// returned cancel releases the subscription; it must always be called.
func (b *Broker) Subscribe(reference string) (<-chan Result, func()) {
	ch := make(chan Result, 1)
	b.mu.Lock()
	b.waiters[reference] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if b.waiters[reference] == ch {
			delete(b.waiters, reference)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a callback message. Messages from a foreign origin, or
// malformed ones, are discarded; a well-formed message with any status
// other than success or cancelled resolves as a failure.
func (b *Broker) Publish(msg Message, origin string) error {
	if origin != b.origin {
		log.Printf("Callback: discarding message for ref %s from foreign origin %q", msg.Reference, origin)
		b.recordDrop()
		return fmt.Errorf("callback: origin %q does not match %q", origin, b.origin)
	}
	if msg.Reference == "" || !strings.HasSuffix(msg.Type, "_callback") {
		log.Printf("Callback: discarding malformed message type=%q ref=%q", msg.Type, msg.Reference)
		b.recordDrop()
		return fmt.Errorf("callback: malformed message")
	}

	result := Result{Reference: msg.Reference}
	switch msg.Status {
	case string(StatusSuccess):
		result.Status = StatusSuccess
	case string(StatusCancelled):
		result.Status = StatusCancelled
	default:
		result.Status = StatusFailed
	}

	b.mu.Lock()
	ch, ok := b.waiters[msg.Reference]
	if ok {
		delete(b.waiters, msg.Reference)
	}
	b.mu.Unlock()
	if !ok {
		log.Printf("Callback: no subscriber for ref %s (status %s)", msg.Reference, msg.Status)
		return nil
	}
	ch <- result
	return nil
}

// Await blocks until the reference's callback arrives or ctx expires,
// resolving to StatusAbandoned on timeout. The subscription is always
// released before returning.
func (b *Broker) Await(ctx context.Context, reference string) Result {
	ch, cancel := b.Subscribe(reference)
	defer cancel()
	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
		return Result{Reference: reference, Status: StatusAbandoned}
	}
}

func (b *Broker) recordDrop() {
	b.mu.Lock()
	fn := b.dropped
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}
