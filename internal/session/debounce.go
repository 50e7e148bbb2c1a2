package session

import (
	"context"
	"log"
	"sync"
	"time"
)

// DebouncedWriter coalesces rapid Save calls into a single trailing-edge
// write so per-keystroke mutations don't hammer the store. Correctness is
// unaffected: the last write always wins. Writes are fire-and-forget;
// failures are logged, never surfaced.
type DebouncedWriter struct {
	store   Store
	storeID string
	delay   time.Duration

	mu      sync.Mutex
	pending *Snapshot
	timer   *time.Timer
	closed  bool
}

// NewDebouncedWriter wraps store with a coalescing writer for one store
// identity.
func NewDebouncedWriter(store Store, storeID string, delay time.Duration) *DebouncedWriter {
	if delay <= 0 {
		delay = 400 * time.Millisecond
	}
	return &DebouncedWriter{store: store, storeID: storeID, delay: delay}
}

// Save records the snapshot as the pending write and (re)arms the trailing
// timer.
func (w *DebouncedWriter) Save(snap Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending = &snap
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.flushPending)
}

func (w *DebouncedWriter) flushPending() {
	w.mu.Lock()
	snap := w.pending
	w.pending = nil
	w.mu.Unlock()
	if snap == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.store.Save(ctx, w.storeID, *snap); err != nil {
		log.Printf("Session: debounced save failed for store %s: %v", w.storeID, err)
	}
}

// Flush performs one synchronous write of the pending snapshot, if any.
// Called on teardown so the last edit is never lost.
func (w *DebouncedWriter) Flush() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	w.flushPending()
}

// Close flushes and stops accepting further saves.
func (w *DebouncedWriter) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.Flush()
}
