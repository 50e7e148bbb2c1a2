// Package ratelimit tracks payment failures per customer identity and
// decides whether another attempt is permitted. State is keyed by email,
// not session, so closing and reopening checkout cannot bypass the
// limiter.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// State is one identity's failure window.
type State struct {
	Count        int       `json:"count"`
	WindowStart  time.Time `json:"windowStart"`
	BlockedUntil time.Time `json:"blockedUntil"`
}

// Store persists per-identity limiter state. Implementations must be safe
// for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (State, bool, error)
	Put(ctx context.Context, key string, s State) error
	Delete(ctx context.Context, key string) error
}

const (
	DefaultCeiling = 5
	DefaultWarnAt  = 3
	DefaultWindow  = 15 * time.Minute
)

// Limiter enforces the failure ceiling and cool-down window over an
// injectable Store.
type Limiter struct {
	store   Store
	ceiling int
	warnAt  int
	window  time.Duration
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithCeiling sets the failure count that triggers lockout.
func WithCeiling(n int) Option { return func(l *Limiter) { l.ceiling = n } }

// WithWarnAt sets the count at which callers start showing attempts
// remaining.
func WithWarnAt(n int) Option { return func(l *Limiter) { l.warnAt = n } }

// WithWindow sets the cool-down window length.
func WithWindow(d time.Duration) Option { return func(l *Limiter) { l.window = d } }

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }

// NewLimiter creates a limiter over store with the given options.
func NewLimiter(store Store, opts ...Option) *Limiter {
	if store == nil {
		panic("ratelimit: store cannot be nil")
	}
	l := &Limiter{
		store:   store,
		ceiling: DefaultCeiling,
		warnAt:  DefaultWarnAt,
		window:  DefaultWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// normalize canonicalizes a customer identity key.
func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// load fetches state, treating an expired window as empty.
func (l *Limiter) load(ctx context.Context, key string) (State, error) {
	s, ok, err := l.store.Get(ctx, normalize(key))
	if err != nil || !ok {
		return State{}, err
	}
	if l.now().Sub(s.WindowStart) >= l.window {
		return State{}, nil
	}
	return s, nil
}

// CanAttempt reports whether another payment attempt is permitted for the
// identity. On store errors it fails open: the limiter is a guard rail,
// not the system of record.
func (l *Limiter) CanAttempt(ctx context.Context, key string) bool {
	s, err := l.load(ctx, key)
	if err != nil {
		return true
	}
	if !s.BlockedUntil.IsZero() && l.now().Before(s.BlockedUntil) {
		return false
	}
	return s.Count < l.ceiling
}

// RemainingAttempts returns how many failures remain before lockout.
func (l *Limiter) RemainingAttempts(ctx context.Context, key string) int {
	s, err := l.load(ctx, key)
	if err != nil {
		return l.ceiling
	}
	remaining := l.ceiling - s.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ShouldWarn reports whether the identity has failed often enough that the
// caller should surface an attempts-remaining notice.
func (l *Limiter) ShouldWarn(ctx context.Context, key string) bool {
	s, err := l.load(ctx, key)
	if err != nil {
		return false
	}
	return s.Count >= l.warnAt
}

// RecordFailure counts one failed attempt, starting a window on the first
// failure and setting the lockout timestamp when the ceiling is reached.
func (l *Limiter) RecordFailure(ctx context.Context, key string) error {
	k := normalize(key)
	s, err := l.load(ctx, k)
	if err != nil {
		return err
	}
	if s.Count == 0 {
		s.WindowStart = l.now()
	}
	s.Count++
	if s.Count >= l.ceiling {
		s.BlockedUntil = s.WindowStart.Add(l.window)
	}
	return l.store.Put(ctx, k, s)
}

// RemainingTime returns how long until the identity's window resets. Zero
// means an attempt is permitted now.
func (l *Limiter) RemainingTime(ctx context.Context, key string) time.Duration {
	s, err := l.load(ctx, key)
	if err != nil || s.Count == 0 {
		return 0
	}
	if s.Count < l.ceiling {
		return 0
	}
	remaining := s.WindowStart.Add(l.window).Sub(l.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the identity's window entirely. Called on any successful
// payment.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Delete(ctx, normalize(key))
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[key]
	return s, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}
