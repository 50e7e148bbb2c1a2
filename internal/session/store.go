// Package session persists the in-progress checkout draft so page reloads
// and accidental navigation never lose progress. The draft blob is keyed by
// store identity and deleted on successful order completion.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/yourorg/checkout-orchestrator/internal/checkout"
)

// Snapshot is the persisted shape of one in-progress checkout.
type Snapshot struct {
	FormData       checkout.Form     `json:"formData"`
	CurrentStep    checkout.StepID   `json:"currentStep"`
	CompletedSteps []checkout.StepID `json:"completedSteps"`
}

// Encode serializes the snapshot to its persisted JSON form.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

var (
	// ErrNotFound is returned when no draft exists for the store.
	ErrNotFound = errors.New("session: no persisted checkout")
	// ErrCorruptSnapshot is returned when the persisted blob does not
	// parse. Callers log it and proceed with a fresh session; it is never
	// fatal.
	ErrCorruptSnapshot = errors.New("session: persisted checkout is corrupt")
)

// Store persists checkout drafts keyed by store identity.
type Store interface {
	Save(ctx context.Context, storeID string, snap Snapshot) error
	Load(ctx context.Context, storeID string) (Snapshot, error)
	Delete(ctx context.Context, storeID string) error
}

// Key returns the namespaced persistence key for a store.
func Key(storeID string) string {
	return fmt.Sprintf("checkout-%s", storeID)
}

func decode(raw []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return snap, nil
}

// MemoryStore is the in-process Store used in tests and single-node runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, storeID string, snap Snapshot) error {
	raw, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("session: encoding snapshot: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[Key(storeID)] = raw
	return nil
}

func (m *MemoryStore) Load(_ context.Context, storeID string) (Snapshot, error) {
	m.mu.RLock()
	raw, ok := m.blobs[Key(storeID)]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return decode(raw)
}

func (m *MemoryStore) Delete(_ context.Context, storeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, Key(storeID))
	return nil
}

// Put stores a raw blob directly, bypassing encoding. Test hook for
// exercising corrupt-blob handling.
func (m *MemoryStore) Put(storeID string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[Key(storeID)] = raw
}
