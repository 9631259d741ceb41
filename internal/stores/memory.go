package stores

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	record    FlowRecord
	expiresAt time.Time
}

type memoryLock struct {
	owner     string
	expiresAt time.Time
}

// MemoryStore is the single-process flow store. Expiry is checked lazily on
// read; there is no background sweep. It provides no cross-instance
// consistency and is only acceptable for a single running instance.
type MemoryStore struct {
	mu    sync.Mutex
	flows map[string]memoryEntry
	locks map[string]memoryLock
	now   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flows: make(map[string]memoryEntry),
		locks: make(map[string]memoryLock),
		now:   time.Now,
	}
}

// Get returns the flow record for flowID, or nil when absent or expired.
func (s *MemoryStore) Get(_ context.Context, flowID string) (*FlowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.flows[flowID]
	if !ok {
		return nil, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.flows, flowID)
		return nil, nil
	}
	record := entry.record
	return &record, nil
}

// Save upserts the record and resets its TTL clock.
func (s *MemoryStore) Save(_ context.Context, record *FlowRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flows[record.FlowID] = memoryEntry{
		record:    *record,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// AcquireLock performs a check-and-set on the lock map and returns the owner
// token on success, or "" when a non-expired lock is already held.
func (s *MemoryStore) AcquireLock(_ context.Context, flowID string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.locks[flowID]; ok && s.now().Before(held.expiresAt) {
		return "", nil
	}
	token := uuid.NewString()
	s.locks[flowID] = memoryLock{
		owner:     token,
		expiresAt: s.now().Add(ttl),
	}
	return token, nil
}

// ReleaseLock deletes the lock only if ownerToken still owns it.
func (s *MemoryStore) ReleaseLock(_ context.Context, flowID, ownerToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.locks[flowID]; ok && held.owner == ownerToken {
		delete(s.locks, flowID)
	}
	return nil
}

// Healthcheck always succeeds for the in-process backend.
func (s *MemoryStore) Healthcheck(_ context.Context) error {
	return nil
}

// Close drops all state. Idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flows = make(map[string]memoryEntry)
	s.locks = make(map[string]memoryLock)
	return nil
}
