package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type memoryEntry struct {
	rec       *Record
	expiresAt time.Time
}

// MemoryStore keeps records in process memory. Entries idle for longer than
// the store TTL are dropped.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
}

// NewMemoryStore creates an empty store whose entries live for ttl after
// their last write.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, nil
	}

	return e.rec.Clone(), nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, id string, rec *Record) error {
	s.mu.Lock()
	s.entries[id] = &memoryEntry{
		rec:       rec.Clone(),
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Count returns the number of live entries.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	now := time.Now()
	var n int64

	s.mu.RLock()
	for _, e := range s.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	s.mu.RUnlock()

	return n, nil
}

// CleanExpired removes all expired entries and returns how many were dropped.
func (s *MemoryStore) CleanExpired() int {
	now := time.Now()
	removed := 0

	s.mu.Lock()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	s.mu.Unlock()

	return removed
}

// StartCleanupTicker periodically drops expired entries until ctx is cancelled.
func (s *MemoryStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.CleanExpired(); removed > 0 {
					slog.Debug("cleaned expired sessions", "removed", removed)
				}
			}
		}
	}()
}
