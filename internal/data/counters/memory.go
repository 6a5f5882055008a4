package counters

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

type memoryEntry struct {
	value   int64
	members map[string]struct{}
	expires time.Time
}

// MemoryStore is a process-local Store. It is used when no Redis address is
// configured and in tests; it is not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*memoryEntry{}, now: time.Now}
}

// WithClock replaces the time source; tests use it to expire keys.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *MemoryStore) live(key string) *memoryEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) IncrBy(_ context.Context, key string, delta, seed int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		if seed < 0 {
			seed = 0
		}
		e = &memoryEntry{value: seed}
		if ttl > 0 {
			e.expires = s.now().Add(ttl)
		}
		s.entries[key] = e
	}
	// Redis INCRBY rejects overflow the same way.
	if (delta > 0 && e.value > math.MaxInt64-delta) || (delta < 0 && e.value < math.MinInt64-delta) {
		return e.value, fmt.Errorf("counter incr %s: increment would overflow", key)
	}
	e.value += delta
	return e.value, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return 0, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) MarkSeen(_ context.Context, key, member string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		e = &memoryEntry{members: map[string]struct{}{}}
		s.entries[key] = e
	}
	if e.members == nil {
		e.members = map[string]struct{}{}
	}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	if _, ok := e.members[member]; ok {
		return false, nil
	}
	e.members[member] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Unmark(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(key); e != nil && e.members != nil {
		delete(e.members, member)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

// Len reports live keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if s.live(k) != nil {
			n++
		}
	}
	return n
}
