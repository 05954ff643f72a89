package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store bounded to maxKeys distinct keys. When
// the bound is reached the least recently used keys are evicted, so a flood
// of unique IPs degrades accuracy for idle clients instead of growing the
// heap without limit.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used
	maxKeys int
	evicted int64
}

type storeEntry struct {
	key    string
	stamps []time.Time
}

// NewMemoryStore creates a store holding at most maxKeys keys. Non-positive
// maxKeys falls back to 10000.
func NewMemoryStore(maxKeys int) *MemoryStore {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &MemoryStore{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxKeys: maxKeys,
	}
}

// CheckAndAdd counts requests after cutoff and records the new one when the
// count is below limit. Stale timestamps for the key are pruned in passing,
// so per-key memory stays proportional to the limit.
func (s *MemoryStore) CheckAndAdd(ctx context.Context, key string, now, cutoff time.Time, limit int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, exists := s.entries[key]
	var entry *storeEntry
	count := 0

	if exists {
		entry = elem.Value.(*storeEntry)
		valid := entry.stamps[:0]
		for _, ts := range entry.stamps {
			if ts.After(cutoff) {
				valid = append(valid, ts)
			}
		}
		entry.stamps = valid
		count = len(valid)
	}

	if count >= limit {
		if exists {
			s.order.MoveToFront(elem)
		}
		return false, count, nil
	}

	if !exists {
		if len(s.entries) >= s.maxKeys {
			s.evictOldest()
		}
		entry = &storeEntry{key: key, stamps: make([]time.Time, 0, 8)}
		elem = s.order.PushFront(entry)
		s.entries[key] = elem
	} else {
		s.order.MoveToFront(elem)
	}

	entry.stamps = append(entry.stamps, now)
	return true, count + 1, nil
}

// Cleanup removes timestamps at or before cutoff across all keys and drops
// keys left with none.
func (s *MemoryStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, elem := range s.entries {
		entry := elem.Value.(*storeEntry)
		valid := entry.stamps[:0]
		for _, ts := range entry.stamps {
			if ts.After(cutoff) {
				valid = append(valid, ts)
			}
		}
		entry.stamps = valid

		if len(valid) == 0 {
			s.order.Remove(elem)
			delete(s.entries, key)
		}
	}
	return nil
}

// KeyCount reports the number of keys currently tracked.
func (s *MemoryStore) KeyCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// EvictedTotal reports the cumulative number of keys evicted to stay under
// the key bound. The janitor turns deltas of this counter into metrics.
func (s *MemoryStore) EvictedTotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// evictOldest removes a tenth of the capacity from the least recently used
// end, so a store at its bound does not evict on every new key. Caller must
// hold the lock.
func (s *MemoryStore) evictOldest() {
	target := s.maxKeys / 10
	if target < 1 {
		target = 1
	}
	for i := 0; i < target; i++ {
		back := s.order.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*storeEntry)
		s.order.Remove(back)
		delete(s.entries, entry.key)
		s.evicted++
	}
}
