package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	// DefaultCapacity is a safety ceiling to prevent unbounded memory growth
	// in long-running server instances. LRU eviction keeps the most recently
	// used mappings within this limit.
	DefaultCapacity = 10000
	// cleanupTick is the interval between background expired-entry sweeps.
	cleanupTick = 30 * time.Second
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
	listElem  *list.Element
}

// MemoryStore is an in-process Store with per-key TTL and LRU capacity
// eviction. It is the zero-config default backend when no Redis address is
// configured; mappings do not survive a restart, which only costs continuity.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	lru      *list.List
	capacity int
	stopCh   chan struct{}
	done     chan struct{}
}

// NewMemoryStore creates an in-memory store with a capacity limit. The
// caller must call Close to stop the background cleanup goroutine.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &MemoryStore{
		entries:  make(map[string]*memoryEntry),
		lru:      list.New(),
		capacity: capacity,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Close stops the background cleanup goroutine and waits for it to finish.
func (s *MemoryStore) Close() error {
	close(s.stopCh)
	<-s.done
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	defer close(s.done)
	ticker := time.NewTicker(cleanupTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			s.cleanupExpiredLocked(now)
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	if now.After(e.expiresAt) {
		s.removeLocked(key, e)
		return "", ErrNotFound
	}
	s.lru.MoveToFront(e.listElem)
	return e.value, nil
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &memoryEntry{}
		s.entries[key] = e
		e.listElem = s.lru.PushFront(key)
	} else {
		s.lru.MoveToFront(e.listElem)
	}
	e.value = value
	e.expiresAt = now.Add(ttl)
	s.evictIfNeededLocked()
	return nil
}

// Len returns current entry count (for tests).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) removeLocked(key string, e *memoryEntry) {
	if e.listElem != nil {
		s.lru.Remove(e.listElem)
	}
	delete(s.entries, key)
}

func (s *MemoryStore) cleanupExpiredLocked(now time.Time) {
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			s.removeLocked(key, e)
		}
	}
}

func (s *MemoryStore) evictIfNeededLocked() {
	for len(s.entries) > s.capacity {
		back := s.lru.Back()
		if back == nil {
			return
		}
		key := back.Value.(string)
		s.lru.Remove(back)
		delete(s.entries, key)
	}
}
