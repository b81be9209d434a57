package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/stencilhq/stencil/internal/compile"
)

// MemoryStore keeps artifacts in memory with LRU eviction and TTL.
// Activated programs are pinned separately from the evictable byte
// entries: activation is per-process permanent even when the backing
// bytes age out.
type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]*memoryEntry
	activations map[string]*compile.Program
	maxSize     int64
	currentSize int64
	ttl         time.Duration

	// LRU doubly-linked list with dummy head and tail.
	head *memoryEntry
	tail *memoryEntry

	// Statistics tracking (atomic for thread safety).
	hits      int64
	misses    int64
	evictions int64
}

type memoryEntry struct {
	key       string
	artifact  []byte
	createdAt time.Time
	size      int64

	prev *memoryEntry
	next *memoryEntry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a memory store bounded to maxSize bytes with
// the given entry TTL.
func NewMemoryStore(maxSize int64, ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:     make(map[string]*memoryEntry),
		activations: make(map[string]*compile.Program),
		maxSize:     maxSize,
		ttl:         ttl,
	}
	s.head = &memoryEntry{}
	s.tail = &memoryEntry{}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Key implements Store.
func (s *MemoryStore) Key(name, identity string) string {
	return identity
}

// Timestamp implements Store.
func (s *MemoryStore) Timestamp(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		atomic.AddInt64(&s.misses, 1)
		return 0
	}
	if time.Since(entry.createdAt) > s.ttl {
		s.evict(entry)
		atomic.AddInt64(&s.misses, 1)
		return 0
	}
	s.moveToFront(entry)
	atomic.AddInt64(&s.hits, 1)
	return entry.createdAt.Unix()
}

// Activate implements Store.
func (s *MemoryStore) Activate(key string) (*compile.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if program, ok := s.activations[key]; ok {
		return program, nil
	}

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	program, err := compile.Decode(entry.artifact)
	if err != nil {
		return nil, err
	}
	s.activations[key] = program
	s.moveToFront(entry)
	return program, nil
}

// Write implements Store.
func (s *MemoryStore) Write(key string, artifact []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(len(artifact))
	if existing, ok := s.entries[key]; ok {
		s.currentSize += size - existing.size
		existing.artifact = artifact
		existing.size = size
		existing.createdAt = time.Now()
		s.moveToFront(existing)
		return nil
	}

	s.evictIfNeeded(size)

	entry := &memoryEntry{
		key:       key,
		artifact:  artifact,
		createdAt: time.Now(),
		size:      size,
	}
	s.entries[key] = entry
	s.currentSize += size
	s.addToFront(entry)
	return nil
}

// Stats returns hit, miss and eviction counters.
func (s *MemoryStore) Stats() (hits, misses, evictions int64) {
	return atomic.LoadInt64(&s.hits), atomic.LoadInt64(&s.misses), atomic.LoadInt64(&s.evictions)
}

// evictIfNeeded removes least recently used entries until newSize fits.
func (s *MemoryStore) evictIfNeeded(newSize int64) {
	for s.currentSize+newSize > s.maxSize && s.tail.prev != s.head {
		lru := s.tail.prev
		s.evict(lru)
		atomic.AddInt64(&s.evictions, 1)
	}
}

func (s *MemoryStore) evict(entry *memoryEntry) {
	s.removeFromList(entry)
	delete(s.entries, entry.key)
	s.currentSize -= entry.size
}

func (s *MemoryStore) addToFront(entry *memoryEntry) {
	entry.prev = s.head
	entry.next = s.head.next
	s.head.next.prev = entry
	s.head.next = entry
}

func (s *MemoryStore) removeFromList(entry *memoryEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (s *MemoryStore) moveToFront(entry *memoryEntry) {
	s.removeFromList(entry)
	s.addToFront(entry)
}
