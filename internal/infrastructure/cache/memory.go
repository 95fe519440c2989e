package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

// Store is a bounded in-process cache for fused retrieval results with
// TTL expiry and LRU eviction. All operations hold the internal mutex
// for their full duration; callers never hold it across provider calls.
//
// Eviction policy: victims are selected before insert, by oldest
// last-access time with oldest creation time as tie-break. Evictions
// and expirations never touch the hit/miss counters; those move only
// on Get.
type Store struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	entries    map[string]*entry

	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time
}

type entry struct {
	// normalizedQuery and documentIDs are retained for pattern-based
	// invalidation; the value itself is opaque to the store.
	normalizedQuery string
	documentIDs     []string
	value           domain.FusionResult
	createdAt       time.Time
	ttl             time.Duration
	lastAccessed    time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

func NewStore(maxSize int, defaultTTL time.Duration) (*Store, error) {
	if maxSize <= 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "cache store", fmt.Errorf("max size must be positive, got %d", maxSize))
	}
	if defaultTTL <= 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "cache store", fmt.Errorf("default ttl must be positive, got %s", defaultTTL))
	}
	return &Store{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		entries:    make(map[string]*entry, maxSize),
		now:        time.Now,
	}, nil
}

// Key derives the deterministic cache key from the normalized query,
// the limit, and the canonical filter serialization. Two logically
// identical requests always map to the same key.
func Key(query string, limit int, filter domain.SearchFilter) string {
	h := sha256.New()
	h.Write([]byte(normalizeQuery(query)))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", limit)
	h.Write([]byte{0})
	h.Write([]byte(filter.Canonical()))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func (s *Store) Get(query string, limit int, filter domain.SearchFilter) (domain.FusionResult, bool) {
	key := Key(query, limit, filter)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return domain.FusionResult{}, false
	}
	if e.expired(now) {
		delete(s.entries, key)
		s.misses++
		return domain.FusionResult{}, false
	}

	e.lastAccessed = now
	s.hits++
	return e.value, true
}

// Set inserts or overwrites the entry for the derived key. A
// non-positive ttl falls back to the store default. When the store is
// full, the least-recently-accessed live entry is evicted first.
func (s *Store) Set(query string, limit int, filter domain.SearchFilter, value domain.FusionResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	key := Key(query, limit, filter)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		for len(s.entries) >= s.maxSize {
			s.evictLocked(now)
		}
	}

	s.entries[key] = &entry{
		normalizedQuery: normalizeQuery(query),
		documentIDs:     value.DocumentIDs(),
		value:           value,
		createdAt:       now,
		ttl:             ttl,
		lastAccessed:    now,
	}
}

// evictLocked removes one entry: any expired entry wins first, then the
// entry with the oldest lastAccessed, ties broken by oldest createdAt.
func (s *Store) evictLocked(now time.Time) {
	var victimKey string
	var victim *entry
	for key, e := range s.entries {
		if e.expired(now) {
			victimKey, victim = key, e
			break
		}
		if victim == nil ||
			e.lastAccessed.Before(victim.lastAccessed) ||
			(e.lastAccessed.Equal(victim.lastAccessed) && e.createdAt.Before(victim.createdAt)) {
			victimKey, victim = key, e
		}
	}
	if victim == nil {
		return
	}
	delete(s.entries, victimKey)
	s.evictions++
}

// InvalidatePattern removes every entry whose normalized query or
// referenced document ids contain the given substring. Returns the
// number of removed entries.
func (s *Store) InvalidatePattern(pattern string) int {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.matches(pattern) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// InvalidateDocument removes every entry whose cached value references
// the document. Called whenever a document is reprocessed or deleted.
func (s *Store) InvalidateDocument(documentID string) int {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		for _, id := range e.documentIDs {
			if id == documentID {
				delete(s.entries, key)
				removed++
				break
			}
		}
	}
	return removed
}

func (e *entry) matches(pattern string) bool {
	if strings.Contains(e.normalizedQuery, pattern) {
		return true
	}
	for _, id := range e.documentIDs {
		if strings.Contains(strings.ToLower(id), pattern) {
			return true
		}
	}
	return false
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry, s.maxSize)
	s.hits = 0
	s.misses = 0
	s.evictions = 0
}

func (s *Store) Stats() ports.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.hits + s.misses
	if total == 0 {
		total = 1
	}
	return ports.CacheStats{
		Size:      len(s.entries),
		MaxSize:   s.maxSize,
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		HitRate:   float64(s.hits) / float64(total),
	}
}
