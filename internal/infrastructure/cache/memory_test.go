package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/auditwise/docqa/internal/core/domain"
)

func fusionResultFor(docIDs ...string) domain.FusionResult {
	out := domain.FusionResult{}
	for i, id := range docIDs {
		out.Candidates = append(out.Candidates, domain.Candidate{
			ChunkID:    fmt.Sprintf("%s:%d", id, i),
			DocumentID: id,
			Text:       "passage",
			RawScore:   0.5,
		})
	}
	return out
}

func newTestStore(t *testing.T, maxSize int, ttl time.Duration) (*Store, *time.Time) {
	t.Helper()
	store, err := NewStore(maxSize, ttl)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	return store, &clock
}

func TestNewStoreRejectsInvalidConfig(t *testing.T) {
	if _, err := NewStore(0, time.Minute); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for max size 0, got %v", err)
	}
	if _, err := NewStore(10, 0); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for zero ttl, got %v", err)
	}
}

func TestKeyDeterministicAcrossEquivalentRequests(t *testing.T) {
	a := Key("  What Are   SOX controls? ", 5, domain.SearchFilter{DocumentType: "access_review", ComplianceFramework: "SOX"})
	b := Key("what are sox controls?", 5, domain.SearchFilter{ComplianceFramework: "SOX", DocumentType: "access_review"})
	if a != b {
		t.Fatalf("expected identical keys for equivalent requests, got %s vs %s", a, b)
	}

	c := Key("what are sox controls?", 6, domain.SearchFilter{ComplianceFramework: "SOX", DocumentType: "access_review"})
	if a == c {
		t.Fatalf("expected different keys for different limits")
	}
}

func TestSetThenGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, 3, time.Minute)
	value := fusionResultFor("doc-1", "doc-2")

	store.Set("query", 5, domain.SearchFilter{}, value, 0)
	got, ok := store.Get("query", 5, domain.SearchFilter{})
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if len(got.Candidates) != 2 || got.Candidates[0].DocumentID != "doc-1" {
		t.Fatalf("unexpected cached value: %+v", got)
	}

	stats := store.Stats()
	if stats.Hits != 1 || stats.Misses != 0 {
		t.Fatalf("expected 1 hit / 0 misses, got %d / %d", stats.Hits, stats.Misses)
	}
}

func TestGetExpiredEntryCountsAsMissAndRemoves(t *testing.T) {
	store, clock := newTestStore(t, 3, time.Minute)
	store.Set("query", 5, domain.SearchFilter{}, fusionResultFor("doc-1"), 0)

	*clock = clock.Add(time.Minute)

	if _, ok := store.Get("query", 5, domain.SearchFilter{}); ok {
		t.Fatalf("expected miss after ttl elapsed")
	}
	stats := store.Stats()
	if stats.Misses != 1 || stats.Hits != 0 {
		t.Fatalf("expected 1 miss, got stats %+v", stats)
	}
	if stats.Size != 0 {
		t.Fatalf("expected expired entry removed, size=%d", stats.Size)
	}
}

func TestLRUBoundHoldsUnderOverflow(t *testing.T) {
	store, clock := newTestStore(t, 3, time.Hour)

	for i := 0; i < 7; i++ {
		store.Set(fmt.Sprintf("query-%d", i), 5, domain.SearchFilter{}, fusionResultFor("doc"), 0)
		*clock = clock.Add(time.Second)
	}

	stats := store.Stats()
	if stats.Size != 3 {
		t.Fatalf("expected store bounded at 3 entries, got %d", stats.Size)
	}
	if stats.Evictions != 4 {
		t.Fatalf("expected 4 evictions, got %d", stats.Evictions)
	}

	// The three most recent keys survive.
	for i := 4; i < 7; i++ {
		if _, ok := store.Get(fmt.Sprintf("query-%d", i), 5, domain.SearchFilter{}); !ok {
			t.Fatalf("expected query-%d retained", i)
		}
	}
}

func TestEvictionPrefersLeastRecentlyAccessed(t *testing.T) {
	store, clock := newTestStore(t, 3, time.Minute)

	store.Set("a", 5, domain.SearchFilter{}, fusionResultFor("doc-a"), 0)
	*clock = clock.Add(time.Second)
	store.Set("b", 5, domain.SearchFilter{}, fusionResultFor("doc-b"), 0)
	*clock = clock.Add(time.Second)
	store.Set("c", 5, domain.SearchFilter{}, fusionResultFor("doc-c"), 0)

	// Access A so B becomes the LRU victim.
	*clock = clock.Add(time.Second)
	if _, ok := store.Get("a", 5, domain.SearchFilter{}); !ok {
		t.Fatalf("expected hit for a")
	}

	*clock = clock.Add(time.Second)
	store.Set("d", 5, domain.SearchFilter{}, fusionResultFor("doc-d"), 0)

	if _, ok := store.Get("b", 5, domain.SearchFilter{}); ok {
		t.Fatalf("expected b evicted")
	}
	for _, q := range []string{"a", "c", "d"} {
		if _, ok := store.Get(q, 5, domain.SearchFilter{}); !ok {
			t.Fatalf("expected %s retained", q)
		}
	}
}

func TestInvalidateDocumentRemovesReferencingEntries(t *testing.T) {
	store, _ := newTestStore(t, 10, time.Minute)

	store.Set("about doc one", 5, domain.SearchFilter{}, fusionResultFor("doc-1"), 0)
	store.Set("mixed", 5, domain.SearchFilter{}, fusionResultFor("doc-1", "doc-2"), 0)
	store.Set("other", 5, domain.SearchFilter{}, fusionResultFor("doc-3"), 0)

	removed := store.InvalidateDocument("doc-1")
	if removed != 2 {
		t.Fatalf("expected 2 entries invalidated, got %d", removed)
	}
	if _, ok := store.Get("about doc one", 5, domain.SearchFilter{}); ok {
		t.Fatalf("expected entry for doc-1 gone")
	}
	if _, ok := store.Get("other", 5, domain.SearchFilter{}); !ok {
		t.Fatalf("expected unrelated entry retained")
	}
}

func TestInvalidatePatternMatchesQueryText(t *testing.T) {
	store, _ := newTestStore(t, 10, time.Minute)

	store.Set("SOX 404 material weakness", 5, domain.SearchFilter{}, fusionResultFor("doc-1"), 0)
	store.Set("vendor onboarding", 5, domain.SearchFilter{}, fusionResultFor("doc-2"), 0)

	if removed := store.InvalidatePattern("sox 404"); removed != 1 {
		t.Fatalf("expected 1 entry invalidated, got %d", removed)
	}
	if removed := store.InvalidatePattern(""); removed != 0 {
		t.Fatalf("empty pattern must remove nothing, got %d", removed)
	}
}

func TestClearResetsCounters(t *testing.T) {
	store, _ := newTestStore(t, 3, time.Minute)
	store.Set("q", 5, domain.SearchFilter{}, fusionResultFor("doc-1"), 0)
	store.Get("q", 5, domain.SearchFilter{})
	store.Get("absent", 5, domain.SearchFilter{})

	store.Clear()

	stats := store.Stats()
	if stats.Size != 0 || stats.Hits != 0 || stats.Misses != 0 || stats.Evictions != 0 {
		t.Fatalf("expected zeroed stats after clear, got %+v", stats)
	}
	if stats.HitRate != 0 {
		t.Fatalf("expected hit rate 0 after clear, got %f", stats.HitRate)
	}
}

func TestStatsHitRate(t *testing.T) {
	store, _ := newTestStore(t, 3, time.Minute)
	store.Set("q", 5, domain.SearchFilter{}, fusionResultFor("doc-1"), 0)

	store.Get("q", 5, domain.SearchFilter{})
	store.Get("q", 5, domain.SearchFilter{})
	store.Get("absent", 5, domain.SearchFilter{})

	stats := store.Stats()
	want := 2.0 / 3.0
	if diff := stats.HitRate - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected hit rate %.4f, got %.4f", want, stats.HitRate)
	}
}

func TestScenarioRecencyProtectsAccessedEntry(t *testing.T) {
	// max_size=3, ttl=60s; insert A,B,C; access A; insert D -> B evicted.
	store, clock := newTestStore(t, 3, 60*time.Second)

	store.Set("A", 10, domain.SearchFilter{}, fusionResultFor("a"), 0)
	*clock = clock.Add(time.Second)
	store.Set("B", 10, domain.SearchFilter{}, fusionResultFor("b"), 0)
	*clock = clock.Add(time.Second)
	store.Set("C", 10, domain.SearchFilter{}, fusionResultFor("c"), 0)
	*clock = clock.Add(time.Second)

	if _, ok := store.Get("A", 10, domain.SearchFilter{}); !ok {
		t.Fatalf("expected hit for A")
	}
	*clock = clock.Add(time.Second)
	store.Set("D", 10, domain.SearchFilter{}, fusionResultFor("d"), 0)

	if _, ok := store.Get("B", 10, domain.SearchFilter{}); ok {
		t.Fatalf("expected B evicted, not retained")
	}
	for _, q := range []string{"A", "C", "D"} {
		if _, ok := store.Get(q, 10, domain.SearchFilter{}); !ok {
			t.Fatalf("expected %s in final store", q)
		}
	}
	if stats := store.Stats(); stats.Size != 3 {
		t.Fatalf("expected final size 3, got %d", stats.Size)
	}
}

func TestConcurrentAccessKeepsBookkeepingConsistent(t *testing.T) {
	store, err := NewStore(16, time.Minute)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				q := fmt.Sprintf("query-%d", (w+i)%24)
				store.Set(q, 5, domain.SearchFilter{}, fusionResultFor("doc"), 0)
				store.Get(q, 5, domain.SearchFilter{})
				if i%10 == 0 {
					store.InvalidateDocument("doc")
				}
			}
		}(w)
	}
	for w := 0; w < 8; w++ {
		<-done
	}

	stats := store.Stats()
	if stats.Size > stats.MaxSize {
		t.Fatalf("size %d exceeds max %d", stats.Size, stats.MaxSize)
	}
}
