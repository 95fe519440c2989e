package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
	"github.com/auditwise/docqa/internal/core/retrieval"
)

// RetrievalObserver receives retrieval telemetry. Implemented by the
// metrics package; a nil observer disables recording.
type RetrievalObserver interface {
	CacheLookup(hit bool)
	StrategyCompleted(strategy string, duration time.Duration, err error)
	FusionCompleted(candidates int, degraded bool)
}

type RetrieveConfig struct {
	DefaultLimit    int
	CacheTTL        time.Duration
	StrategyTimeout time.Duration
	Weights         retrieval.Weights
}

// RetrieveUseCase is the cache-integrated retrieval orchestrator. On a
// cache miss it executes every registered strategy concurrently, fuses
// the surviving candidate lists, stores the fused result, and returns
// it. Strategy failures degrade the result instead of aborting it.
type RetrieveUseCase struct {
	cache      ports.ResultCache
	strategies []retrieval.Strategy
	cfg        RetrieveConfig
	logger     *slog.Logger
	observer   RetrievalObserver
}

func NewRetrieveUseCase(
	cache ports.ResultCache,
	strategies []retrieval.Strategy,
	cfg RetrieveConfig,
	logger *slog.Logger,
	observer RetrievalObserver,
) *RetrieveUseCase {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	if cfg.StrategyTimeout <= 0 {
		cfg.StrategyTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveUseCase{
		cache:      cache,
		strategies: strategies,
		cfg:        cfg,
		logger:     logger,
		observer:   observer,
	}
}

func (uc *RetrieveUseCase) Retrieve(
	ctx context.Context,
	query string,
	limit int,
	filter domain.SearchFilter,
	session domain.SessionContext,
) (domain.FusionResult, error) {
	if strings.TrimSpace(query) == "" {
		return domain.FusionResult{}, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("query is required"))
	}
	if limit < 0 {
		return domain.FusionResult{}, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("limit must not be negative, got %d", limit))
	}
	if limit == 0 {
		limit = uc.cfg.DefaultLimit
	}

	if cached, ok := uc.cacheGet(query, limit, filter); ok {
		uc.observeCacheLookup(true)
		return cached, nil
	}
	uc.observeCacheLookup(false)

	lists, failed := uc.executeStrategies(ctx, domain.RetrievalQuery{
		Text:    query,
		Limit:   limit,
		Filter:  filter,
		Session: session,
	})

	// Strategy results are discarded wholesale on cancellation so a
	// partial run never reaches the cache.
	if err := ctx.Err(); err != nil {
		return domain.FusionResult{}, err
	}

	if len(failed) == len(uc.strategies) && len(uc.strategies) > 0 {
		uc.logger.Warn("all retrieval strategies failed",
			"query_length", len(query),
			"failed_strategies", failed,
		)
		degraded := domain.FusionResult{Degraded: true, FailedStrategies: failed}
		uc.observeFusion(0, true)
		return degraded, nil
	}

	result := retrieval.Fuse(lists, uc.cfg.Weights, limit)
	result.FailedStrategies = failed
	uc.observeFusion(len(result.Candidates), false)

	uc.cacheSet(query, limit, filter, result)
	return result, nil
}

type strategyOutcome struct {
	kind       retrieval.Kind
	candidates []domain.Candidate
	err        error
	duration   time.Duration
}

// executeStrategies runs every strategy concurrently with an
// individual timeout. A strategy that errors or times out contributes
// an empty list; the failure is recorded, never raised.
func (uc *RetrieveUseCase) executeStrategies(
	ctx context.Context,
	query domain.RetrievalQuery,
) (map[retrieval.Kind][]domain.Candidate, []string) {
	outcomes := make(chan strategyOutcome, len(uc.strategies))

	for _, strategy := range uc.strategies {
		go func(s retrieval.Strategy) {
			strategyCtx, cancel := context.WithTimeout(ctx, uc.cfg.StrategyTimeout)
			defer cancel()

			start := time.Now()
			candidates, err := s.Execute(strategyCtx, query)
			outcomes <- strategyOutcome{
				kind:       s.Kind(),
				candidates: candidates,
				err:        err,
				duration:   time.Since(start),
			}
		}(strategy)
	}

	lists := make(map[retrieval.Kind][]domain.Candidate, len(uc.strategies))
	failed := make([]string, 0)

	for range uc.strategies {
		outcome := <-outcomes
		uc.observeStrategy(string(outcome.kind), outcome.duration, outcome.err)
		if outcome.err != nil {
			uc.logger.Warn("retrieval strategy failed",
				"strategy", string(outcome.kind),
				"error", outcome.err,
			)
			failed = append(failed, string(outcome.kind))
			continue
		}
		if len(outcome.candidates) > 0 {
			lists[outcome.kind] = outcome.candidates
		}
	}

	// Deterministic order for logs, cached values and responses.
	sort.Strings(failed)
	return lists, failed
}

// Invalidate removes every cached result referencing the document.
// Call it whenever a document is reprocessed, updated, or deleted.
func (uc *RetrieveUseCase) Invalidate(documentID string) int {
	if uc.cache == nil {
		return 0
	}
	removed := uc.cache.InvalidateDocument(documentID)
	if removed > 0 {
		uc.logger.Info("retrieval cache invalidated",
			"document_id", documentID,
			"entries_removed", removed,
		)
	}
	return removed
}

func (uc *RetrieveUseCase) CacheStats() ports.CacheStats {
	if uc.cache == nil {
		return ports.CacheStats{}
	}
	return uc.cache.Stats()
}

// cacheGet shields retrieval from cache faults: a panicking cache
// implementation is treated as a miss.
func (uc *RetrieveUseCase) cacheGet(query string, limit int, filter domain.SearchFilter) (result domain.FusionResult, ok bool) {
	if uc.cache == nil {
		return domain.FusionResult{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("cache get failure", "error", fmt.Sprintf("%v", r))
			result, ok = domain.FusionResult{}, false
		}
	}()
	return uc.cache.Get(query, limit, filter)
}

func (uc *RetrieveUseCase) cacheSet(query string, limit int, filter domain.SearchFilter, value domain.FusionResult) {
	if uc.cache == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("cache set failure", "error", fmt.Sprintf("%v", r))
		}
	}()
	uc.cache.Set(query, limit, filter, value, uc.cfg.CacheTTL)
}

func (uc *RetrieveUseCase) observeCacheLookup(hit bool) {
	if uc.observer != nil {
		uc.observer.CacheLookup(hit)
	}
}

func (uc *RetrieveUseCase) observeStrategy(name string, d time.Duration, err error) {
	if uc.observer != nil {
		uc.observer.StrategyCompleted(name, d, err)
	}
}

func (uc *RetrieveUseCase) observeFusion(n int, degraded bool) {
	if uc.observer != nil {
		uc.observer.FusionCompleted(n, degraded)
	}
}
