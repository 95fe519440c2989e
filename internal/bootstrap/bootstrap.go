package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/auditwise/docqa/internal/config"
	"github.com/auditwise/docqa/internal/core/ports"
	"github.com/auditwise/docqa/internal/core/retrieval"
	"github.com/auditwise/docqa/internal/core/usecase"
	"github.com/auditwise/docqa/internal/infrastructure/cache"
	"github.com/auditwise/docqa/internal/infrastructure/chunking"
	"github.com/auditwise/docqa/internal/infrastructure/extractor"
	"github.com/auditwise/docqa/internal/infrastructure/extractor/pdf"
	"github.com/auditwise/docqa/internal/infrastructure/extractor/plaintext"
	"github.com/auditwise/docqa/internal/infrastructure/extractor/spreadsheet"
	"github.com/auditwise/docqa/internal/infrastructure/llm/ollama"
	"github.com/auditwise/docqa/internal/infrastructure/queue/nats"
	"github.com/auditwise/docqa/internal/infrastructure/repository/postgres"
	"github.com/auditwise/docqa/internal/infrastructure/resilience"
	"github.com/auditwise/docqa/internal/infrastructure/storage/localfs"
	"github.com/auditwise/docqa/internal/infrastructure/vector/qdrant"
	"github.com/auditwise/docqa/internal/infrastructure/websearch/tavily"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	IngestUC   ports.DocumentIngestor
	ProcessUC  ports.DocumentProcessor
	RemoveUC   ports.DocumentRemover
	RetrieveUC *usecase.RetrieveUseCase
	ChatUC     ports.ChatService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, observer usecase.RetrievalObserver) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.LoadWeightsOverlay(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure document schema: %w", err)
	}
	sessions := postgres.NewSessionRepository(db)
	if err := sessions.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure session schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	classifier := ollama.NewResilientClassifier(ollama.NewClassifier(ollamaClient), executor)
	embedder := ollama.NewResilientEmbedder(ollama.NewEmbedder(ollamaClient), executor)
	generator := ollama.NewResilientGenerator(ollama.NewGenerator(ollamaClient), executor)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	docExtractor := extractor.NewComposite(
		plaintext.NewExtractor(storage),
		pdf.NewExtractor(storage),
		spreadsheet.NewExtractor(storage),
	)

	resultCache, err := cache.NewStore(cfg.CacheMaxSize, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("init result cache: %w", err)
	}

	var webSearch ports.WebSearchProvider
	if cfg.WebSearchEnabled {
		webSearch = tavily.New(cfg.TavilyURL, cfg.TavilyAPIKey)
	}

	strategies := []retrieval.Strategy{
		retrieval.NewHybridStrategy(embedder, vectorDB),
		retrieval.NewQueryExpansionStrategy(embedder, vectorDB),
		retrieval.NewMultiHopStrategy(embedder, vectorDB),
		retrieval.NewMetadataStrategy(embedder, vectorDB),
		retrieval.NewConversationalStrategy(embedder, vectorDB),
		retrieval.NewClassificationEnhancedStrategy(embedder, vectorDB),
	}

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, docExtractor, classifier, chunker, embedder, vectorDB, queue, logger)
	removeUC := usecase.NewRemoveDocumentUseCase(repo, storage, vectorDB, queue, logger)
	retrieveUC := usecase.NewRetrieveUseCase(resultCache, strategies, usecase.RetrieveConfig{
		DefaultLimit:    cfg.RetrievalTopK,
		CacheTTL:        time.Duration(cfg.CacheTTLSeconds) * time.Second,
		StrategyTimeout: time.Duration(cfg.StrategyTimeoutMS) * time.Millisecond,
		Weights:         strategyWeights(cfg.StrategyWeights),
	}, logger, observer)
	chatUC := usecase.NewChatUseCase(
		retrieveUC,
		usecase.NewModeSelector(cfg.SingleDocumentModeDefault),
		classifier,
		generator,
		webSearch,
		sessions,
		logger,
	)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue: queue,
		Repo:  repo,

		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		RemoveUC:   removeUC,
		RetrieveUC: retrieveUC,
		ChatUC:     chatUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// strategyWeights maps config names onto strategy kinds, dropping
// names that do not correspond to a registered strategy.
func strategyWeights(raw map[string]float64) retrieval.Weights {
	if len(raw) == 0 {
		return nil
	}
	known := make(map[retrieval.Kind]struct{}, len(retrieval.Kinds()))
	for _, kind := range retrieval.Kinds() {
		known[kind] = struct{}{}
	}
	weights := make(retrieval.Weights, len(raw))
	for name, weight := range raw {
		kind := retrieval.Kind(name)
		if _, ok := known[kind]; !ok {
			continue
		}
		weights[kind] = weight
	}
	if len(weights) == 0 {
		return nil
	}
	return weights
}
