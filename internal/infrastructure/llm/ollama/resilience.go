package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// ResilientClassifier retries and circuit-breaks classifier calls.
type ResilientClassifier struct {
	inner    *Classifier
	executor *resilience.Executor
}

func NewResilientClassifier(inner *Classifier, executor *resilience.Executor) *ResilientClassifier {
	return &ResilientClassifier{inner: inner, executor: executor}
}

func (r *ResilientClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	var out domain.Classification
	err := r.executor.Execute(ctx, "ollama_classify", func(ctx context.Context) error {
		var callErr error
		out, callErr = r.inner.Classify(ctx, text)
		return callErr
	}, classifyOllamaError)
	return out, wrapTemporaryIfNeeded("classify", err)
}

// ResilientEmbedder retries and circuit-breaks embedding calls.
type ResilientEmbedder struct {
	inner    *Embedder
	executor *resilience.Executor
}

func NewResilientEmbedder(inner *Embedder, executor *resilience.Executor) *ResilientEmbedder {
	return &ResilientEmbedder{inner: inner, executor: executor}
}

func (r *ResilientEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.executor.Execute(ctx, "ollama_embed", func(ctx context.Context) error {
		var callErr error
		out, callErr = r.inner.Embed(ctx, texts)
		return callErr
	}, classifyOllamaError)
	return out, wrapTemporaryIfNeeded("embed", err)
}

func (r *ResilientEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.executor.Execute(ctx, "ollama_embed_query", func(ctx context.Context) error {
		var callErr error
		out, callErr = r.inner.EmbedQuery(ctx, text)
		return callErr
	}, classifyOllamaError)
	return out, wrapTemporaryIfNeeded("embed query", err)
}

// ResilientGenerator retries and circuit-breaks answer generation.
type ResilientGenerator struct {
	inner    *Generator
	executor *resilience.Executor
}

func NewResilientGenerator(inner *Generator, executor *resilience.Executor) *ResilientGenerator {
	return &ResilientGenerator{inner: inner, executor: executor}
}

func (r *ResilientGenerator) GenerateAnswer(ctx context.Context, question string, candidates []domain.Candidate) (string, error) {
	var out string
	err := r.executor.Execute(ctx, "ollama_generate", func(ctx context.Context) error {
		var callErr error
		out, callErr = r.inner.GenerateAnswer(ctx, question, candidates)
		return callErr
	}, classifyOllamaError)
	return out, wrapTemporaryIfNeeded("generate answer", err)
}

func (r *ResilientGenerator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	var out string
	err := r.executor.Execute(ctx, "ollama_generate_prompt", func(ctx context.Context) error {
		var callErr error
		out, callErr = r.inner.GenerateFromPrompt(ctx, prompt)
		return callErr
	}, classifyOllamaError)
	return out, wrapTemporaryIfNeeded("generate from prompt", err)
}

func classifyOllamaError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}

	class := classifyOllamaError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
