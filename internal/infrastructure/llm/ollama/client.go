package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/auditwise/docqa/internal/core/domain"
)

// Client speaks the Ollama HTTP API. One client is shared by the
// classifier, embedder, and generator so they agree on models and
// timeouts.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		// Generation on CPU-only hosts can take a while for long
		// compliance documents.
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *Client) generate(ctx context.Context, prompt, format string) (string, error) {
	req := generateRequest{
		Model:  c.genModel,
		Prompt: prompt,
		Stream: false,
		Format: format,
	}
	var resp generateResponse
	if err := c.postJSON(ctx, "/api/generate", req, &resp, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}

// Classifier asks the generation model to label a document with a
// type, compliance framework, and confidence.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	raw, err := c.client.generate(ctx, buildClassificationPrompt(text), "json")
	if err != nil {
		return domain.Classification{}, err
	}

	var result domain.Classification
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: %w", err)
	}
	if result.DocumentType == "" {
		result.DocumentType = domain.DocumentTypeUnclassified
	}
	return result, nil
}

// Embedder produces dense vectors from the embedding model.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	req := embedRequest{Model: e.client.embedModel, Input: texts}
	if err := e.client.postJSON(ctx, "/api/embed", req, &resp, "embed"); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Generator renders grounded answers and free-form prompts with the
// generation model.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, candidates []domain.Candidate) (string, error) {
	return g.client.generate(ctx, buildAnswerPrompt(question, candidates), "")
}

func (g *Generator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.client.generate(ctx, prompt, "")
}

// extractJSONObject trims conversational framing some models wrap
// around JSON output even in json format mode.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
