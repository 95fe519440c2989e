package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auditwise/docqa/internal/core/domain"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// Client talks to Qdrant over its HTTP API. Every chunk is stored with
// both a dense embedding and a hashed sparse term vector so the same
// collection serves semantic and lexical search.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i := range chunks {
		points = append(points, point{
			ID: uuid.NewString(),
			Vector: map[string]any{
				denseVectorName:  vectors[i],
				sparseVectorName: encodeSparseDocument(chunks[i], doc.Filename, doc.DocumentType, doc.ComplianceFramework),
			},
			Payload: map[string]any{
				"doc_id":               doc.ID,
				"filename":             doc.Filename,
				"document_type":        doc.DocumentType,
				"compliance_framework": doc.ComplianceFramework,
				"risk_level":           doc.RiskLevel,
				"company":              doc.Company,
				"chunk_index":          i,
				"text":                 chunks[i],
			},
		})
	}

	reqBody := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	resp, err := c.doJSON(ctx, http.MethodPut, url, reqBody)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant upsert status: %s", resp.Status)
	}
	return nil
}

// Search runs dense (semantic) search over the named dense vector.
func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   denseVectorName,
			"vector": queryVector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	return c.search(ctx, reqBody, filter)
}

// SearchLexical runs sparse keyword search over the hashed BM25-style
// term vector.
func (c *Client) SearchLexical(
	ctx context.Context,
	queryText string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	sparse := encodeSparseQuery(queryText)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   sparseVectorName,
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
	}
	return c.search(ctx, reqBody, filter)
}

func (c *Client) search(ctx context.Context, reqBody map[string]any, filter domain.SearchFilter) ([]domain.Candidate, error) {
	if conditions := filterConditions(filter); len(conditions) > 0 {
		reqBody["filter"] = map[string]any{"must": conditions}
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	resp, err := c.doJSON(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		docID := getStringPayload(r.Payload, "doc_id")
		chunkIndex := getIntPayload(r.Payload, "chunk_index")
		out = append(out, domain.Candidate{
			ChunkID:    docID + ":" + strconv.Itoa(chunkIndex),
			DocumentID: docID,
			Text:       getStringPayload(r.Payload, "text"),
			Metadata: domain.ChunkMetadata{
				Filename:            getStringPayload(r.Payload, "filename"),
				DocumentType:        getStringPayload(r.Payload, "document_type"),
				ComplianceFramework: getStringPayload(r.Payload, "compliance_framework"),
				RiskLevel:           getStringPayload(r.Payload, "risk_level"),
				Company:             getStringPayload(r.Payload, "company"),
				ChunkIndex:          chunkIndex,
			},
			RawScore: r.Score,
		})
	}
	return out, nil
}

// DeleteDocument removes every chunk of a document by payload filter.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "doc_id", "match": map[string]any{"value": documentID}},
			},
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	resp, err := c.doJSON(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return fmt.Errorf("qdrant delete request: %w", err)
	}
	defer resp.Body.Close()

	// A collection that never saw an upsert has nothing to delete.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant delete status: %s", resp.Status)
	}
	return nil
}

func filterConditions(filter domain.SearchFilter) []map[string]any {
	var conditions []map[string]any
	add := func(key, value string) {
		if value == "" {
			return
		}
		conditions = append(conditions, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	add("document_type", filter.DocumentType)
	add("compliance_framework", filter.ComplianceFramework)
	add("risk_level", filter.RiskLevel)
	add("company", filter.Company)
	return conditions
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	resp, err := c.doJSON(ctx, http.MethodPut, url, reqBody)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) doJSON(ctx context.Context, method, url string, reqBody any) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}
