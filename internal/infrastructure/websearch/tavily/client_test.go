package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/auditwise/docqa/internal/core/domain"
)

func TestSearchComplianceGuidance(t *testing.T) {
	var requestBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"results":[
			{"title":"SOX 404 basics","url":"https://example.com/sox","content":"<p>SOX section 404 requires <b>management assessment</b> of internal controls.</p>","score":0.93},
			{"title":"Unrelated","url":"https://example.com/misc","content":"General audit checklist.","score":0.41}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "key-123")
	guidance, err := client.SearchComplianceGuidance(context.Background(), "material weakness remediation", "sox_report", "SOX")
	if err != nil {
		t.Fatalf("SearchComplianceGuidance() error = %v", err)
	}

	if requestBody["api_key"] != "key-123" {
		t.Fatalf("expected api key in request, got %v", requestBody["api_key"])
	}
	query, _ := requestBody["query"].(string)
	if !strings.Contains(query, "material weakness remediation") || !strings.Contains(query, "SOX compliance guidance") {
		t.Fatalf("unexpected search query: %q", query)
	}

	if len(guidance.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(guidance.Results))
	}
	first := guidance.Results[0]
	if strings.ContainsAny(first.Snippet, "<>") {
		t.Fatalf("expected HTML stripped from snippet, got %q", first.Snippet)
	}
	if !strings.Contains(first.Snippet, "management assessment") {
		t.Fatalf("expected text content preserved, got %q", first.Snippet)
	}

	if len(guidance.Insights) != 1 {
		t.Fatalf("expected 1 insight for the SOX mention, got %d", len(guidance.Insights))
	}
	insight := guidance.Insights[0]
	if insight.Framework != "SOX" || insight.Focus != "internal controls over financial reporting" {
		t.Fatalf("unexpected insight: %+v", insight)
	}
}

func TestSearchInsightsWithoutFrameworkHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"title":"GDPR overview","url":"https://example.com/gdpr","content":"GDPR mandates data protection by design.","score":0.8}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "key-123")
	guidance, err := client.SearchComplianceGuidance(context.Background(), "data retention rules", "", "")
	if err != nil {
		t.Fatalf("SearchComplianceGuidance() error = %v", err)
	}
	if len(guidance.Insights) != 1 || guidance.Insights[0].Framework != "GDPR" {
		t.Fatalf("expected GDPR insight detected, got %+v", guidance.Insights)
	}
}

func TestSearchErrorIsProviderKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(server.URL, "bad-key")
	_, err := client.SearchComplianceGuidance(context.Background(), "anything", "", "")
	if !domain.IsKind(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestStripHTMLPassthroughPlainText(t *testing.T) {
	if got := stripHTML("plain sentence"); got != "plain sentence" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestTruncateSnippetCutsOnWordBoundary(t *testing.T) {
	got := truncateSnippet("alpha beta gamma", 12)
	if got != "alpha beta" {
		t.Fatalf("expected word-boundary cut, got %q", got)
	}
}
