package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/auditwise/docqa/internal/core/domain"
)

const (
	defaultBaseURL = "https://api.tavily.com"
	maxResults     = 5
	maxSnippetLen  = 400
)

// Client queries the Tavily search API for external compliance
// guidance. Results augment answers; retrieval never depends on them.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SearchComplianceGuidance(ctx context.Context, query, documentType, framework string) (*domain.WebGuidance, error) {
	searchQuery := buildGuidanceQuery(query, documentType, framework)

	reqBody := map[string]any{
		"api_key":      c.apiKey,
		"query":        searchQuery,
		"max_results":  maxResults,
		"search_depth": "basic",
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "tavily search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, domain.WrapError(domain.ErrProvider, "tavily search",
			fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(raw))))
	}

	var searchResp struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	guidance := &domain.WebGuidance{}
	for _, r := range searchResp.Results {
		snippet := truncateSnippet(stripHTML(r.Content), maxSnippetLen)
		guidance.Results = append(guidance.Results, domain.WebSearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: snippet,
			Score:   r.Score,
		})
		if insight, ok := extractInsight(snippet, framework); ok {
			guidance.Insights = append(guidance.Insights, insight)
		}
	}
	return guidance, nil
}

func buildGuidanceQuery(query, documentType, framework string) string {
	parts := []string{query}
	if documentType != "" {
		parts = append(parts, strings.ReplaceAll(documentType, "_", " "))
	}
	if framework != "" {
		parts = append(parts, framework+" compliance guidance")
	} else {
		parts = append(parts, "audit compliance guidance")
	}
	return strings.Join(parts, " ")
}

// frameworkFocus maps the mention of a framework keyword to the audit
// concern an insight should be filed under.
var frameworkFocus = map[string]string{
	"sox":      "internal controls over financial reporting",
	"soc2":     "trust services criteria",
	"soc 2":    "trust services criteria",
	"iso27001": "information security management",
	"gdpr":     "data protection",
	"hipaa":    "protected health information",
}

func extractInsight(snippet, framework string) (domain.ComplianceInsight, bool) {
	lower := strings.ToLower(snippet)

	if framework != "" {
		key := strings.ToLower(framework)
		if strings.Contains(lower, key) {
			focus := frameworkFocus[key]
			if focus == "" {
				focus = "compliance guidance"
			}
			return domain.ComplianceInsight{
				Framework: strings.ToUpper(framework),
				Focus:     focus,
				Excerpt:   snippet,
			}, true
		}
		return domain.ComplianceInsight{}, false
	}

	for key, focus := range frameworkFocus {
		if strings.Contains(lower, key) {
			return domain.ComplianceInsight{
				Framework: strings.ToUpper(key),
				Focus:     focus,
				Excerpt:   snippet,
			}, true
		}
	}
	return domain.ComplianceInsight{}, false
}

// stripHTML flattens markup fragments some providers return in content
// fields into plain text.
func stripHTML(content string) string {
	if !strings.ContainsAny(content, "<>") {
		return strings.TrimSpace(content)
	}

	node, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(content)
	}

	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			builder.WriteString(n.Data)
			builder.WriteString(" ")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return strings.Join(strings.Fields(builder.String()), " ")
}

func truncateSnippet(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
