package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultSearchEndpoint = "https://html.duckduckgo.com/html/"
	maxSearchResults      = 5
	searchUserAgent       = "agentgraph/1.0"
)

var webSearchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Search query"
		}
	},
	"required": ["query"]
}`)

// WebSearch searches the web via the DuckDuckGo HTML endpoint.
//
// Failures degrade to an explanatory result string instead of an error:
// search being down should never fail the whole reasoning turn.
type WebSearch struct {
	client   *http.Client
	endpoint string
}

// WebSearchOption configures WebSearch.
type WebSearchOption func(*WebSearch)

// WithSearchEndpoint overrides the search endpoint (used in tests).
func WithSearchEndpoint(endpoint string) WebSearchOption {
	return func(w *WebSearch) { w.endpoint = endpoint }
}

// NewWebSearch creates the web_search tool.
// A nil client gets a default with a 10 second timeout.
func NewWebSearch(client *http.Client, opts ...WebSearchOption) *WebSearch {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	w := &WebSearch{client: client, endpoint: defaultSearchEndpoint}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name implements Tool.
func (*WebSearch) Name() string { return "web_search" }

// Description implements Tool.
func (*WebSearch) Description() string { return "Search the web for current information" }

// Schema implements Tool.
func (*WebSearch) Schema() json.RawMessage { return webSearchSchema }

// Execute implements Tool.
func (w *WebSearch) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "Search error: empty query", nil
	}

	results, err := w.search(ctx, query)
	if err != nil {
		return fmt.Sprintf("Search error: %v", err), nil
	}
	if len(results) == 0 {
		return "No search results found for: " + query, nil
	}
	return strings.Join(results, "\n\n"), nil
}

// search fetches and scrapes the result page.
func (w *WebSearch) search(ctx context.Context, query string) ([]string, error) {
	reqURL := w.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var results []string
	doc.Find(".result__body").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Find(".result__a").Text())
		snippet := strings.TrimSpace(s.Find(".result__snippet").Text())
		if title == "" && snippet == "" {
			return true
		}
		switch {
		case snippet == "":
			results = append(results, title)
		case title == "":
			results = append(results, snippet)
		default:
			results = append(results, title+": "+snippet)
		}
		return len(results) < maxSearchResults
	})

	return results, nil
}
