package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultWikipediaEndpoint = "https://en.wikipedia.org/api/rest_v1/page/summary/"

var wikipediaSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Topic to look up on Wikipedia"
		}
	},
	"required": ["query"]
}`)

// WikipediaSearch looks up article summaries via the Wikipedia REST API.
//
// Like WebSearch, failures degrade to an explanatory result string.
type WikipediaSearch struct {
	client   *http.Client
	endpoint string
}

// WikipediaOption configures WikipediaSearch.
type WikipediaOption func(*WikipediaSearch)

// WithWikipediaEndpoint overrides the API endpoint (used in tests).
func WithWikipediaEndpoint(endpoint string) WikipediaOption {
	return func(w *WikipediaSearch) { w.endpoint = endpoint }
}

// NewWikipediaSearch creates the wikipedia_search tool.
// A nil client gets a default with a 10 second timeout.
func NewWikipediaSearch(client *http.Client, opts ...WikipediaOption) *WikipediaSearch {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	w := &WikipediaSearch{client: client, endpoint: defaultWikipediaEndpoint}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name implements Tool.
func (*WikipediaSearch) Name() string { return "wikipedia_search" }

// Description implements Tool.
func (*WikipediaSearch) Description() string { return "Search Wikipedia for information" }

// Schema implements Tool.
func (*WikipediaSearch) Schema() json.RawMessage { return wikipediaSchema }

// wikipediaSummary is the subset of the REST summary response we use.
type wikipediaSummary struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// Execute implements Tool.
func (w *WikipediaSearch) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return "Wikipedia error: empty query", nil
	}

	// The summary endpoint addresses pages by underscored title.
	title := url.PathEscape(strings.ReplaceAll(query, " ", "_"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+title, nil)
	if err != nil {
		return fmt.Sprintf("Wikipedia error: %v", err), nil
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Wikipedia error: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "No Wikipedia page found for: " + query, nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Wikipedia error: unexpected status %d", resp.StatusCode), nil
	}

	var summary wikipediaSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return fmt.Sprintf("Wikipedia error: %v", err), nil
	}
	if summary.Extract == "" {
		return "No Wikipedia page found for: " + query, nil
	}

	if summary.Title != "" {
		return summary.Title + ": " + summary.Extract, nil
	}
	return summary.Extract, nil
}
