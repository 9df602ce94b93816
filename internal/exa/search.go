package exa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SearchParams mirrors the POST /search body. Category defaults to "any" and
// NumResults to 5 when unset.
type SearchParams struct {
	Query      string
	Category   string
	NumResults int
}

type SearchResult struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Highlights []string `json:"highlights,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// FormattedSource returns the result as a markdown link.
func (r SearchResult) FormattedSource() string {
	return fmt.Sprintf("[%s](%s)", r.Title, r.URL)
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search runs a one-shot web search with text, highlight, and summary
// contents enabled.
func (c *Client) Search(ctx context.Context, params SearchParams) (SearchResponse, error) {
	category := params.Category
	if category == "" {
		category = "any"
	}
	numResults := params.NumResults
	if numResults <= 0 {
		numResults = 5
	}
	body := map[string]any{
		"query":      params.Query,
		"type":       "auto",
		"category":   category,
		"numResults": numResults,
		"contents": map[string]any{
			"text":       map[string]any{"maxCharacters": 1000},
			"highlights": map[string]any{"numSentences": 1, "highlightsPerUrl": 1},
			"summary":    map[string]any{"enabled": true},
		},
	}
	resp, err := c.do(ctx, http.MethodPost, "/search", body)
	if err != nil {
		return SearchResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SearchResponse{}, fmt.Errorf("search failed: status %d: %s", resp.StatusCode, readErrorBody(resp))
	}
	var parsed SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return SearchResponse{}, fmt.Errorf("decode search response: %w", err)
	}
	return parsed, nil
}
