package exa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const (
	ResearchCompleted = "completed"
	ResearchFailed    = "failed"
)

type ResearchTask struct {
	ResearchID string          `json:"researchId"`
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Citations  []Citation      `json:"citations,omitempty"`
}

type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CreateResearch starts a research task. outputSchema is optional and passed
// through verbatim when present.
func (c *Client) CreateResearch(ctx context.Context, instructions string, outputSchema map[string]any) (ResearchTask, error) {
	body := map[string]any{
		"model":        "exa-research",
		"instructions": instructions,
	}
	if outputSchema != nil {
		body["output_schema"] = outputSchema
	}
	resp, err := c.do(ctx, http.MethodPost, "/research/v1", body)
	if err != nil {
		return ResearchTask{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ResearchTask{}, &CreateError{StatusCode: resp.StatusCode, Body: readErrorBody(resp)}
	}
	var task ResearchTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return ResearchTask{}, fmt.Errorf("decode research task: %w", err)
	}
	return task, nil
}

// GetResearch fetches the current state of a research task.
func (c *Client) GetResearch(ctx context.Context, researchID string) (ResearchTask, error) {
	resp, err := c.do(ctx, http.MethodGet, "/research/v1/"+url.PathEscape(researchID), nil)
	if err != nil {
		return ResearchTask{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ResearchTask{}, &StatusError{StatusCode: resp.StatusCode, Body: readErrorBody(resp)}
	}
	var task ResearchTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return ResearchTask{}, fmt.Errorf("decode research task: %w", err)
	}
	return task, nil
}
