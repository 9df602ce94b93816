package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.exa.ai"

// maxErrorBodyBytes bounds how much of a failed response is kept for the
// error message.
const maxErrorBodyBytes = 2048

type Config struct {
	APIKey  string
	BaseURL string
	// RequestsPerSecond throttles all outgoing calls; zero disables the
	// limiter.
	RequestsPerSecond float64
	Burst             int
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

func readErrorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return strings.TrimSpace(string(body))
}

// CreateWebset issues the creation call. There is no retry here: a failed
// creation aborts the invocation.
func (c *Client) CreateWebset(ctx context.Context, params CreateWebsetParams) (Webset, error) {
	if params.Enrichments == nil {
		params.Enrichments = []any{}
	}
	resp, err := c.do(ctx, http.MethodPost, "/websets/v0/websets", params)
	if err != nil {
		return Webset{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Webset{}, &CreateError{StatusCode: resp.StatusCode, Body: readErrorBody(resp)}
	}
	var webset Webset
	if err := json.NewDecoder(resp.Body).Decode(&webset); err != nil {
		return Webset{}, fmt.Errorf("decode webset: %w", err)
	}
	return webset, nil
}

// GetWebset fetches the current job status.
func (c *Client) GetWebset(ctx context.Context, websetID string) (Webset, error) {
	resp, err := c.do(ctx, http.MethodGet, "/websets/v0/websets/"+url.PathEscape(websetID), nil)
	if err != nil {
		return Webset{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Webset{}, &StatusError{StatusCode: resp.StatusCode, Body: readErrorBody(resp)}
	}
	var webset Webset
	if err := json.NewDecoder(resp.Body).Decode(&webset); err != nil {
		return Webset{}, fmt.Errorf("decode webset: %w", err)
	}
	return webset, nil
}

// ListItems fetches the current full snapshot of items for a webset. The
// remote service always returns everything known so far, not a delta.
func (c *Client) ListItems(ctx context.Context, websetID string) ([]Item, error) {
	resp, err := c.do(ctx, http.MethodGet, "/websets/v0/websets/"+url.PathEscape(websetID)+"/items", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ItemsError{StatusCode: resp.StatusCode, Body: readErrorBody(resp)}
	}
	var page itemsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return page.Data, nil
}

// ListAllItems pages through the bulk listing with a cursor token until the
// service signals no more pages, concatenating all pages in order. An empty
// cursor means "first page".
func (c *Client) ListAllItems(ctx context.Context, websetID string) ([]Item, error) {
	var all []Item
	cursor := ""
	for {
		path := "/websets/v0/websets/" + url.PathEscape(websetID) + "/items"
		if cursor != "" {
			path += "?cursor=" + url.QueryEscape(cursor)
		}
		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			itemsErr := &ItemsError{StatusCode: resp.StatusCode, Body: readErrorBody(resp)}
			resp.Body.Close()
			return nil, itemsErr
		}
		var page itemsPage
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode items page: %w", err)
		}
		all = append(all, page.Data...)
		if !page.HasMore || page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// GetItem fetches a single item by ID for the detail view.
func (c *Client) GetItem(ctx context.Context, websetID, itemID string) (Item, error) {
	path := "/websets/v0/websets/" + url.PathEscape(websetID) + "/items/" + url.PathEscape(itemID)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Item{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Item{}, &ItemsError{StatusCode: resp.StatusCode, Body: readErrorBody(resp)}
	}
	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return Item{}, fmt.Errorf("decode item: %w", err)
	}
	return item, nil
}
