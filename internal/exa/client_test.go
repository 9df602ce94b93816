package exa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(ts *httptest.Server) *Client {
	c := NewClient(Config{APIKey: "test-key", BaseURL: ts.URL})
	c.client = ts.Client()
	return c
}

func TestCreateWebset(t *testing.T) {
	var captured *http.Request
	var capturedBody CreateWebsetParams
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		_ = json.NewDecoder(r.Body).Decode(&capturedBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"ws-1","status":"running"}`)
	}))
	defer ts.Close()

	client := newTestClient(ts)
	webset, err := client.CreateWebset(context.Background(), CreateWebsetParams{
		ExternalID: "doc-1",
		Search: WebsetSearch{
			Query:    "seed-stage saas startups",
			Entity:   Entity{Type: "company"},
			Criteria: []CriterionRequest{{Description: "based in Germany"}},
			Count:    50,
		},
	})
	if err != nil {
		t.Fatalf("CreateWebset: %v", err)
	}
	if webset.ID != "ws-1" {
		t.Errorf("webset ID = %q, want ws-1", webset.ID)
	}
	if captured.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", captured.Method)
	}
	if captured.URL.Path != "/websets/v0/websets" {
		t.Errorf("path = %s", captured.URL.Path)
	}
	if got := captured.Header.Get("x-api-key"); got != "test-key" {
		t.Errorf("x-api-key = %q", got)
	}
	if capturedBody.Search.Entity.Type != "company" {
		t.Errorf("entity type = %q", capturedBody.Search.Entity.Type)
	}
	if capturedBody.Enrichments == nil {
		t.Error("expected enrichments to default to an empty array")
	}
}

func TestCreateWebset_NonSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"invalid count"}`)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).CreateWebset(context.Background(), CreateWebsetParams{})
	var createErr *CreateError
	if !errors.As(err, &createErr) {
		t.Fatalf("expected CreateError, got %v", err)
	}
	if createErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", createErr.StatusCode)
	}
	if createErr.Body != `{"error":"invalid count"}` {
		t.Errorf("body = %q", createErr.Body)
	}
}

func TestGetWebset_NonSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).GetWebset(context.Background(), "ws-1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
}

func TestListItems_Snapshot(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/websets/v0/websets/ws-1/items" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"id":"item-1"},{"id":"item-2"}]}`)
	}))
	defer ts.Close()

	items, err := newTestClient(ts).ListItems(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 || items[0].ID != "item-1" || items[1].ID != "item-2" {
		t.Errorf("items = %+v", items)
	}
}

func TestListItems_BooleanVerdictDecodes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"item-1","properties":{"url":"acme.com","company":{"name":"Acme"}},"evaluations":[{"criterion":"B2B","satisfied":true},{"criterion":{"description":"EU based"},"result":false}]}]}`)
	}))
	defer ts.Close()

	items, err := newTestClient(ts).ListItems(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 || len(items[0].Evaluations) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if got := items[0].Evaluations[0].RawVerdict(); got != "true" {
		t.Errorf("RawVerdict() = %q, want true", got)
	}
	if got := items[0].Evaluations[1].RawVerdict(); got != "false" {
		t.Errorf("RawVerdict() = %q, want false", got)
	}
}

func TestListItems_NonSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).ListItems(context.Background(), "ws-1")
	var itemsErr *ItemsError
	if !errors.As(err, &itemsErr) {
		t.Fatalf("expected ItemsError, got %v", err)
	}
}

func TestListAllItems_Paginates(t *testing.T) {
	var cursors []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		switch cursor {
		case "":
			fmt.Fprint(w, `{"data":[{"id":"a"}],"hasMore":true,"nextCursor":"c1"}`)
		case "c1":
			fmt.Fprint(w, `{"data":[{"id":"b"}],"hasMore":true,"nextCursor":"c2"}`)
		case "c2":
			fmt.Fprint(w, `{"data":[{"id":"c"}],"hasMore":false}`)
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
	}))
	defer ts.Close()

	items, err := newTestClient(ts).ListAllItems(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("ListAllItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	for i, want := range []string{"a", "b", "c"} {
		if items[i].ID != want {
			t.Errorf("items[%d] = %q, want %q", i, items[i].ID, want)
		}
	}
	seen := map[string]int{}
	for _, c := range cursors {
		seen[c]++
	}
	for c, n := range seen {
		if n > 1 {
			t.Errorf("cursor %q requested %d times", c, n)
		}
	}
}

func TestGetItem(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/websets/v0/websets/ws-1/items/item-9" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"item-9","properties":{"url":"acme.com","company":{"name":"Acme"}}}`)
	}))
	defer ts.Close()

	item, err := newTestClient(ts).GetItem(context.Background(), "ws-1", "item-9")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Properties.Company == nil || item.Properties.Company.Name != "Acme" {
		t.Errorf("item = %+v", item)
	}
}

func TestEvaluationCriterionText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare string", `{"criterion":"based in Germany"}`, "based in Germany"},
		{"object with description", `{"criterion":{"description":"3+ yrs Python"}}`, "3+ yrs Python"},
		{"missing", `{}`, ""},
		{"object without description", `{"criterion":{"id":"c1"}}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev Evaluation
			if err := json.Unmarshal([]byte(tt.raw), &ev); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := ev.CriterionText(); got != tt.want {
				t.Errorf("CriterionText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvaluationRawVerdict(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"satisfied wins", `{"satisfied":"yes","result":"Miss"}`, "yes"},
		{"result fallback", `{"result":"Match"}`, "Match"},
		{"boolean satisfied", `{"satisfied":true}`, "true"},
		{"boolean result", `{"result":false}`, "false"},
		{"null satisfied falls back", `{"satisfied":null,"result":"yes"}`, "yes"},
		{"empty satisfied stays empty", `{"satisfied":"","result":"yes"}`, ""},
		{"nothing", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev Evaluation
			if err := json.Unmarshal([]byte(tt.raw), &ev); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := ev.RawVerdict(); got != tt.want {
				t.Errorf("RawVerdict() = %q, want %q", got, tt.want)
			}
		})
	}
}
