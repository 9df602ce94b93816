package exa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearch_Defaults(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		fmt.Fprint(w, `{"results":[{"url":"https://example.com","title":"Example","text":"hello"}]}`)
	}))
	defer ts.Close()

	resp, err := newTestClient(ts).Search(context.Background(), SearchParams{Query: "vector databases"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if body["category"] != "any" {
		t.Errorf("category = %v, want any", body["category"])
	}
	if body["numResults"] != float64(5) {
		t.Errorf("numResults = %v, want 5", body["numResults"])
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results = %d", len(resp.Results))
	}
	if got := resp.Results[0].FormattedSource(); got != "[Example](https://example.com)" {
		t.Errorf("FormattedSource() = %q", got)
	}
}

func TestSearch_NonSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	if _, err := newTestClient(ts).Search(context.Background(), SearchParams{Query: "x"}); err == nil {
		t.Fatal("expected error")
	}
}
