// Package websets turns a remote, eventually-consistent webset job into a
// deterministic, append-safe CSV artifact.
package websets

import (
	"fmt"
	"strings"
)

const (
	ModeCompany = "company"
	ModePerson  = "person"
)

// SearchRequest is immutable for the duration of one population run. The
// criteria order is significant: it defines the column order of the sheet.
type SearchRequest struct {
	Query    string   `json:"query"`
	Mode     string   `json:"mode"`
	Criteria []string `json:"criteria"`
	Count    int      `json:"count"`
}

func (r SearchRequest) Validate() error {
	if len(strings.TrimSpace(r.Query)) < 3 {
		return fmt.Errorf("query must be at least 3 characters")
	}
	if r.Mode != ModeCompany && r.Mode != ModePerson {
		return fmt.Errorf("mode must be %q or %q", ModeCompany, ModePerson)
	}
	if len(r.Criteria) == 0 {
		return fmt.Errorf("at least one criterion is required")
	}
	for i, criterion := range r.Criteria {
		if strings.TrimSpace(criterion) == "" {
			return fmt.Errorf("criterion %d is empty", i+1)
		}
	}
	if r.Count < 1 || r.Count > 1000 {
		return fmt.Errorf("count must be between 1 and 1000")
	}
	return nil
}

// Title is the artifact title announced to the UI and used at persist time.
func (r SearchRequest) Title() string {
	return fmt.Sprintf("%s webset for %q", r.Mode, r.Query)
}
