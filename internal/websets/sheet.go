package websets

import (
	"strings"

	"github.com/fathomchat/chat-plane/internal/exa"
)

// Hidden columns: present in the CSV for detail lookups, not shown in the
// grid.
const (
	ColumnSatisfiesAll = "satisfiesAllCriteria"
	ColumnPictureURL   = "pictureUrl"
	ColumnItemID       = "_itemId"
)

// Headers returns the column order for the request's mode. The criteria
// columns appear in request order between the entity fields and the trailing
// fixed columns.
func Headers(req SearchRequest) []string {
	var headers []string
	if req.Mode == ModeCompany {
		headers = []string{"name", "url", "description"}
	} else {
		headers = []string{"name", "url", "description", "position", "company", "location"}
	}
	headers = append(headers, req.Criteria...)
	return append(headers, ColumnSatisfiesAll, ColumnPictureURL, ColumnItemID)
}

// Sheet accumulates a growing, valid CSV document for one population run.
// Rows are append-only in first-seen order; a late re-evaluation of an
// already-seen item is not reflected.
type Sheet struct {
	req  SearchRequest
	doc  strings.Builder
	seen map[string]struct{}
	rows int
}

// NewSheet starts the document with exactly the header line plus a trailing
// newline, so consumers can render an empty table before any remote call.
func NewSheet(req SearchRequest) *Sheet {
	s := &Sheet{req: req, seen: map[string]struct{}{}}
	s.doc.WriteString(strings.Join(Headers(req), ","))
	s.doc.WriteString("\n")
	return s
}

// Ingest appends one row per item not seen before, iterating in the order
// returned by the remote listing. It reports whether anything was appended
// and returns the full document text so far: the accumulator always
// re-transmits the whole CSV rather than row deltas.
func (s *Sheet) Ingest(items []exa.Item) (bool, string) {
	updated := false
	for _, item := range items {
		if _, ok := s.seen[item.ID]; ok {
			continue
		}
		s.seen[item.ID] = struct{}{}
		s.doc.WriteString(strings.Join(projectRow(item, s.req), ","))
		s.doc.WriteString("\n")
		s.rows++
		updated = true
	}
	return updated, s.doc.String()
}

// Snapshot returns the accumulated document text.
func (s *Sheet) Snapshot() string {
	return s.doc.String()
}

// Rows returns the number of data rows appended so far.
func (s *Sheet) Rows() int {
	return s.rows
}

// projectRow maps an item into CSV-escaped cells in exact header order.
// Entity fields default to empty strings when absent.
func projectRow(item exa.Item, req SearchRequest) []string {
	props := item.Properties
	var cells []string
	if req.Mode == ModeCompany {
		var name, pictureURL string
		if props.Company != nil {
			name = props.Company.Name
			pictureURL = props.Company.LogoURL
		}
		cells = appendCells(cells, name, props.URL, props.Description)
		cells = appendCriteria(cells, req.Criteria, item.Evaluations)
		return appendCells(cells, satisfiesAllCell(req.Criteria, item.Evaluations), pictureURL, item.ID)
	}

	var name, position, company, location, pictureURL string
	if props.Person != nil {
		name = props.Person.Name
		position = props.Person.Position
		location = props.Person.Location
		pictureURL = props.Person.PictureURL
		if props.Person.Company != nil {
			company = props.Person.Company.Name
		}
	}
	cells = appendCells(cells, name, props.URL, props.Description, position, company, location)
	cells = appendCriteria(cells, req.Criteria, item.Evaluations)
	return appendCells(cells, satisfiesAllCell(req.Criteria, item.Evaluations), pictureURL, item.ID)
}

func appendCriteria(cells []string, criteria []string, evaluations []exa.Evaluation) []string {
	for _, criterion := range criteria {
		cells = append(cells, escapeCell(string(VerdictFor(criterion, evaluations))))
	}
	return cells
}

func satisfiesAllCell(criteria []string, evaluations []exa.Evaluation) string {
	if SatisfiesAll(criteria, evaluations) {
		return "true"
	}
	return "false"
}

func appendCells(cells []string, values ...string) []string {
	for _, v := range values {
		cells = append(cells, escapeCell(v))
	}
	return cells
}

// escapeCell wraps every cell in double quotes with embedded quotes doubled.
func escapeCell(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
