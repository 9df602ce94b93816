package exa

import (
	"encoding/json"
	"strconv"
)

// Webset is the remote structured-search job. Status is remote-defined;
// only the literal "idle" means no further items will arrive.
type Webset struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

const StatusIdle = "idle"

// Item is one discovered entity. Exactly one of Properties.Company or
// Properties.Person is populated depending on the search entity type.
type Item struct {
	ID          string       `json:"id"`
	Properties  Properties   `json:"properties"`
	Evaluations []Evaluation `json:"evaluations"`
	Enrichments []Enrichment `json:"enrichments,omitempty"`
}

type Properties struct {
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Company     *Company `json:"company,omitempty"`
	Person      *Person  `json:"person,omitempty"`
}

type Company struct {
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl"`
}

type Person struct {
	Name       string         `json:"name"`
	Position   string         `json:"position"`
	Company    *PersonCompany `json:"company,omitempty"`
	Location   string         `json:"location"`
	PictureURL string         `json:"pictureUrl"`
}

type PersonCompany struct {
	Name string `json:"name"`
}

// Evaluation carries one per-criterion verdict. The remote representation is
// inconsistent: Criterion is either a bare string or an object with a
// "description" field, and the verdict arrives under either "satisfied" or
// "result" as a string or a bare boolean. Raw shapes are kept here and
// reconciled by the websets package.
type Evaluation struct {
	Criterion json.RawMessage `json:"criterion"`
	Satisfied json.RawMessage `json:"satisfied,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// CriterionText returns the criterion description regardless of whether the
// remote sent it as a string or as an object.
func (e Evaluation) CriterionText() string {
	if len(e.Criterion) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Criterion, &s); err == nil {
		return s
	}
	var obj struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(e.Criterion, &obj); err == nil {
		return obj.Description
	}
	return ""
}

// RawVerdict returns the verdict string, preferring "satisfied" over
// "result". A field that is present, even as an empty string, wins over the
// fallback; booleans are stringified to "true"/"false".
func (e Evaluation) RawVerdict() string {
	if v, ok := verdictString(e.Satisfied); ok {
		return v
	}
	v, _ := verdictString(e.Result)
	return v
}

func verdictString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return string(raw), true
}

type Enrichment struct {
	ID     string          `json:"id,omitempty"`
	Format string          `json:"format,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// CreateWebsetParams mirrors the POST /websets/v0/websets body.
type CreateWebsetParams struct {
	ExternalID  string            `json:"externalId,omitempty"`
	Search      WebsetSearch      `json:"search"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Enrichments []any             `json:"enrichments"`
}

type WebsetSearch struct {
	Query    string             `json:"query"`
	Entity   Entity             `json:"entity"`
	Criteria []CriterionRequest `json:"criteria"`
	Count    int                `json:"count"`
	Metadata map[string]string  `json:"metadata,omitempty"`
}

type Entity struct {
	Type string `json:"type"`
}

type CriterionRequest struct {
	Description string `json:"description"`
}

type itemsPage struct {
	Data       []Item `json:"data"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor"`
}
