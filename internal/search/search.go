// Package search provides admin free-text search over content
// revisions: Meilisearch when available, PostgreSQL full-text search as
// the fallback.
package search

// Query is an admin revision search request.
type Query struct {
	Text              string
	FilterContentType string
	FilterStatus      string
	Limit             int
	Offset            int
}

// Result is one revision hit.
type Result struct {
	ID             string `json:"id"`
	IdentityID     string `json:"identityId"`
	ContentType    string `json:"contentType"`
	AssessmentType string `json:"assessmentType"`
	Version        string `json:"version"`
	LevelID        string `json:"levelId,omitempty"`
	Locale         string `json:"locale,omitempty"`
	Status         string `json:"status"`
	Title          string `json:"title"`
	Snippet        string `json:"snippet"`
}

// Response wraps results for the HTTP layer.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// RevisionRecord is the indexed shape of one content revision.
type RevisionRecord struct {
	ID             string `json:"id"`
	IdentityID     string `json:"identityId"`
	ContentType    string `json:"contentType"`
	AssessmentType string `json:"assessmentType"`
	Version        string `json:"version"`
	LevelID        string `json:"levelId,omitempty"`
	Locale         string `json:"locale,omitempty"`
	Status         string `json:"status"`
	ChangeSummary  string `json:"changeSummary"`
	Body           string `json:"body"`
	RevisionNumber int    `json:"revisionNumber"`
}

// Label renders the human-readable identity line shown in admin search
// results.
func (r RevisionRecord) Label() string {
	label := r.AssessmentType + " " + r.Version
	if r.LevelID != "" {
		label += " " + r.LevelID
	}
	if r.Locale != "" {
		label += " (" + r.Locale + ")"
	}
	return label
}
