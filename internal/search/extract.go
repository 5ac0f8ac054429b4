package search

import (
	"encoding/json"
	"strings"

	"gutcheck/api/internal/content"
)

// ExtractText flattens a content document into the plain text indexed
// as the revision body. Unparseable documents index as empty rather
// than failing: search coverage is best-effort.
func ExtractText(kind content.Kind, raw json.RawMessage) string {
	var parts []string
	switch kind {
	case content.KindQuestionSet:
		var doc content.QuestionSetDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return ""
		}
		for _, sec := range doc.Sections {
			parts = append(parts, sec.Title, sec.Description)
		}
		for _, q := range doc.Questions {
			parts = append(parts, q.Text)
			for _, opt := range q.Options {
				parts = append(parts, opt.Label)
			}
		}
	case content.KindResultsPack:
		var doc content.ResultsPackDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return ""
		}
		if doc.Flow != nil {
			if p := doc.Flow.Page1; p != nil {
				parts = append(parts, p.Headline)
				parts = append(parts, p.Bullets...)
			}
			if p := doc.Flow.Page2; p != nil {
				parts = append(parts, p.Headline)
				parts = append(parts, p.MechanismPills...)
				parts = append(parts, p.Bullets...)
			}
			if p := doc.Flow.Page3; p != nil {
				parts = append(parts, p.Headline)
				parts = append(parts, p.Bullets...)
				parts = append(parts, p.CTALabel)
			}
		}
		parts = append(parts, doc.Summary, doc.MethodPositioning)
		parts = append(parts, doc.KeyPatterns...)
		parts = append(parts, doc.FirstFocusAreas...)
	}

	joined := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			joined = append(joined, strings.TrimSpace(p))
		}
	}
	return strings.Join(joined, " ")
}
