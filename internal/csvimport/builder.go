package csvimport

import (
	"fmt"
	"sort"
	"strconv"

	"gutcheck/api/internal/content"
)

// Build assembles a question set document from the four parsed row
// sets. It owns shape assembly and cross-file referential integrity;
// single-document rules stay with the content validator, which runs
// over the assembled result. The document is returned only when no
// errors were found.
func Build(meta, sections, questions, options []Row) (*content.QuestionSetDocument, []Error) {
	var errs []Error

	metaValues := map[string]Row{}
	for _, row := range meta {
		key := row.Fields["key"]
		if key == "" {
			errs = append(errs, Error{File: "meta", Row: row.Number, Column: "key", Message: "key must not be empty"})
			continue
		}
		if prev, seen := metaValues[key]; seen {
			errs = append(errs, Error{File: "meta", Row: row.Number, Column: "key",
				Message: fmt.Sprintf("duplicate key %q (first on row %d)", key, prev.Number)})
			continue
		}
		metaValues[key] = row
	}
	requireMeta := func(key string) string {
		row, ok := metaValues[key]
		if !ok || row.Fields["value"] == "" {
			errs = append(errs, Error{File: "meta", Row: 0, Column: "value",
				Message: fmt.Sprintf("required meta key %q is missing or empty", key)})
			return ""
		}
		return row.Fields["value"]
	}
	version := requireMeta("version")
	assessmentType := requireMeta("assessmentType")
	assessmentVersion := requireMeta("assessmentVersion")

	sectionRows := map[string]Row{}
	sectionOrder := map[string]int{}
	for _, row := range sections {
		id := row.Fields["id"]
		if id == "" {
			errs = append(errs, Error{File: "sections", Row: row.Number, Column: "id", Message: "id must not be empty"})
			continue
		}
		if prev, seen := sectionRows[id]; seen {
			errs = append(errs, Error{File: "sections", Row: row.Number, Column: "id",
				Message: fmt.Sprintf("duplicate section id %q (first on row %d)", id, prev.Number)})
			continue
		}
		sectionRows[id] = row
		sectionOrder[id] = numericField(&errs, "sections", row, "order")
	}

	questionRows := map[string]Row{}
	questionsBySection := map[string][]Row{}
	for _, row := range questions {
		id := row.Fields["id"]
		if id == "" {
			errs = append(errs, Error{File: "questions", Row: row.Number, Column: "id", Message: "id must not be empty"})
			continue
		}
		if prev, seen := questionRows[id]; seen {
			errs = append(errs, Error{File: "questions", Row: row.Number, Column: "id",
				Message: fmt.Sprintf("duplicate question id %q (first on row %d)", id, prev.Number)})
			continue
		}
		questionRows[id] = row
		sectionID := row.Fields["section_id"]
		if _, ok := sectionRows[sectionID]; !ok {
			errs = append(errs, Error{File: "questions", Row: row.Number, Column: "section_id",
				Message: fmt.Sprintf("section %q does not exist", sectionID)})
			continue
		}
		numericField(&errs, "questions", row, "order")
		questionsBySection[sectionID] = append(questionsBySection[sectionID], row)
	}

	optionsByQuestion := map[string][]Row{}
	for _, row := range options {
		questionID := row.Fields["question_id"]
		if _, ok := questionRows[questionID]; !ok {
			errs = append(errs, Error{File: "options", Row: row.Number, Column: "question_id",
				Message: fmt.Sprintf("question %q does not exist", questionID)})
			continue
		}
		numericField(&errs, "options", row, "value")
		numericField(&errs, "options", row, "order")
		optionsByQuestion[questionID] = append(optionsByQuestion[questionID], row)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	doc := &content.QuestionSetDocument{
		Version:           version,
		AssessmentType:    assessmentType,
		AssessmentVersion: assessmentVersion,
	}

	orderedSections := make([]Row, 0, len(sections))
	orderedSections = append(orderedSections, sections...)
	sort.SliceStable(orderedSections, func(i, j int) bool {
		return sectionOrder[orderedSections[i].Fields["id"]] < sectionOrder[orderedSections[j].Fields["id"]]
	})

	for _, secRow := range orderedSections {
		secID := secRow.Fields["id"]
		qRows := questionsBySection[secID]
		sort.SliceStable(qRows, func(i, j int) bool {
			return mustInt(qRows[i].Fields["order"]) < mustInt(qRows[j].Fields["order"])
		})

		section := content.Section{
			ID:          secID,
			Title:       secRow.Fields["title"],
			Description: secRow.Fields["description"],
		}
		for _, qRow := range qRows {
			qID := qRow.Fields["id"]
			section.QuestionIDs = append(section.QuestionIDs, qID)

			oRows := optionsByQuestion[qID]
			sort.SliceStable(oRows, func(i, j int) bool {
				return mustInt(oRows[i].Fields["order"]) < mustInt(oRows[j].Fields["order"])
			})
			question := content.Question{ID: qID, Text: qRow.Fields["text"]}
			for _, oRow := range oRows {
				question.Options = append(question.Options, content.Option{
					ID:    oRow.Fields["id"],
					Label: oRow.Fields["label"],
					Value: mustInt(oRow.Fields["value"]),
				})
			}
			doc.Questions = append(doc.Questions, question)
		}
		doc.Sections = append(doc.Sections, section)
	}

	// Cross-file assembly is done; the single-document rules (option
	// coverage, bullet contracts, uniqueness) run through the validator
	// and are folded into the same error table.
	if res := content.ValidateQuestionSet(doc); !res.OK {
		for _, msg := range res.Errors {
			errs = append(errs, Error{File: "document", Row: 0, Message: msg})
		}
		return nil, errs
	}

	return doc, nil
}

// numericField checks that a required field parses as an integer,
// reporting the exact row and column when it does not.
func numericField(errs *[]Error, file string, row Row, column string) int {
	v, err := strconv.Atoi(row.Fields[column])
	if err != nil {
		*errs = append(*errs, Error{File: file, Row: row.Number, Column: column,
			Message: fmt.Sprintf("%q is not a number", row.Fields[column])})
		return 0
	}
	return v
}

func mustInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
