// Package export renders a question set back into the four-file CSV
// bundle accepted by the importer, zipped for download. Export and
// import share the same header contract, so an exported bundle
// round-trips through the importer unchanged.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"gutcheck/api/internal/content"
	"gutcheck/api/internal/csvimport"
)

// Result is a downloadable export artifact.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// QuestionSetCSV renders doc as a zip of meta.csv, sections.csv,
// questions.csv, and options.csv.
func QuestionSetCSV(doc *content.QuestionSetDocument) (*Result, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := []struct {
		name string
		rows [][]string
	}{
		{"meta", metaRows(doc)},
		{"sections", sectionRows(doc)},
		{"questions", questionRows(doc)},
		{"options", optionRows(doc)},
	}
	for _, file := range files {
		if err := writeCSV(zw, file.name, csvimport.FileHeaders[file.name], file.rows); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(doc.AssessmentType+"-"+doc.AssessmentVersion) + ".zip",
		MimeType: "application/zip",
	}, nil
}

func metaRows(doc *content.QuestionSetDocument) [][]string {
	return [][]string{
		{"version", doc.Version},
		{"assessmentType", doc.AssessmentType},
		{"assessmentVersion", doc.AssessmentVersion},
	}
}

// The document stores no order columns: section and option order is
// positional, and a question's section comes from the membership lists.
// The CSV order columns are derived from those positions, which is
// exactly what the importer reconstructs them from.

func sectionRows(doc *content.QuestionSetDocument) [][]string {
	rows := make([][]string, 0, len(doc.Sections))
	for i, sec := range doc.Sections {
		rows = append(rows, []string{sec.ID, sec.Title, sec.Description, strconv.Itoa(i + 1)})
	}
	return rows
}

func questionRows(doc *content.QuestionSetDocument) [][]string {
	type placement struct {
		sectionID string
		order     int
	}
	placements := make(map[string]placement, len(doc.Questions))
	for _, sec := range doc.Sections {
		for i, qid := range sec.QuestionIDs {
			placements[qid] = placement{sectionID: sec.ID, order: i + 1}
		}
	}

	rows := make([][]string, 0, len(doc.Questions))
	for _, q := range doc.Questions {
		p := placements[q.ID]
		rows = append(rows, []string{q.ID, p.sectionID, q.Text, strconv.Itoa(p.order)})
	}
	return rows
}

func optionRows(doc *content.QuestionSetDocument) [][]string {
	var rows [][]string
	for _, q := range doc.Questions {
		for i, opt := range q.Options {
			rows = append(rows, []string{opt.ID, q.ID, opt.Label, strconv.Itoa(opt.Value), strconv.Itoa(i + 1)})
		}
	}
	return rows
}

func writeCSV(zw *zip.Writer, name string, header []string, rows [][]string) error {
	w, err := zw.Create(name + ".csv")
	if err != nil {
		return fmt.Errorf("create %s.csv: %w", name, err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s rows: %w", name, err)
	}
	cw.Flush()
	return cw.Error()
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "question-set"
	}
	return b.String()
}
