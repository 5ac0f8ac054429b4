// Package csvimport turns the four-file CSV bundle exported by the
// content team (meta, sections, questions, options) into a validated
// question set document. All problems across all files are collected
// into one error table rather than stopping at the first.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Error is the unified error shape for the whole import pipeline: the
// parser, the builder and the document validator all report through it
// so the admin UI can render a single "every problem found" table.
type Error struct {
	File    string `json:"file"`
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s row %d column %s: %s", e.File, e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("%s row %d: %s", e.File, e.Row, e.Message)
}

// Row is one parsed data row: named fields plus the 1-based line number
// of the source file for diagnostics (the header is row 1).
type Row struct {
	Number int
	Fields map[string]string
}

// FileHeaders is the fixed, ordered header contract for each of the
// four import files.
var FileHeaders = map[string][]string{
	"meta":      {"key", "value"},
	"sections":  {"id", "title", "description", "order"},
	"questions": {"id", "section_id", "text", "order"},
	"options":   {"id", "question_id", "label", "value", "order"},
}

// Parse reads one named import file. The header row must match the
// contract exactly (names and order); any column-count mismatch on a
// data row is a row-level error. Quoting follows RFC 4180: a field
// containing the delimiter is quote-escaped, with doubled quotes for
// literal quotes.
func Parse(file string, data string) ([]Row, []Error) {
	want, ok := FileHeaders[file]
	if !ok {
		return nil, []Error{{File: file, Row: 0, Message: fmt.Sprintf("unknown import file %q", file)}}
	}

	reader := csv.NewReader(strings.NewReader(data))
	reader.FieldsPerRecord = len(want)

	header, err := reader.Read()
	if err != nil {
		return nil, []Error{{File: file, Row: 1, Message: fmt.Sprintf("cannot read header row: %v", err)}}
	}
	if !headerMatches(header, want) {
		return nil, []Error{{
			File: file, Row: 1,
			Message: fmt.Sprintf("header must be exactly %q, got %q", strings.Join(want, ","), strings.Join(header, ",")),
		}}
	}

	var (
		rows []Row
		errs []Error
	)
	line := 1
	for {
		line++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, Error{File: file, Row: line, Message: err.Error()})
			// A malformed row is reported and skipped; parsing continues.
			continue
		}
		fields := make(map[string]string, len(want))
		for i, name := range want {
			fields[name] = strings.TrimSpace(record[i])
		}
		rows = append(rows, Row{Number: line, Fields: fields})
	}
	return rows, errs
}

func headerMatches(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != want[i] {
			return false
		}
	}
	return true
}
