package csvimport

import (
	"strings"
	"testing"
)

func TestParseSections(t *testing.T) {
	data := "id,title,description,order\n" +
		"digestion,Digestion,How your gut behaves,1\n" +
		`diet,"Diet, Triggers","Foods with ""quotes"" inside",2` + "\n"

	rows, errs := Parse("sections", data)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Number != 2 || rows[1].Number != 3 {
		t.Fatalf("row numbers should start after the header: %d, %d", rows[0].Number, rows[1].Number)
	}
	if rows[1].Fields["title"] != "Diet, Triggers" {
		t.Errorf("quoted delimiter mishandled: %q", rows[1].Fields["title"])
	}
	if rows[1].Fields["description"] != `Foods with "quotes" inside` {
		t.Errorf("doubled-quote escaping mishandled: %q", rows[1].Fields["description"])
	}
}

func TestParseHeaderMismatch(t *testing.T) {
	_, errs := Parse("sections", "id,name,description,order\ns1,One,,1\n")
	if len(errs) != 1 {
		t.Fatalf("expected one file-level error, got %v", errs)
	}
	if errs[0].Row != 1 || !strings.Contains(errs[0].Message, "header must be exactly") {
		t.Fatalf("unexpected error: %+v", errs[0])
	}
}

func TestParseColumnCountMismatchReportsRowAndContinues(t *testing.T) {
	data := "key,value\nversion,v2\nassessmentType\nassessmentVersion,2\n"
	rows, errs := Parse("meta", data)
	if len(errs) != 1 {
		t.Fatalf("expected one row error, got %v", errs)
	}
	if errs[0].File != "meta" || errs[0].Row != 3 {
		t.Fatalf("error should name meta row 3: %+v", errs[0])
	}
	if len(rows) != 2 {
		t.Fatalf("valid rows around the bad one must survive, got %d", len(rows))
	}
}

func TestParseUnknownFile(t *testing.T) {
	_, errs := Parse("extras", "a,b\n1,2\n")
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "unknown import file") {
		t.Fatalf("unexpected errors: %v", errs)
	}
}
