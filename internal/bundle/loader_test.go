package bundle

import (
	"errors"
	"strings"
	"testing"
)

func TestQuestionSetKnownIdentity(t *testing.T) {
	l := NewLoader(nil)
	doc := l.QuestionSet("gut-check", "v2")
	if doc == nil {
		t.Fatal("expected bundled question set for gut-check v2")
	}
	if doc.AssessmentType != "gut-check" || doc.Version != "v2" {
		t.Fatalf("unexpected identity: %s %s", doc.AssessmentType, doc.Version)
	}
	if len(doc.Sections) == 0 || len(doc.Questions) == 0 {
		t.Fatal("bundled question set is empty")
	}
}

func TestQuestionSetUnknownIdentity(t *testing.T) {
	l := NewLoader(nil)
	if doc := l.QuestionSet("gut-check", "v9"); doc != nil {
		t.Fatal("expected nil for an unbundled version")
	}
	if doc := l.QuestionSet("sleep-check", "v2"); doc != nil {
		t.Fatal("expected nil for an unbundled assessment type")
	}
}

func TestResultsPackAllLevels(t *testing.T) {
	l := NewLoader(nil)
	for _, level := range []string{"level1", "level2", "level3", "level4"} {
		doc, err := l.ResultsPack("gut-check", "v2", level)
		if err != nil {
			t.Fatalf("level %s: %v", level, err)
		}
		if doc == nil {
			t.Fatalf("level %s: expected bundled results pack", level)
		}
		if doc.LevelID != level {
			t.Fatalf("level %s: embedded levelId %s", level, doc.LevelID)
		}
	}
}

func TestResultsPackLevelAlias(t *testing.T) {
	l := NewLoader(nil)
	doc, err := l.ResultsPack("gut-check", "v2", "reactive")
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil || doc.LevelID != "level3" {
		t.Fatalf("expected alias reactive to load level3, got %+v", doc)
	}
}

func TestResultsPackUnknownLevelIsHardError(t *testing.T) {
	l := NewLoader(nil)
	_, err := l.ResultsPack("gut-check", "v2", "level9")
	if !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel, got %v", err)
	}
	if !strings.Contains(err.Error(), "level9") {
		t.Fatalf("error must name the offending id: %v", err)
	}
}

func TestResultsPackMissingVersionIsSoftMiss(t *testing.T) {
	l := NewLoader(nil)
	doc, err := l.ResultsPack("gut-check", "v9", "level1")
	if err != nil {
		t.Fatalf("absence must not be an error: %v", err)
	}
	if doc != nil {
		t.Fatal("expected nil for an unbundled version")
	}
}

func TestInjectedAliases(t *testing.T) {
	l := NewLoader(map[string]string{"phoenix": "level4"})
	level, err := l.NormalizeLevelID("phoenix")
	if err != nil || level != "level4" {
		t.Fatalf("custom alias: got %q, %v", level, err)
	}
	// Injected table replaces the default, it does not merge.
	if _, err := l.NormalizeLevelID("reactive"); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel for unmapped alias, got %v", err)
	}
}
