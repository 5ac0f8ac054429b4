package search

import (
	"encoding/json"
	"strings"
	"testing"

	"gutcheck/api/internal/content"
)

func TestExtractTextQuestionSet(t *testing.T) {
	raw := json.RawMessage(`{
		"version": "v2",
		"assessmentType": "gut-check",
		"assessmentVersion": "v2",
		"sections": [{"id": "s1", "title": "Digestion", "description": "How things move", "order": 1}],
		"questions": [{
			"id": "q1", "sectionId": "s1", "text": "How often do you feel bloated?", "order": 1,
			"options": [
				{"id": "o1", "label": "Rarely", "value": 0, "order": 1},
				{"id": "o2", "label": "Sometimes", "value": 1, "order": 2},
				{"id": "o3", "label": "Often", "value": 2, "order": 3},
				{"id": "o4", "label": "Daily", "value": 3, "order": 4}
			]
		}]
	}`)

	text := ExtractText(content.KindQuestionSet, raw)
	for _, want := range []string{"Digestion", "bloated", "Rarely", "Daily"} {
		if !strings.Contains(text, want) {
			t.Errorf("extracted text missing %q: %s", want, text)
		}
	}
}

func TestExtractTextResultsPackLegacy(t *testing.T) {
	raw := json.RawMessage(`{
		"version": "v2",
		"assessmentType": "gut-check",
		"levelId": "level1",
		"summary": "Your gut is broadly resilient.",
		"keyPatterns": ["steady digestion"],
		"firstFocusAreas": ["fiber variety"],
		"methodPositioning": "Small consistent habits."
	}`)

	text := ExtractText(content.KindResultsPack, raw)
	for _, want := range []string{"resilient", "steady digestion", "fiber variety", "consistent habits"} {
		if !strings.Contains(text, want) {
			t.Errorf("extracted text missing %q: %s", want, text)
		}
	}
}

func TestExtractTextUnparseable(t *testing.T) {
	if got := ExtractText(content.KindQuestionSet, json.RawMessage(`{broken`)); got != "" {
		t.Errorf("want empty text for unparseable document, got %q", got)
	}
}

func TestRevisionRecordLabel(t *testing.T) {
	rec := RevisionRecord{AssessmentType: "gut-check", Version: "v2", LevelID: "level3", Locale: "en-US"}
	if got := rec.Label(); got != "gut-check v2 level3 (en-US)" {
		t.Errorf("label = %q", got)
	}
	rec = RevisionRecord{AssessmentType: "gut-check", Version: "v2"}
	if got := rec.Label(); got != "gut-check v2" {
		t.Errorf("label = %q", got)
	}
}
