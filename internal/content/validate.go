package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the outcome of a structural validation pass. OK is true iff
// Errors is empty; Warnings never affect OK.
type Result struct {
	OK       bool
	Errors   []string
	Warnings []string
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) finish() Result {
	r.OK = len(r.Errors) == 0
	return *r
}

// DecodeQuestionSet parses raw JSON into a question set document and
// validates it. A nil document is returned whenever the JSON itself is
// unparseable; structural violations still return the decoded document
// so callers can show what was rejected.
func DecodeQuestionSet(raw []byte) (*QuestionSetDocument, Result) {
	var doc QuestionSetDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		var res Result
		res.errorf("document is not valid JSON for a question set: %v", err)
		return nil, res.finish()
	}
	res := ValidateQuestionSet(&doc)
	return &doc, res
}

// ValidateQuestionSet checks every structural invariant of a question
// set document and reports all violations, never just the first.
func ValidateQuestionSet(doc *QuestionSetDocument) Result {
	var res Result
	if doc == nil {
		res.errorf("document is missing")
		return res.finish()
	}

	if doc.Version != QuestionSetVersion {
		res.errorf("version must be %q, got %q", QuestionSetVersion, doc.Version)
	}
	if strings.TrimSpace(doc.AssessmentType) == "" {
		res.errorf("assessmentType is required")
	}

	if len(doc.Sections) == 0 {
		res.errorf("sections must not be empty")
	}

	questionIDs := make(map[string]int, len(doc.Questions))
	for i, q := range doc.Questions {
		if strings.TrimSpace(q.ID) == "" {
			res.errorf("questions[%d]: id is required", i)
			continue
		}
		if prev, seen := questionIDs[q.ID]; seen {
			res.errorf("questions[%d]: duplicate question id %q (first used at questions[%d])", i, q.ID, prev)
			continue
		}
		questionIDs[q.ID] = i
	}

	sectionIDs := make(map[string]int, len(doc.Sections))
	for i, sec := range doc.Sections {
		if strings.TrimSpace(sec.ID) == "" {
			res.errorf("sections[%d]: id is required", i)
		} else if prev, seen := sectionIDs[sec.ID]; seen {
			res.errorf("sections[%d]: duplicate section id %q (first used at sections[%d])", i, sec.ID, prev)
		} else {
			sectionIDs[sec.ID] = i
		}
		if strings.TrimSpace(sec.Title) == "" {
			res.errorf("sections[%d]: title is required", i)
		}
		if len(sec.QuestionIDs) == 0 {
			res.errorf("sections[%d]: questionIds must not be empty", i)
		}
		for j, qid := range sec.QuestionIDs {
			if _, ok := questionIDs[qid]; !ok {
				res.errorf("sections[%d].questionIds[%d]: question %q does not exist", i, j, qid)
			}
		}
	}

	for i, q := range doc.Questions {
		if strings.TrimSpace(q.Text) == "" {
			res.errorf("questions[%d]: text is required", i)
		}
		validateOptions(&res, i, q.Options)
	}

	return res.finish()
}

// validateOptions enforces the option contract for one question: exactly
// four options, unique option ids, and values covering exactly {0,1,2,3}.
// Missing and duplicate values are detected independently so both are
// reported when both occur.
func validateOptions(res *Result, qi int, options []Option) {
	if len(options) != OptionsPerQuestion {
		res.errorf("questions[%d]: expected %d options, got %d", qi, OptionsPerQuestion, len(options))
	}

	optionIDs := make(map[string]bool, len(options))
	valueCount := make(map[int]int, OptionsPerQuestion)
	for j, opt := range options {
		if strings.TrimSpace(opt.ID) == "" {
			res.errorf("questions[%d].options[%d]: id is required", qi, j)
		} else if optionIDs[opt.ID] {
			res.errorf("questions[%d].options[%d]: duplicate option id %q", qi, j, opt.ID)
		} else {
			optionIDs[opt.ID] = true
		}
		if strings.TrimSpace(opt.Label) == "" {
			res.errorf("questions[%d].options[%d]: label is required", qi, j)
		}
		if opt.Value < 0 || opt.Value > 3 {
			res.errorf("questions[%d].options[%d]: value %d is out of range 0-3", qi, j, opt.Value)
			continue
		}
		valueCount[opt.Value]++
	}

	for v := 0; v <= 3; v++ {
		switch {
		case valueCount[v] == 0:
			res.errorf("questions[%d]: no option with value %d", qi, v)
		case valueCount[v] > 1:
			res.errorf("questions[%d]: value %d appears on %d options", qi, v, valueCount[v])
		}
	}
}

// DecodeResultsPack parses raw JSON into a results pack document and
// validates it.
func DecodeResultsPack(raw []byte) (*ResultsPackDocument, Result) {
	var doc ResultsPackDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		var res Result
		res.errorf("document is not valid JSON for a results pack: %v", err)
		return nil, res.finish()
	}
	res := ValidateResultsPack(&doc)
	return &doc, res
}

// ValidateResultsPack checks a results pack against whichever shape it
// carries. A complete flow object selects the v2 rules; a partial flow
// next to valid legacy fields is a warning, never an error.
func ValidateResultsPack(doc *ResultsPackDocument) Result {
	var res Result
	if doc == nil {
		res.errorf("document is missing")
		return res.finish()
	}

	if doc.Version != ResultsPackVersion {
		res.errorf("version must be %q, got %q", ResultsPackVersion, doc.Version)
	}
	if strings.TrimSpace(doc.AssessmentType) == "" {
		res.errorf("assessmentType is required")
	}
	if strings.TrimSpace(doc.LevelID) == "" {
		res.errorf("levelId is required")
	}

	if doc.HasCompleteFlow() {
		validateFlow(&res, doc.Flow)
		return res.finish()
	}

	if doc.Flow != nil {
		res.warnf("flow is present but incomplete (page1/page2/page3 all required); serving legacy fields")
	}
	validateLegacyResults(&res, doc)
	return res.finish()
}

func validateFlow(res *Result, flow *ResultsFlow) {
	if strings.TrimSpace(flow.Page1.Headline) == "" {
		res.errorf("flow.page1: headline is required")
	}
	checkBullets(res, "flow.page1.bullets", flow.Page1.Bullets, 3)
	if strings.TrimSpace(flow.Page1.Video) == "" {
		res.errorf("flow.page1: video is required")
	} else if _, err := ParseVideoRef(flow.Page1.Video); err != nil {
		res.errorf("flow.page1: video %q is not a recognized video reference: %v", flow.Page1.Video, err)
	}

	if strings.TrimSpace(flow.Page2.Headline) == "" {
		res.errorf("flow.page2: headline is required")
	}
	checkBullets(res, "flow.page2.mechanismPills", flow.Page2.MechanismPills, 4)
	checkBullets(res, "flow.page2.bullets", flow.Page2.Bullets, 3)

	if strings.TrimSpace(flow.Page3.Headline) == "" {
		res.errorf("flow.page3: headline is required")
	}
	checkBullets(res, "flow.page3.bullets", flow.Page3.Bullets, 3)
	if strings.TrimSpace(flow.Page3.CTALabel) == "" {
		res.errorf("flow.page3: ctaLabel is required")
	}
}

func checkBullets(res *Result, field string, items []string, want int) {
	if len(items) != want {
		res.errorf("%s: expected exactly %d items, got %d", field, want, len(items))
	}
	for i, item := range items {
		if strings.TrimSpace(item) == "" {
			res.errorf("%s[%d]: must not be empty", field, i)
		}
	}
}

func validateLegacyResults(res *Result, doc *ResultsPackDocument) {
	if strings.TrimSpace(doc.Summary) == "" {
		res.errorf("summary is required")
	}
	if len(doc.KeyPatterns) == 0 {
		res.errorf("keyPatterns must not be empty")
	}
	for i, p := range doc.KeyPatterns {
		if strings.TrimSpace(p) == "" {
			res.errorf("keyPatterns[%d]: must not be empty", i)
		}
	}
	if len(doc.FirstFocusAreas) == 0 {
		res.errorf("firstFocusAreas must not be empty")
	}
	for i, a := range doc.FirstFocusAreas {
		if strings.TrimSpace(a) == "" {
			res.errorf("firstFocusAreas[%d]: must not be empty", i)
		}
	}
	if strings.TrimSpace(doc.MethodPositioning) == "" {
		res.errorf("methodPositioning is required")
	}
}
