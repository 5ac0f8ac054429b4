// Package content defines the document shapes served by the content
// pipeline (question sets and results packs) and the validation and
// hashing boundary that turns untyped stored JSON into trusted values.
package content

// Kind discriminates the two managed content types.
type Kind string

const (
	KindQuestionSet Kind = "question_set"
	KindResultsPack Kind = "results_pack"
)

// Document is the tagged union over the managed content kinds. The
// validator is the only boundary that turns untyped stored JSON into
// one of its members.
type Document interface {
	DocKind() Kind
}

// QuestionSetVersion is the only question set document version this
// build understands.
const QuestionSetVersion = "v2"

// ResultsPackVersion is the only results pack document version this
// build understands.
const ResultsPackVersion = "v2"

// OptionsPerQuestion is fixed: every question carries exactly four
// options whose values cover {0,1,2,3}.
const OptionsPerQuestion = 4

type QuestionSetDocument struct {
	Version           string     `json:"version"`
	AssessmentType    string     `json:"assessmentType"`
	AssessmentVersion string     `json:"assessmentVersion,omitempty"`
	Sections          []Section  `json:"sections"`
	Questions         []Question `json:"questions"`
}

func (d *QuestionSetDocument) DocKind() Kind { return KindQuestionSet }

type Section struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	QuestionIDs []string `json:"questionIds"`
}

type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value int    `json:"value"`
}

// ResultsPackDocument is the union of the two accepted results pack
// shapes. A well-formed Flow (all three pages present) marks the v2
// shape; otherwise the legacy fields must stand on their own.
type ResultsPackDocument struct {
	Version        string       `json:"version"`
	AssessmentType string       `json:"assessmentType"`
	LevelID        string       `json:"levelId"`
	Flow           *ResultsFlow `json:"flow,omitempty"`

	// Legacy shape.
	Summary           string   `json:"summary,omitempty"`
	KeyPatterns       []string `json:"keyPatterns,omitempty"`
	FirstFocusAreas   []string `json:"firstFocusAreas,omitempty"`
	MethodPositioning string   `json:"methodPositioning,omitempty"`
}

func (d *ResultsPackDocument) DocKind() Kind { return KindResultsPack }

type ResultsFlow struct {
	Page1 *FlowPage1 `json:"page1,omitempty"`
	Page2 *FlowPage2 `json:"page2,omitempty"`
	Page3 *FlowPage3 `json:"page3,omitempty"`
}

type FlowPage1 struct {
	Headline string   `json:"headline"`
	Bullets  []string `json:"bullets"`
	Video    string   `json:"video"`
}

type FlowPage2 struct {
	Headline       string   `json:"headline"`
	MechanismPills []string `json:"mechanismPills"`
	Bullets        []string `json:"bullets"`
}

type FlowPage3 struct {
	Headline string   `json:"headline"`
	Bullets  []string `json:"bullets"`
	CTALabel string   `json:"ctaLabel"`
}

// HasCompleteFlow reports whether the document carries the full v2 flow
// (all three pages present). Documents with a partial flow are served
// through their legacy fields.
func (d *ResultsPackDocument) HasCompleteFlow() bool {
	return d.Flow != nil && d.Flow.Page1 != nil && d.Flow.Page2 != nil && d.Flow.Page3 != nil
}
