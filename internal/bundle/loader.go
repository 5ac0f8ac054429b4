// Package bundle serves the compile-time bundled content documents used
// as the fallback source when the CMS has nothing to offer for an
// identity. The set of (contentType, version) pairs is fixed at build
// time; anything outside it is an expected miss, not a fault.
package bundle

import (
	"embed"
	"errors"
	"fmt"
	"log"
	"regexp"

	"gutcheck/api/internal/content"
)

//go:embed data/*.json
var files embed.FS

// ErrUnknownLevel marks a level identifier that is neither canonical nor
// covered by the alias table. Unlike absence, this is a caller-data bug
// and is surfaced as a hard error.
var ErrUnknownLevel = errors.New("unknown results level id")

var canonicalLevel = regexp.MustCompile(`^level[1-4]$`)

// DefaultLevelAliases maps the legacy avatar-style level identifiers
// still present in old sessions onto canonical level ids.
func DefaultLevelAliases() map[string]string {
	return map[string]string{
		"resilient": "level1",
		"sensitive": "level2",
		"reactive":  "level3",
		"depleted":  "level4",
	}
}

// Loader resolves bundled documents. The level alias table is injected
// so deployments can extend it without touching the loader.
type Loader struct {
	levelAliases map[string]string
}

func NewLoader(levelAliases map[string]string) *Loader {
	if levelAliases == nil {
		levelAliases = DefaultLevelAliases()
	}
	return &Loader{levelAliases: levelAliases}
}

// NormalizeLevelID maps a caller-supplied level identifier onto the
// canonical "level1".."level4" form, consulting the alias table for
// legacy identifiers.
func (l *Loader) NormalizeLevelID(levelID string) (string, error) {
	if canonicalLevel.MatchString(levelID) {
		return levelID, nil
	}
	if mapped, ok := l.levelAliases[levelID]; ok {
		return mapped, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, levelID)
}

// QuestionSet loads the bundled question set for the given assessment
// type and version. Returns nil when no bundled document exists or the
// loaded document does not match the requested identity.
func (l *Loader) QuestionSet(assessmentType, version string) *content.QuestionSetDocument {
	name := fmt.Sprintf("data/%s-questions-%s.json", assessmentType, version)
	raw, err := files.ReadFile(name)
	if err != nil {
		log.Printf("bundle: no bundled question set for %s %s", assessmentType, version)
		return nil
	}

	doc, res := content.DecodeQuestionSet(raw)
	if !res.OK {
		log.Printf("bundle: bundled question set %s failed validation: %v", name, res.Errors)
		return nil
	}
	if doc.AssessmentType != assessmentType || doc.Version != version {
		log.Printf("bundle: %s identity mismatch: embedded (%s, %s), requested (%s, %s)",
			name, doc.AssessmentType, doc.Version, assessmentType, version)
		return nil
	}
	return doc
}

// ResultsPack loads the bundled results pack for the given assessment
// type, version and level. The level id is normalized first; an
// unrecognized level is a hard error, while a missing bundled file is an
// ordinary nil miss.
func (l *Loader) ResultsPack(assessmentType, version, levelID string) (*content.ResultsPackDocument, error) {
	level, err := l.NormalizeLevelID(levelID)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("data/%s-results-%s-%s.json", assessmentType, version, level)
	raw, err := files.ReadFile(name)
	if err != nil {
		log.Printf("bundle: no bundled results pack for %s %s %s", assessmentType, version, level)
		return nil, nil
	}

	doc, res := content.DecodeResultsPack(raw)
	if !res.OK {
		log.Printf("bundle: bundled results pack %s failed validation: %v", name, res.Errors)
		return nil, nil
	}
	if doc.AssessmentType != assessmentType || doc.Version != version || doc.LevelID != level {
		log.Printf("bundle: %s identity mismatch: embedded (%s, %s, %s), requested (%s, %s, %s)",
			name, doc.AssessmentType, doc.Version, doc.LevelID, assessmentType, version, level)
		return nil, nil
	}
	return doc, nil
}
