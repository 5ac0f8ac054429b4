package resolver

import (
	"time"

	"gutcheck/api/internal/content"
)

// Source records where a resolution was satisfied from.
type Source string

const (
	SourceCMS      Source = "cms"
	SourceFile     Source = "file"
	SourceCMSEmpty Source = "cms_empty"
)

// Ref is the serializable record of how a resolution was satisfied.
// Persisting it (typically against a visitor session) and passing it
// back as Options.Pinned reproduces the exact revision later, no matter
// where the pointer has moved since.
type Ref struct {
	Source         Source       `json:"source"`
	ContentType    content.Kind `json:"contentType"`
	AssessmentType string       `json:"assessmentType"`
	Version        string       `json:"version"`
	LevelID        string       `json:"levelId,omitempty"`
	Locale         string       `json:"locale,omitempty"`
	RevisionID     string       `json:"revisionId,omitempty"`
	ContentHash    string       `json:"contentHash,omitempty"`
	ResolvedAt     time.Time    `json:"resolvedAt"`
}

// Identity names the content slot a caller is asking for. LevelID is
// meaningful for results packs only. An empty Locale is the canonical
// "no locale" value, matched against NULL in the managed store.
type Identity struct {
	Kind           content.Kind
	AssessmentType string
	Version        string
	LevelID        string
	Locale         string
}

func (id Identity) String() string {
	s := string(id.Kind) + " " + id.AssessmentType + " " + id.Version
	if id.LevelID != "" {
		s += " " + id.LevelID
	}
	if id.Locale != "" {
		s += " (" + id.Locale + ")"
	}
	return s
}

func (id Identity) newRef(source Source, revisionID, contentHash string) *Ref {
	return &Ref{
		Source:         source,
		ContentType:    id.Kind,
		AssessmentType: id.AssessmentType,
		Version:        id.Version,
		LevelID:        id.LevelID,
		Locale:         id.Locale,
		RevisionID:     revisionID,
		ContentHash:    contentHash,
		ResolvedAt:     time.Now().UTC(),
	}
}
