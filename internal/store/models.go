package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContentIdentity names one managed content slot. LevelID is set only
// for results packs. A nil Locale is the canonical "no locale" value
// and is matched with a null test, never string equality.
type ContentIdentity struct {
	ID             string
	ContentType    string
	AssessmentType string
	Version        string
	LevelID        *string
	Locale         *string
	CreatedAt      time.Time
}

// ContentPointer is the single mutable record per identity. Both
// revision ids may be null: that is the valid "exists but nothing
// published yet" state, distinct from the pointer row being absent.
type ContentPointer struct {
	IdentityID          string
	PreviewRevisionID   *string
	PublishedRevisionID *string
	UpdatedAt           time.Time
}

// ContentRevision is an immutable numbered snapshot of a document.
// Edits always append a new revision; only the status column ever
// changes after insert.
type ContentRevision struct {
	ID             string
	IdentityID     string
	RevisionNumber int
	ContentJSON    json.RawMessage
	ContentHash    string
	SchemaVersion  string
	Status         string
	ChangeSummary  string
	CreatedBy      string
	CreatedAt      time.Time
}

const (
	RevisionStatusDraft     = "draft"
	RevisionStatusPublished = "published"
	RevisionStatusArchived  = "archived"
)
