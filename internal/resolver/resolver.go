// Package resolver implements the revision resolution pipeline for
// managed content: pinned revision first, then preview (editors and
// admins only), then published, then the bundled file fallback. Managed
// store failures at any step degrade to the next step instead of
// failing the request.
package resolver

import (
	"context"
	"fmt"
	"log"
	"time"

	"gutcheck/api/internal/content"
	"gutcheck/api/internal/rbac"
	"gutcheck/api/internal/store"
)

type managedStore interface {
	GetIdentity(ctx context.Context, key store.IdentityKey) (*store.ContentIdentity, error)
	GetPointer(ctx context.Context, identityID string) (*store.ContentPointer, error)
	GetRevision(ctx context.Context, revisionID string) (*store.ContentRevision, error)
}

type fileLoader interface {
	QuestionSet(assessmentType, version string) *content.QuestionSetDocument
	ResultsPack(assessmentType, version, levelID string) (*content.ResultsPackDocument, error)
}

type Resolver struct {
	store managedStore
	files fileLoader
}

func New(managed managedStore, files fileLoader) *Resolver {
	return &Resolver{store: managed, files: files}
}

// Options carries the caller's resolution context. Preview only takes
// effect for roles allowed by rbac.CanPreview; Pinned is best-effort
// and never fatal.
type Options struct {
	Preview bool
	Role    rbac.Role
	Pinned  *Ref
}

// Resolution is the resolver's result contract. Document is nil only
// for SourceCMSEmpty.
type Resolution struct {
	Document      content.Document
	Source        Source
	ContentHash   string
	SchemaVersion string
	PublishedAt   *time.Time
	IsPreview     bool
	Ref           *Ref
}

// NotFoundError reports total resolution exhaustion for an identity the
// managed store has never heard of. Remediation is creating the
// identity in the CMS (or bundling a file for it).
type NotFoundError struct {
	Identity Identity
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("content %s not found: no managed identity and no bundled fallback", e.Identity)
}

// NotPublishedError reports an identity that exists in the managed
// store but has nothing servable. Remediation is publishing a revision.
type NotPublishedError struct {
	Identity Identity
}

func (e *NotPublishedError) Error() string {
	return fmt.Sprintf("content %s exists but has no published revision and no bundled fallback", e.Identity)
}

// attempt runs one managed-store lookup, converting infrastructure
// errors into a logged miss so the precedence chain keeps going. The
// same policy applies at every step: an unavailable CMS degrades to the
// next source, it never fails the request.
func attempt[T any](step string, ident Identity, fn func() (T, error)) (T, bool) {
	v, err := fn()
	if err != nil {
		log.Printf("resolver: %s lookup for %s failed, treating as miss: %v", step, ident, err)
		var zero T
		return zero, false
	}
	return v, true
}

// ResolveQuestionSet resolves the question set for an identity.
func (r *Resolver) ResolveQuestionSet(ctx context.Context, ident Identity, opts Options) (*Resolution, error) {
	ident.Kind = content.KindQuestionSet
	ident.LevelID = ""
	decode := func(raw []byte) (content.Document, bool) {
		doc, res := content.DecodeQuestionSet(raw)
		if !res.OK {
			log.Printf("resolver: stored question set for %s failed validation: %v", ident, res.Errors)
			return nil, false
		}
		if doc.AssessmentType != ident.AssessmentType || doc.Version != ident.Version {
			log.Printf("resolver: stored question set identity mismatch for %s: embedded (%s, %s)",
				ident, doc.AssessmentType, doc.Version)
			return nil, false
		}
		return doc, true
	}
	loadFile := func() (content.Document, error) {
		doc := r.files.QuestionSet(ident.AssessmentType, ident.Version)
		if doc == nil {
			return nil, nil
		}
		return doc, nil
	}
	return r.resolve(ctx, ident, opts, decode, loadFile)
}

// ResolveResultsPack resolves the results pack for an identity. An
// unrecognized level id is a hard error, distinct from absence.
func (r *Resolver) ResolveResultsPack(ctx context.Context, ident Identity, opts Options) (*Resolution, error) {
	ident.Kind = content.KindResultsPack
	decode := func(raw []byte) (content.Document, bool) {
		doc, res := content.DecodeResultsPack(raw)
		if !res.OK {
			log.Printf("resolver: stored results pack for %s failed validation: %v", ident, res.Errors)
			return nil, false
		}
		if doc.AssessmentType != ident.AssessmentType || doc.Version != ident.Version || doc.LevelID != ident.LevelID {
			log.Printf("resolver: stored results pack identity mismatch for %s: embedded (%s, %s, %s)",
				ident, doc.AssessmentType, doc.Version, doc.LevelID)
			return nil, false
		}
		return doc, true
	}
	loadFile := func() (content.Document, error) {
		doc, err := r.files.ResultsPack(ident.AssessmentType, ident.Version, ident.LevelID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, nil
		}
		return doc, nil
	}
	return r.resolve(ctx, ident, opts, decode, loadFile)
}

// resolve is the shared four-step precedence chain. Steps run strictly
// in order and stop at the first hit.
func (r *Resolver) resolve(
	ctx context.Context,
	ident Identity,
	opts Options,
	decode func(raw []byte) (content.Document, bool),
	loadFile func() (content.Document, error),
) (*Resolution, error) {
	// Step 1: pinned revision. The supplied ref is reused unchanged so a
	// pinned resolution stays reproducible across later pointer moves.
	if pin := opts.Pinned; pin != nil && pin.Source == SourceCMS && pin.RevisionID != "" {
		rev, ok := attempt("pinned revision", ident, func() (*store.ContentRevision, error) {
			return r.store.GetRevision(ctx, pin.RevisionID)
		})
		if ok && rev != nil {
			if doc, ok := decode(rev.ContentJSON); ok {
				return &Resolution{
					Document:      doc,
					Source:        SourceCMS,
					ContentHash:   rev.ContentHash,
					SchemaVersion: rev.SchemaVersion,
					Ref:           pin,
				}, nil
			}
		}
	}

	// Shared managed-store lookup for steps 2 and 3: identity row, then
	// pointer row.
	identityRow, _ := attempt("identity", ident, func() (*store.ContentIdentity, error) {
		return r.store.GetIdentity(ctx, store.IdentityKey{
			ContentType:    string(ident.Kind),
			AssessmentType: ident.AssessmentType,
			Version:        ident.Version,
			LevelID:        optional(ident.LevelID),
			Locale:         optional(ident.Locale),
		})
	})
	var pointer *store.ContentPointer
	if identityRow != nil {
		pointer, _ = attempt("pointer", ident, func() (*store.ContentPointer, error) {
			return r.store.GetPointer(ctx, identityRow.ID)
		})
	}

	// Step 2: preview, gated to authorized roles. A null preview slot is
	// an ordinary miss that falls through to published.
	if opts.Preview && rbac.CanPreview(opts.Role) && pointer != nil && pointer.PreviewRevisionID != nil {
		if res := r.followPointer(ctx, ident, *pointer.PreviewRevisionID, decode); res != nil {
			res.IsPreview = true
			return res, nil
		}
	}

	// Step 3: published.
	if pointer != nil && pointer.PublishedRevisionID != nil {
		if res := r.followPointer(ctx, ident, *pointer.PublishedRevisionID, decode); res != nil {
			publishedAt := pointer.UpdatedAt
			res.PublishedAt = &publishedAt
			return res, nil
		}
	}

	// A pointer row whose published slot is null means the identity is
	// configured but empty. That state is reported as-is and must not be
	// papered over by the file fallback.
	if pointer != nil && pointer.PublishedRevisionID == nil {
		return &Resolution{Source: SourceCMSEmpty}, nil
	}

	// Step 4: bundled file fallback.
	doc, err := loadFile()
	if err != nil {
		return nil, err
	}
	if doc != nil {
		hash, hashErr := content.Hash(doc)
		if hashErr != nil {
			log.Printf("resolver: hashing bundled document for %s: %v", ident, hashErr)
		}
		return &Resolution{
			Document:    doc,
			Source:      SourceFile,
			ContentHash: hash,
			Ref:         ident.newRef(SourceFile, "", hash),
		}, nil
	}

	if identityRow != nil {
		return nil, &NotPublishedError{Identity: ident}
	}
	return nil, &NotFoundError{Identity: ident}
}

// followPointer fetches and decodes one pointed-at revision, minting a
// fresh ref. Returns nil on any miss.
func (r *Resolver) followPointer(
	ctx context.Context,
	ident Identity,
	revisionID string,
	decode func(raw []byte) (content.Document, bool),
) *Resolution {
	rev, ok := attempt("revision", ident, func() (*store.ContentRevision, error) {
		return r.store.GetRevision(ctx, revisionID)
	})
	if !ok || rev == nil {
		return nil
	}
	doc, ok := decode(rev.ContentJSON)
	if !ok {
		return nil
	}
	return &Resolution{
		Document:      doc,
		Source:        SourceCMS,
		ContentHash:   rev.ContentHash,
		SchemaVersion: rev.SchemaVersion,
		Ref:           ident.newRef(SourceCMS, rev.ID, rev.ContentHash),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
