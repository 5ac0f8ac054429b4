package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"gutcheck/api/internal/archive"
	"gutcheck/api/internal/auth"
	"gutcheck/api/internal/authpw"
	"gutcheck/api/internal/bundle"
	"gutcheck/api/internal/config"
	"gutcheck/api/internal/content"
	"gutcheck/api/internal/csvimport"
	"gutcheck/api/internal/export"
	"gutcheck/api/internal/rbac"
	"gutcheck/api/internal/resolver"
	"gutcheck/api/internal/search"
	"gutcheck/api/internal/session"
	"gutcheck/api/internal/store"
	"gutcheck/api/internal/util"

	"github.com/google/uuid"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

type dataStore interface {
	GetIdentity(ctx context.Context, key store.IdentityKey) (*store.ContentIdentity, error)
	GetIdentityByID(ctx context.Context, identityID string) (*store.ContentIdentity, error)
	EnsureIdentity(ctx context.Context, id string, key store.IdentityKey) (store.ContentIdentity, error)
	GetPointer(ctx context.Context, identityID string) (*store.ContentPointer, error)
	GetRevision(ctx context.Context, revisionID string) (*store.ContentRevision, error)
	InsertRevision(ctx context.Context, rev store.ContentRevision) (store.ContentRevision, error)
	SetPublishedRevision(ctx context.Context, identityID, revisionID string) error
	SetPreviewRevision(ctx context.Context, identityID string, revisionID *string) error
	ListRevisions(ctx context.Context, identityID string, limit int) ([]store.ContentRevision, error)
	Ping(ctx context.Context) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	resolver *resolver.Resolver
	files    *bundle.Loader
	accounts *authpw.Service
	pins     *session.PinStore
	search   *search.Service
	archive  *archive.Service
}

// New wires the service against production dependencies. pins, search
// and archive may be nil when the corresponding backend is not
// configured; every caller nil-guards.
func New(
	cfg config.Config,
	st *store.PostgresStore,
	files *bundle.Loader,
	pins *session.PinStore,
	searchSvc *search.Service,
	archiveSvc *archive.Service,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    st,
		resolver: resolver.New(st, files),
		files:    files,
		accounts: authpw.NewService(st),
		pins:     pins,
		search:   searchSvc,
		archive:  archiveSvc,
	}
}

// Bootstrap seeds the managed identities for every bundled slot, the
// configured admin account, and the search index. Safe to run on every
// startup.
func (s *Service) Bootstrap(ctx context.Context) error {
	seeds := []store.IdentityKey{
		{ContentType: string(content.KindQuestionSet), AssessmentType: "gut-check", Version: "v2"},
	}
	for _, level := range []string{"level1", "level2", "level3", "level4"} {
		seeds = append(seeds, store.IdentityKey{
			ContentType:    string(content.KindResultsPack),
			AssessmentType: "gut-check",
			Version:        "v2",
			LevelID:        &level,
		})
	}
	for _, key := range seeds {
		if _, err := s.store.EnsureIdentity(ctx, uuid.NewString(), key); err != nil {
			return fmt.Errorf("seed identity %s/%s: %w", key.ContentType, key.AssessmentType, err)
		}
	}

	if s.cfg.AdminEmail != "" && s.cfg.AdminPassword != "" {
		if _, err := s.accounts.SignUp(ctx, authpw.SignUpRequest{
			Email:       s.cfg.AdminEmail,
			Password:    s.cfg.AdminPassword,
			DisplayName: "Admin",
			Role:        string(rbac.RoleAdmin),
		}); err != nil && !errors.Is(err, authpw.ErrEmailTaken) {
			log.Printf("app: bootstrap admin account: %v", err)
		}
	}

	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PinsEnabled() bool {
	return s.pins != nil
}

func (s *Service) PingPins(ctx context.Context) error {
	if s.pins == nil {
		return nil
	}
	return s.pins.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// --- Accounts and sessions ---

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	// Roles are never self-assigned.
	req.Role = ""
	user, err := s.accounts.SignUp(ctx, req)
	if err != nil {
		return Session{}, domainError(http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
	}
	return s.issueSession(user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.accounts.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(user)
}

func (s *Service) ChangePassword(ctx context.Context, sess Session, current, next string) error {
	if err := s.accounts.ChangePassword(ctx, sess.UserID, current, next); err != nil {
		return domainError(http.StatusBadRequest, "PASSWORD_CHANGE_FAILED", err.Error(), nil)
	}
	return nil
}

func (s *Service) issueSession(user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.TokenTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

// SessionFromToken rebuilds a session from a bearer token. Tokens are
// self-contained: no store lookup happens on the request path.
func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      claims.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// --- Content resolution ---

// ContentQuery is one public content request. VisitorID keys the
// session pin; empty disables pinning for the request.
type ContentQuery struct {
	AssessmentType string
	Version        string
	LevelID        string
	Locale         string
	Preview        bool
	Role           rbac.Role
	VisitorID      string
}

// ContentPayload is the HTTP-facing shape of a resolution. Document is
// null exactly when Source is cms_empty.
type ContentPayload struct {
	Source        resolver.Source  `json:"source"`
	Document      content.Document `json:"document"`
	ContentHash   string           `json:"contentHash,omitempty"`
	SchemaVersion string           `json:"schemaVersion,omitempty"`
	PublishedAt   *time.Time       `json:"publishedAt,omitempty"`
	IsPreview     bool             `json:"isPreview,omitempty"`
	Ref           *resolver.Ref    `json:"ref,omitempty"`
}

func (s *Service) QuestionSet(ctx context.Context, q ContentQuery) (*ContentPayload, error) {
	ident := resolver.Identity{
		Kind:           content.KindQuestionSet,
		AssessmentType: q.AssessmentType,
		Version:        q.Version,
		Locale:         q.Locale,
	}
	return s.resolveContent(ctx, ident, q, s.resolver.ResolveQuestionSet)
}

func (s *Service) ResultsPack(ctx context.Context, q ContentQuery) (*ContentPayload, error) {
	level, err := s.files.NormalizeLevelID(q.LevelID)
	if err != nil {
		return nil, validationError(err.Error(), nil)
	}
	ident := resolver.Identity{
		Kind:           content.KindResultsPack,
		AssessmentType: q.AssessmentType,
		Version:        q.Version,
		LevelID:        level,
		Locale:         q.Locale,
	}
	return s.resolveContent(ctx, ident, q, s.resolver.ResolveResultsPack)
}

func (s *Service) resolveContent(
	ctx context.Context,
	ident resolver.Identity,
	q ContentQuery,
	resolve func(context.Context, resolver.Identity, resolver.Options) (*resolver.Resolution, error),
) (*ContentPayload, error) {
	opts := resolver.Options{Preview: q.Preview, Role: q.Role}
	slot := session.Slot(ident)

	pinnable := s.pins != nil && q.VisitorID != "" && !q.Preview
	if pinnable {
		ref, err := s.pins.Get(ctx, q.VisitorID, slot)
		if err != nil {
			log.Printf("app: pin lookup for %s failed: %v", slot, err)
		} else {
			opts.Pinned = ref
		}
	}

	res, err := resolve(ctx, ident, opts)
	if err != nil {
		return nil, mapResolveError(err)
	}

	// Pin CMS resolutions so a visitor mid-assessment keeps seeing the
	// revision they started with, and refresh a pin whose revision is no
	// longer servable.
	if pinnable && res.Ref != nil && res.Ref.Source == resolver.SourceCMS && !res.IsPreview {
		if opts.Pinned == nil || opts.Pinned.RevisionID != res.Ref.RevisionID {
			if err := s.pins.Save(ctx, q.VisitorID, slot, res.Ref); err != nil {
				log.Printf("app: pin save for %s failed: %v", slot, err)
			}
		}
	}

	return &ContentPayload{
		Source:        res.Source,
		Document:      res.Document,
		ContentHash:   res.ContentHash,
		SchemaVersion: res.SchemaVersion,
		PublishedAt:   res.PublishedAt,
		IsPreview:     res.IsPreview,
		Ref:           res.Ref,
	}, nil
}

// ClearPin drops a visitor's pin for one content slot.
func (s *Service) ClearPin(ctx context.Context, visitorID string, ident resolver.Identity) error {
	if s.pins == nil || visitorID == "" {
		return nil
	}
	if ident.Kind == content.KindResultsPack && ident.LevelID != "" {
		level, err := s.files.NormalizeLevelID(ident.LevelID)
		if err != nil {
			return validationError(err.Error(), nil)
		}
		ident.LevelID = level
	}
	return s.pins.Clear(ctx, visitorID, session.Slot(ident))
}

func mapResolveError(err error) error {
	var notFound *resolver.NotFoundError
	if errors.As(err, &notFound) {
		return domainError(http.StatusNotFound, "CONTENT_NOT_FOUND", notFound.Error(), nil)
	}
	var notPublished *resolver.NotPublishedError
	if errors.As(err, &notPublished) {
		return domainError(http.StatusNotFound, "CONTENT_NOT_PUBLISHED", notPublished.Error(), nil)
	}
	if errors.Is(err, bundle.ErrUnknownLevel) {
		return validationError(err.Error(), nil)
	}
	return err
}

// --- Admin write path ---

// RevisionInput is the admin payload for creating a draft revision.
type RevisionInput struct {
	ContentType    string          `json:"contentType"`
	AssessmentType string          `json:"assessmentType"`
	Version        string          `json:"version"`
	LevelID        string          `json:"levelId,omitempty"`
	Locale         string          `json:"locale,omitempty"`
	Content        json.RawMessage `json:"content"`
	ChangeSummary  string          `json:"changeSummary"`
}

// CreateRevision validates the document, appends it as a draft revision
// for its identity (creating the identity on first write), and indexes
// it for admin search. Structural errors reject the write; warnings are
// returned alongside the created revision.
func (s *Service) CreateRevision(ctx context.Context, sess Session, input RevisionInput) (map[string]any, error) {
	kind := content.Kind(input.ContentType)
	var res content.Result
	switch kind {
	case content.KindQuestionSet:
		if input.LevelID != "" {
			return nil, validationError("levelId is not valid for question sets", nil)
		}
		doc, decoded := content.DecodeQuestionSet(input.Content)
		res = decoded
		if res.OK && (doc.AssessmentType != input.AssessmentType || doc.Version != input.Version) {
			return nil, validationError(
				fmt.Sprintf("document identity (%s, %s) does not match target (%s, %s)",
					doc.AssessmentType, doc.Version, input.AssessmentType, input.Version), nil)
		}
	case content.KindResultsPack:
		level, err := s.files.NormalizeLevelID(input.LevelID)
		if err != nil {
			return nil, validationError(err.Error(), nil)
		}
		input.LevelID = level
		doc, decoded := content.DecodeResultsPack(input.Content)
		res = decoded
		if res.OK && (doc.AssessmentType != input.AssessmentType || doc.Version != input.Version || doc.LevelID != input.LevelID) {
			return nil, validationError(
				fmt.Sprintf("document identity (%s, %s, %s) does not match target (%s, %s, %s)",
					doc.AssessmentType, doc.Version, doc.LevelID,
					input.AssessmentType, input.Version, input.LevelID), nil)
		}
	default:
		return nil, validationError(fmt.Sprintf("unknown content type %q", input.ContentType), nil)
	}
	if !res.OK {
		return nil, validationError("document failed validation", map[string]any{
			"errors":   res.Errors,
			"warnings": res.Warnings,
		})
	}

	hash, err := hashRaw(input.Content)
	if err != nil {
		return nil, validationError("content is not valid JSON", nil)
	}

	ident, err := s.store.EnsureIdentity(ctx, uuid.NewString(), store.IdentityKey{
		ContentType:    string(kind),
		AssessmentType: input.AssessmentType,
		Version:        input.Version,
		LevelID:        optional(input.LevelID),
		Locale:         optional(input.Locale),
	})
	if err != nil {
		return nil, err
	}

	rev, err := s.store.InsertRevision(ctx, store.ContentRevision{
		ID:            uuid.NewString(),
		IdentityID:    ident.ID,
		ContentJSON:   input.Content,
		ContentHash:   hash,
		SchemaVersion: input.Version,
		Status:        store.RevisionStatusDraft,
		ChangeSummary: input.ChangeSummary,
		CreatedBy:     sess.UserName,
	})
	if err != nil {
		return nil, err
	}

	s.indexRevision(rev, ident)

	return map[string]any{
		"revision": revisionPayload(rev),
		"identity": identityPayload(ident),
		"warnings": res.Warnings,
	}, nil
}

// Publish points the identity's published slot at a revision and
// records the canonical JSON in the publish archive.
func (s *Service) Publish(ctx context.Context, sess Session, revisionID string) (map[string]any, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if rev == nil {
		return nil, notFoundError("revision not found")
	}
	ident, err := s.store.GetIdentityByID(ctx, rev.IdentityID)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, notFoundError("revision identity not found")
	}

	if err := s.store.SetPublishedRevision(ctx, ident.ID, rev.ID); err != nil {
		return nil, err
	}
	rev.Status = store.RevisionStatusPublished

	if s.archive != nil {
		canonical, canonErr := canonicalRaw(rev.ContentJSON)
		if canonErr != nil {
			log.Printf("app: canonicalizing revision %s for archive: %v", rev.ID, canonErr)
			canonical = rev.ContentJSON
		}
		message := fmt.Sprintf("Publish revision %d", rev.RevisionNumber)
		if rev.ChangeSummary != "" {
			message += ": " + rev.ChangeSummary
		}
		if _, err := s.archive.RecordPublish(identitySlot(*ident), canonical, sess.UserName, message); err != nil {
			log.Printf("app: archive publish of revision %s failed: %v", rev.ID, err)
		}
	}

	s.indexRevision(*rev, *ident)

	return map[string]any{
		"revision": revisionPayload(*rev),
		"identity": identityPayload(*ident),
	}, nil
}

// PreviewInput names an identity and the revision its preview slot
// should point at; a nil RevisionID clears the slot.
type PreviewInput struct {
	ContentType    string  `json:"contentType"`
	AssessmentType string  `json:"assessmentType"`
	Version        string  `json:"version"`
	LevelID        string  `json:"levelId,omitempty"`
	Locale         string  `json:"locale,omitempty"`
	RevisionID     *string `json:"revisionId"`
}

func (s *Service) SetPreview(ctx context.Context, input PreviewInput) (map[string]any, error) {
	ident, err := s.lookupIdentity(ctx, input.ContentType, input.AssessmentType, input.Version, input.LevelID, input.Locale)
	if err != nil {
		return nil, err
	}

	if input.RevisionID != nil {
		rev, err := s.store.GetRevision(ctx, *input.RevisionID)
		if err != nil {
			return nil, err
		}
		if rev == nil {
			return nil, notFoundError("revision not found")
		}
		if rev.IdentityID != ident.ID {
			return nil, validationError("revision belongs to a different identity", nil)
		}
	}

	if err := s.store.SetPreviewRevision(ctx, ident.ID, input.RevisionID); err != nil {
		return nil, err
	}
	return map[string]any{
		"identity":          identityPayload(*ident),
		"previewRevisionId": input.RevisionID,
	}, nil
}

// History returns an identity's revisions (newest first), its pointer
// state, and the git publish history.
func (s *Service) History(ctx context.Context, contentType, assessmentType, version, levelID, locale string, limit int) (map[string]any, error) {
	ident, err := s.lookupIdentity(ctx, contentType, assessmentType, version, levelID, locale)
	if err != nil {
		return nil, err
	}

	revisions, err := s.store.ListRevisions(ctx, ident.ID, limit)
	if err != nil {
		return nil, err
	}
	pointer, err := s.store.GetPointer(ctx, ident.ID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(revisions))
	for _, rev := range revisions {
		items = append(items, revisionPayload(rev))
	}

	payload := map[string]any{
		"identity":  identityPayload(*ident),
		"revisions": items,
		"pointer":   pointerPayload(pointer),
	}

	if s.archive != nil {
		commits, err := s.archive.History(identitySlot(*ident), limit)
		if err != nil {
			log.Printf("app: archive history for %s failed: %v", ident.ID, err)
		} else {
			payload["publishLog"] = commits
		}
	}
	return payload, nil
}

// --- CSV import / export ---

// ImportInput carries the four CSV files of a question set import plus
// the create parameters used when DryRun is false.
type ImportInput struct {
	Meta          string `json:"meta"`
	Sections      string `json:"sections"`
	Questions     string `json:"questions"`
	Options       string `json:"options"`
	ChangeSummary string `json:"changeSummary"`
	DryRun        bool   `json:"dryRun"`
}

// ImportQuestionSetCSV parses and builds a question set from CSV. All
// problems across all four files are reported in one pass. A dry run
// returns the built document; otherwise a draft revision is created.
func (s *Service) ImportQuestionSetCSV(ctx context.Context, sess Session, input ImportInput) (map[string]any, error) {
	var all []csvimport.Error
	parsed := make(map[string][]csvimport.Row, 4)
	for file, data := range map[string]string{
		"meta":      input.Meta,
		"sections":  input.Sections,
		"questions": input.Questions,
		"options":   input.Options,
	} {
		rows, errs := csvimport.Parse(file, data)
		all = append(all, errs...)
		parsed[file] = rows
	}
	if len(all) > 0 {
		return nil, validationError("import failed", map[string]any{"errors": all})
	}

	doc, errs := csvimport.Build(parsed["meta"], parsed["sections"], parsed["questions"], parsed["options"])
	if len(errs) > 0 {
		return nil, validationError("import failed", map[string]any{"errors": errs})
	}

	if input.DryRun {
		return map[string]any{"document": doc, "dryRun": true}, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal imported document: %w", err)
	}
	return s.CreateRevision(ctx, sess, RevisionInput{
		ContentType:    string(content.KindQuestionSet),
		AssessmentType: doc.AssessmentType,
		Version:        doc.Version,
		Content:        raw,
		ChangeSummary:  input.ChangeSummary,
	})
}

// ExportQuestionSetCSV resolves the current question set (honoring
// preview for authorized roles) and renders it as a CSV bundle.
func (s *Service) ExportQuestionSetCSV(ctx context.Context, q ContentQuery) (*export.Result, error) {
	payload, err := s.QuestionSet(ctx, q)
	if err != nil {
		return nil, err
	}
	doc, ok := payload.Document.(*content.QuestionSetDocument)
	if !ok || doc == nil {
		return nil, notFoundError("no question set document to export")
	}
	return export.QuestionSetCSV(doc)
}

// --- Search ---

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// --- helpers ---

func (s *Service) lookupIdentity(ctx context.Context, contentType, assessmentType, version, levelID, locale string) (*store.ContentIdentity, error) {
	if content.Kind(contentType) == content.KindResultsPack {
		level, err := s.files.NormalizeLevelID(levelID)
		if err != nil {
			return nil, validationError(err.Error(), nil)
		}
		levelID = level
	}
	ident, err := s.store.GetIdentity(ctx, store.IdentityKey{
		ContentType:    contentType,
		AssessmentType: assessmentType,
		Version:        version,
		LevelID:        optional(levelID),
		Locale:         optional(locale),
	})
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, notFoundError("content identity not found")
	}
	return ident, nil
}

func (s *Service) indexRevision(rev store.ContentRevision, ident store.ContentIdentity) {
	if s.search == nil {
		return
	}
	s.search.IndexRevision(search.RevisionRecord{
		ID:             rev.ID,
		IdentityID:     ident.ID,
		ContentType:    ident.ContentType,
		AssessmentType: ident.AssessmentType,
		Version:        ident.Version,
		LevelID:        deref(ident.LevelID),
		Locale:         deref(ident.Locale),
		Status:         rev.Status,
		ChangeSummary:  rev.ChangeSummary,
		Body:           search.ExtractText(content.Kind(ident.ContentType), rev.ContentJSON),
		RevisionNumber: rev.RevisionNumber,
	})
}

func identitySlot(ident store.ContentIdentity) string {
	return session.Slot(resolver.Identity{
		Kind:           content.Kind(ident.ContentType),
		AssessmentType: ident.AssessmentType,
		Version:        ident.Version,
		LevelID:        deref(ident.LevelID),
		Locale:         deref(ident.Locale),
	})
}

func revisionPayload(rev store.ContentRevision) map[string]any {
	return map[string]any{
		"id":             rev.ID,
		"identityId":     rev.IdentityID,
		"revisionNumber": rev.RevisionNumber,
		"contentHash":    rev.ContentHash,
		"schemaVersion":  rev.SchemaVersion,
		"status":         rev.Status,
		"changeSummary":  rev.ChangeSummary,
		"createdBy":      rev.CreatedBy,
		"createdAt":      rev.CreatedAt,
	}
}

func identityPayload(ident store.ContentIdentity) map[string]any {
	return map[string]any{
		"id":             ident.ID,
		"contentType":    ident.ContentType,
		"assessmentType": ident.AssessmentType,
		"version":        ident.Version,
		"levelId":        ident.LevelID,
		"locale":         ident.Locale,
	}
}

func pointerPayload(pointer *store.ContentPointer) map[string]any {
	if pointer == nil {
		return nil
	}
	return map[string]any{
		"previewRevisionId":   pointer.PreviewRevisionID,
		"publishedRevisionId": pointer.PublishedRevisionID,
		"updatedAt":           pointer.UpdatedAt,
	}
}

func hashRaw(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	return content.Hash(v)
}

func canonicalRaw(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return content.CanonicalJSON(v)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
