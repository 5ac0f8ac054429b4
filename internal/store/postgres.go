package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// IdentityKey is the lookup shape for a content identity. Nil LevelID
// and Locale match NULL columns, not empty strings.
type IdentityKey struct {
	ContentType    string
	AssessmentType string
	Version        string
	LevelID        *string
	Locale         *string
}

// GetIdentity resolves an identity row by exact match on its naming
// fields, with null-tests for absent level and locale. Returns nil when
// no identity exists; errors are reserved for infrastructure failures.
func (s *PostgresStore) GetIdentity(ctx context.Context, key IdentityKey) (*ContentIdentity, error) {
	const query = `
		SELECT id, content_type, assessment_type, version, level_id, locale, created_at
		FROM content_identities
		WHERE content_type = $1
			AND assessment_type = $2
			AND version = $3
			AND (($4::text IS NULL AND level_id IS NULL) OR level_id = $4::text)
			AND (($5::text IS NULL AND locale IS NULL) OR locale = $5::text)
	`
	var (
		ident  ContentIdentity
		level  sql.NullString
		locale sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, key.ContentType, key.AssessmentType, key.Version, key.LevelID, key.Locale).
		Scan(&ident.ID, &ident.ContentType, &ident.AssessmentType, &ident.Version, &level, &locale, &ident.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	ident.LevelID = nullableString(level)
	ident.Locale = nullableString(locale)
	return &ident, nil
}

// GetIdentityByID resolves an identity row by primary key. Returns nil
// when no identity exists.
func (s *PostgresStore) GetIdentityByID(ctx context.Context, identityID string) (*ContentIdentity, error) {
	const query = `
		SELECT id, content_type, assessment_type, version, level_id, locale, created_at
		FROM content_identities
		WHERE id = $1
	`
	var (
		ident  ContentIdentity
		level  sql.NullString
		locale sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, identityID).
		Scan(&ident.ID, &ident.ContentType, &ident.AssessmentType, &ident.Version, &level, &locale, &ident.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup identity by id: %w", err)
	}
	ident.LevelID = nullableString(level)
	ident.Locale = nullableString(locale)
	return &ident, nil
}

// EnsureIdentity creates the identity row if it does not exist yet and
// returns it either way. Used by the admin scaffold path.
func (s *PostgresStore) EnsureIdentity(ctx context.Context, id string, key IdentityKey) (ContentIdentity, error) {
	existing, err := s.GetIdentity(ctx, key)
	if err != nil {
		return ContentIdentity{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	const insert = `
		INSERT INTO content_identities (id, content_type, assessment_type, version, level_id, locale)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, content_type, assessment_type, version, level_id, locale, created_at
	`
	var (
		ident  ContentIdentity
		level  sql.NullString
		locale sql.NullString
	)
	err = s.db.QueryRowContext(ctx, insert, id, key.ContentType, key.AssessmentType, key.Version, key.LevelID, key.Locale).
		Scan(&ident.ID, &ident.ContentType, &ident.AssessmentType, &ident.Version, &level, &locale, &ident.CreatedAt)
	if err != nil {
		return ContentIdentity{}, fmt.Errorf("insert identity: %w", err)
	}
	ident.LevelID = nullableString(level)
	ident.Locale = nullableString(locale)
	return ident, nil
}

// GetPointer returns the pointer row for an identity, or nil when the
// identity has never had a pointer created. A row with both revision
// ids null is returned as-is; callers distinguish empty from absent.
func (s *PostgresStore) GetPointer(ctx context.Context, identityID string) (*ContentPointer, error) {
	const query = `
		SELECT identity_id, preview_revision_id, published_revision_id, updated_at
		FROM content_pointers
		WHERE identity_id = $1
	`
	var (
		ptr       ContentPointer
		preview   sql.NullString
		published sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, identityID).Scan(&ptr.IdentityID, &preview, &published, &ptr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup pointer: %w", err)
	}
	ptr.PreviewRevisionID = nullableString(preview)
	ptr.PublishedRevisionID = nullableString(published)
	return &ptr, nil
}

// GetRevision fetches a revision by id. Returns nil when absent.
func (s *PostgresStore) GetRevision(ctx context.Context, revisionID string) (*ContentRevision, error) {
	const query = `
		SELECT id, identity_id, revision_number, content_json, content_hash,
			schema_version, status, change_summary, created_by, created_at
		FROM content_revisions
		WHERE id = $1
	`
	var rev ContentRevision
	err := s.db.QueryRowContext(ctx, query, revisionID).Scan(
		&rev.ID, &rev.IdentityID, &rev.RevisionNumber, &rev.ContentJSON, &rev.ContentHash,
		&rev.SchemaVersion, &rev.Status, &rev.ChangeSummary, &rev.CreatedBy, &rev.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup revision: %w", err)
	}
	return &rev, nil
}

// InsertRevision appends a new revision for an identity, assigning the
// next revision number inside a transaction, and ensures the identity
// has a pointer row (possibly with both ids null).
func (s *PostgresStore) InsertRevision(ctx context.Context, rev ContentRevision) (ContentRevision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ContentRevision{}, fmt.Errorf("begin revision tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(revision_number), 0) + 1
		FROM content_revisions
		WHERE identity_id = $1
	`, rev.IdentityID).Scan(&rev.RevisionNumber); err != nil {
		return ContentRevision{}, fmt.Errorf("next revision number: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO content_revisions
			(id, identity_id, revision_number, content_json, content_hash, schema_version, status, change_summary, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, rev.ID, rev.IdentityID, rev.RevisionNumber, rev.ContentJSON, rev.ContentHash,
		rev.SchemaVersion, rev.Status, rev.ChangeSummary, rev.CreatedBy).Scan(&rev.CreatedAt)
	if err != nil {
		return ContentRevision{}, fmt.Errorf("insert revision: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO content_pointers (identity_id)
		VALUES ($1)
		ON CONFLICT (identity_id) DO NOTHING
	`, rev.IdentityID); err != nil {
		return ContentRevision{}, fmt.Errorf("ensure pointer row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ContentRevision{}, fmt.Errorf("commit revision tx: %w", err)
	}
	return rev, nil
}

// SetPublishedRevision points the identity's published slot at a
// revision and flips that revision's status to published.
func (s *PostgresStore) SetPublishedRevision(ctx context.Context, identityID, revisionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO content_pointers (identity_id, published_revision_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (identity_id) DO UPDATE SET published_revision_id = EXCLUDED.published_revision_id, updated_at = NOW()
	`, identityID, revisionID); err != nil {
		return fmt.Errorf("set published pointer: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE content_revisions SET status = $1 WHERE id = $2 AND identity_id = $3
	`, RevisionStatusPublished, revisionID, identityID); err != nil {
		return fmt.Errorf("mark revision published: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish tx: %w", err)
	}
	return nil
}

// SetPreviewRevision points the identity's preview slot at a revision,
// or clears it when revisionID is nil.
func (s *PostgresStore) SetPreviewRevision(ctx context.Context, identityID string, revisionID *string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_pointers (identity_id, preview_revision_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (identity_id) DO UPDATE SET preview_revision_id = EXCLUDED.preview_revision_id, updated_at = NOW()
	`, identityID, revisionID)
	if err != nil {
		return fmt.Errorf("set preview pointer: %w", err)
	}
	return nil
}

// ListRevisions returns an identity's revisions, newest first.
func (s *PostgresStore) ListRevisions(ctx context.Context, identityID string, limit int) ([]ContentRevision, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity_id, revision_number, content_json, content_hash,
			schema_version, status, change_summary, created_by, created_at
		FROM content_revisions
		WHERE identity_id = $1
		ORDER BY revision_number DESC
		LIMIT $2
	`, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	items := make([]ContentRevision, 0)
	for rows.Next() {
		var rev ContentRevision
		if err := rows.Scan(&rev.ID, &rev.IdentityID, &rev.RevisionNumber, &rev.ContentJSON, &rev.ContentHash,
			&rev.SchemaVersion, &rev.Status, &rev.ChangeSummary, &rev.CreatedBy, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		items = append(items, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return items, nil
}

// RevisionIndexRow joins a revision with its identity fields for the
// search indexer.
type RevisionIndexRow struct {
	Revision ContentRevision
	Identity ContentIdentity
}

// ListRevisionsForIndex loads every revision joined with its identity,
// newest first, for search reindexing.
func (s *PostgresStore) ListRevisionsForIndex(ctx context.Context) ([]RevisionIndexRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.identity_id, r.revision_number, r.content_json, r.content_hash,
			r.schema_version, r.status, r.change_summary, r.created_by, r.created_at,
			i.id, i.content_type, i.assessment_type, i.version, i.level_id, i.locale, i.created_at
		FROM content_revisions r
		JOIN content_identities i ON i.id = r.identity_id
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list revisions for index: %w", err)
	}
	defer rows.Close()

	items := make([]RevisionIndexRow, 0)
	for rows.Next() {
		var (
			row    RevisionIndexRow
			level  sql.NullString
			locale sql.NullString
		)
		if err := rows.Scan(
			&row.Revision.ID, &row.Revision.IdentityID, &row.Revision.RevisionNumber, &row.Revision.ContentJSON,
			&row.Revision.ContentHash, &row.Revision.SchemaVersion, &row.Revision.Status, &row.Revision.ChangeSummary,
			&row.Revision.CreatedBy, &row.Revision.CreatedAt,
			&row.Identity.ID, &row.Identity.ContentType, &row.Identity.AssessmentType, &row.Identity.Version,
			&level, &locale, &row.Identity.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan revision index row: %w", err)
		}
		row.Identity.LevelID = nullableString(level)
		row.Identity.Locale = nullableString(locale)
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revision index rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2
	`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
