package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"gutcheck/api/internal/content"
)

// PgFTS implements revision search using PostgreSQL full-text search as
// a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries content_revisions joined to their identities using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	tsVector := "to_tsvector('english', coalesce(r.change_summary, '') || ' ' || r.content_json::text)"
	args := []any{q.Text}
	argN := 2

	where := tsVector + " @@ " + tsQuery
	if q.FilterContentType != "" {
		where += fmt.Sprintf(" AND i.content_type = $%d", argN)
		args = append(args, q.FilterContentType)
		argN++
	}
	if q.FilterStatus != "" {
		where += fmt.Sprintf(" AND r.status = $%d", argN)
		args = append(args, q.FilterStatus)
		argN++
	}

	baseSQL := fmt.Sprintf(`
		FROM content_revisions r
		JOIN content_identities i ON i.id = r.identity_id
		WHERE %s`, where)

	countSQL := "SELECT count(*) " + baseSQL

	dataSQL := fmt.Sprintf(`
		SELECT r.id, r.identity_id, i.content_type, i.assessment_type, i.version,
			coalesce(i.level_id, ''), coalesce(i.locale, ''), r.status,
			coalesce(r.change_summary, ''),
			ts_headline('english', coalesce(r.change_summary, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet
		%s
		ORDER BY ts_rank(%s, %s) DESC
		LIMIT %d OFFSET %d`,
		tsQuery, baseSQL, tsVector, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var summary string
		if err := rows.Scan(&r.ID, &r.IdentityID, &r.ContentType, &r.AssessmentType,
			&r.Version, &r.LevelID, &r.Locale, &r.Status, &summary, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Title = RevisionRecord{
			AssessmentType: r.AssessmentType,
			Version:        r.Version,
			LevelID:        r.LevelID,
			Locale:         r.Locale,
		}.Label()
		if strings.TrimSpace(r.Snippet) == "" {
			r.Snippet = summary
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every revision as an indexable record for full
// reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]RevisionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT r.id, r.identity_id, i.content_type, i.assessment_type, i.version,
			coalesce(i.level_id, ''), coalesce(i.locale, ''), r.status,
			coalesce(r.change_summary, ''), r.content_json, r.revision_number
		FROM content_revisions r
		JOIN content_identities i ON i.id = r.identity_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load revisions: %w", err)
	}
	defer rows.Close()

	records := make([]RevisionRecord, 0)
	for rows.Next() {
		var rec RevisionRecord
		var raw json.RawMessage
		if err := rows.Scan(&rec.ID, &rec.IdentityID, &rec.ContentType, &rec.AssessmentType,
			&rec.Version, &rec.LevelID, &rec.Locale, &rec.Status,
			&rec.ChangeSummary, &raw, &rec.RevisionNumber); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		rec.Body = ExtractText(content.Kind(rec.ContentType), raw)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}

	return records, nil
}
