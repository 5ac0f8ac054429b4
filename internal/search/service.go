package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{meili: meili, pgfts: pgfts}
	if meili != nil && pgfts != nil {
		// Index writes are dropped while Meilisearch is down; replay the
		// whole index from Postgres when it comes back.
		meili.SetOnRecover(func() {
			s.ReindexAllFromPG(context.Background())
		})
	}
	return s
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexRevision indexes a revision (fire-and-forget to Meilisearch).
// During an outage the write is dropped; the recovery reindex set up in
// NewService replays it from Postgres.
func (s *Service) IndexRevision(rec RevisionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexRevision(rec); err != nil {
			log.Printf("search: index revision %s: %v", rec.ID, err)
		}
	}()
}

// DeleteRevision removes a revision from the search index (fire-and-forget).
func (s *Service) DeleteRevision(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteRevision(id); err != nil {
			log.Printf("search: delete revision %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reads every revision from PostgreSQL and pushes it to
// Meilisearch. Called during Bootstrap when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}
	if err := s.meili.IndexRevisions(records); err != nil {
		log.Printf("search: reindex revisions: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
