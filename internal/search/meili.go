package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxRevisions = "gutcheck_revisions"

// Meili searches and indexes revisions via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}

	mu        sync.Mutex
	onRecover func()
}

// NewMeili creates a Meilisearch client and configures the revision
// index. An unreachable server is tolerated; the health loop picks it
// up when it comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxRevisions,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxRevisions, err)
	}

	index := m.client.Index(idxRevisions)
	filterable := []interface{}{"contentType", "status", "assessmentType", "version"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxRevisions, err)
	}
	searchable := []string{"changeSummary", "body", "assessmentType", "levelId"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxRevisions, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
				m.notifyRecovered()
			}
		}
	}
}

// SetOnRecover registers a callback fired whenever the health loop sees
// Meilisearch come back after an outage. Index writes attempted during
// the outage are dropped, so the callback's job is to replay them.
func (m *Meili) SetOnRecover(fn func()) {
	m.mu.Lock()
	m.onRecover = fn
	m.mu.Unlock()
}

func (m *Meili) notifyRecovered() {
	m.mu.Lock()
	fn := m.onRecover
	m.mu.Unlock()
	if fn != nil {
		go fn()
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the revision index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	sr := &meili.SearchRequest{
		IndexUID:              idxRevisions,
		Query:                 q.Text,
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"*"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
		ShowRankingScore:      true,
	}

	var filters []string
	if q.FilterContentType != "" {
		filters = append(filters, fmt.Sprintf("contentType = %q", q.FilterContentType))
	}
	if q.FilterStatus != "" {
		filters = append(filters, fmt.Sprintf("status = %q", q.FilterStatus))
	}
	if len(filters) > 0 {
		sr.Filter = filters
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	var results []Result
	total := 0
	for _, one := range resp.Results {
		total += int(one.EstimatedTotalHits)
		for _, hit := range one.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:             decodeString(hit, "id"),
		IdentityID:     decodeString(hit, "identityId"),
		ContentType:    decodeString(hit, "contentType"),
		AssessmentType: decodeString(hit, "assessmentType"),
		Version:        decodeString(hit, "version"),
		LevelID:        decodeString(hit, "levelId"),
		Locale:         decodeString(hit, "locale"),
		Status:         decodeString(hit, "status"),
	}
	record := RevisionRecord{
		AssessmentType: r.AssessmentType,
		Version:        r.Version,
		LevelID:        r.LevelID,
		Locale:         r.Locale,
	}
	r.Title = record.Label()
	r.Snippet = firstNonBlank(
		decodeFormattedString(hit, "changeSummary"),
		decodeFormattedString(hit, "body"),
		decodeString(hit, "changeSummary"),
	)
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexRevision adds or updates one revision in the search index.
func (m *Meili) IndexRevision(rec RevisionRecord) error {
	_, err := m.client.Index(idxRevisions).AddDocuments([]RevisionRecord{rec}, nil)
	return err
}

// IndexRevisions bulk-indexes revisions.
func (m *Meili) IndexRevisions(records []RevisionRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxRevisions).AddDocuments(records, nil)
	return err
}

// DeleteRevision removes a revision from the search index.
func (m *Meili) DeleteRevision(id string) error {
	_, err := m.client.Index(idxRevisions).DeleteDocument(id, nil)
	return err
}
