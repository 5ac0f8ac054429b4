package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestRecordPublishLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	first := []byte(`{"version":"v2","assessmentType":"gut-check","summary":"first cut"}`)
	commit, err := svc.RecordPublish("results_pack:gut-check:v2:level1", first, "Avery", "Publish revision 1")
	if err != nil {
		t.Fatalf("RecordPublish() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if _, err := os.Stat(filepath.Join(tempDir, "results_pack_gut-check_v2_level1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	second := []byte(`{"version":"v2","assessmentType":"gut-check","summary":"second cut"}`)
	if _, err := svc.RecordPublish("results_pack:gut-check:v2:level1", second, "Avery", "Publish revision 2"); err != nil {
		t.Fatalf("RecordPublish() second error = %v", err)
	}

	history, err := svc.History("results_pack:gut-check:v2:level1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(history))
	}
	if !strings.HasPrefix(history[0].Message, "Publish revision 2") {
		t.Fatalf("unexpected newest commit message: %q", history[0].Message)
	}

	raw, err := svc.ContentAt("results_pack:gut-check:v2:level1", commit.Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("archived content not JSON: %v", err)
	}
	if doc["summary"] != "first cut" {
		t.Fatalf("unexpected archived content: %v", doc)
	}
}

func TestHistoryUnpublishedSlot(t *testing.T) {
	svc := New(t.TempDir())
	history, err := svc.History("question_set:gut-check:v2", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(history))
	}
}

func TestRepublishSameContentStillCommits(t *testing.T) {
	svc := New(t.TempDir())
	payload := []byte(`{"version":"v2","assessmentType":"gut-check"}`)

	if _, err := svc.RecordPublish("question_set:gut-check:v2", payload, "Avery", "Publish"); err != nil {
		t.Fatalf("RecordPublish() error = %v", err)
	}
	if _, err := svc.RecordPublish("question_set:gut-check:v2", payload, "Avery", "Republish"); err != nil {
		t.Fatalf("RecordPublish() republish error = %v", err)
	}

	history, err := svc.History("question_set:gut-check:v2", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected republish to record a commit, got %d entries", len(history))
	}
}

func TestConcurrentPublishesSameSlot(t *testing.T) {
	svc := New(t.TempDir())

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			payload := fmt.Appendf(nil, `{"version":"v2","assessmentType":"gut-check","summary":"cut %02d"}`, idx)
			if _, err := svc.RecordPublish("question_set:gut-check:v2", payload, "Avery", fmt.Sprintf("Publish %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("RecordPublish() concurrent error = %v", err)
		}
	}

	history, err := svc.History("question_set:gut-check:v2", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers {
		t.Fatalf("expected %d commits, got %d", writers, len(history))
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"question_set:gut-check:v2":           "question_set_gut-check_v2",
		"results_pack:gut-check:v2:level1":    "results_pack_gut-check_v2_level1",
		"Results_Pack:Gut-Check:V2":           "results_pack_gut-check_v2",
		"results_pack:gut-check:v2:level1:en": "results_pack_gut-check_v2_level1_en",
		"":                                    "slot",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
