package session

import (
	"context"
	"testing"
	"time"

	"gutcheck/api/internal/content"
	"gutcheck/api/internal/resolver"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*PinStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPinStoreWithClient(client, time.Hour), mr
}

func testRef() *resolver.Ref {
	return &resolver.Ref{
		Source:         resolver.SourceCMS,
		ContentType:    content.KindQuestionSet,
		AssessmentType: "gut-check",
		Version:        "v2",
		RevisionID:     "rev_123",
		ContentHash:    "abc123",
		ResolvedAt:     time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ident := resolver.Identity{Kind: content.KindQuestionSet, AssessmentType: "gut-check", Version: "v2"}
	slot := Slot(ident)

	if err := store.Save(ctx, "sess_1", slot, testRef()); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "sess_1", slot)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a saved ref")
	}
	if got.RevisionID != "rev_123" || got.ContentHash != "abc123" || got.Source != resolver.SourceCMS {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.ResolvedAt.Equal(testRef().ResolvedAt) {
		t.Fatalf("resolvedAt mismatch: %v", got.ResolvedAt)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)
	got, err := store.Get(context.Background(), "sess_none", "question_set:gut-check:v2")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for a missing pin, got %+v", got)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	slot := "question_set:gut-check:v2"

	if err := store.Save(ctx, "sess_a", slot, testRef()); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "sess_b", slot)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("pins must not leak across sessions")
	}
}

func TestClear(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	slot := "question_set:gut-check:v2"

	if err := store.Save(ctx, "sess_1", slot, testRef()); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(ctx, "sess_1", slot); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "sess_1", slot)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected pin to be cleared")
	}
}

func TestPinExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	slot := "question_set:gut-check:v2"

	if err := store.Save(ctx, "sess_1", slot, testRef()); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Hour)

	got, err := store.Get(ctx, "sess_1", slot)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected pin to expire with the session TTL")
	}
}

func TestSlotIncludesLevelAndLocale(t *testing.T) {
	ident := resolver.Identity{Kind: content.KindResultsPack, AssessmentType: "gut-check", Version: "v2", LevelID: "level3", Locale: "de"}
	if got := Slot(ident); got != "results_pack:gut-check:v2:level3:de" {
		t.Fatalf("unexpected slot %q", got)
	}
}
