package content

import (
	"encoding/json"
	"testing"
)

func TestHashIgnoresKeyOrder(t *testing.T) {
	var a, b any
	if err := json.Unmarshal([]byte(`{"version":"v2","sections":[{"id":"s1","title":"T"}]}`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"sections":[{"title":"T","id":"s1"}],"version":"v2"}`), &b); err != nil {
		t.Fatal(err)
	}

	ha, err := Hash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := Hash(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Fatalf("hash must be key-order independent: %s != %s", ha, hb)
	}
}

func TestHashSensitiveToEmptyVsAbsent(t *testing.T) {
	var a, b any
	if err := json.Unmarshal([]byte(`{"version":"v2"}`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"version":"v2","keyPatterns":[]}`), &b); err != nil {
		t.Fatal(err)
	}

	ha, _ := Hash(a)
	hb, _ := Hash(b)
	if ha == hb {
		t.Fatal("empty array must hash differently from an absent field")
	}
}

func TestHashDeterministic(t *testing.T) {
	doc := validQuestionSet()
	h1, err := Hash(doc)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Hash(doc)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestHashChangesWithValue(t *testing.T) {
	doc := validQuestionSet()
	h1, _ := Hash(doc)
	doc.Questions[0].Text = "changed"
	h2, _ := Hash(doc)
	if h1 == h2 {
		t.Fatal("value change must change the hash")
	}
}
