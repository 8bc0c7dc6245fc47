package sqlitestore

import (
	"context"
	"testing"

	"docsum/internal/core"
)

func TestOpenCreatesSchemaAndRoundTripsSegments(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Initialise(ctx, "works", 3); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	seg := core.Segment{
		ID:          "hamlet_0",
		DocID:       "hamlet",
		Index:       0,
		Text:        "To be or not to be",
		ContentHash: "abc123",
		Embedding:   []float32{0.1, 0.2, 0.3},
		SectionPath: []string{"# Hamlet"},
	}
	if err := s.UpsertSegments(ctx, "works", []core.Segment{seg}); err != nil {
		t.Fatalf("UpsertSegments: %v", err)
	}

	segs, err := s.GetDocumentSegments(ctx, "works", "hamlet")
	if err != nil {
		t.Fatalf("GetDocumentSegments: %v", err)
	}
	if len(segs) != 1 || segs[0].ID != "hamlet_0" {
		t.Fatalf("unexpected segments: %+v", segs)
	}
	if len(segs[0].Embedding) != 3 {
		t.Errorf("embedding round-trip failed: %+v", segs[0].Embedding)
	}
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	_ = s.Initialise(ctx, "works", 3)

	if got, _ := s.GetCachedSummary(ctx, "works", "ev1"); got != nil {
		t.Error("expected cache miss")
	}
	want := core.DocumentSummary{Text: "summary text", Provider: "gemini", ModelUsed: "gemini-2.0-flash"}
	if err := s.CacheSummary(ctx, "works", "ev1", want); err != nil {
		t.Fatalf("CacheSummary: %v", err)
	}
	got, err := s.GetCachedSummary(ctx, "works", "ev1")
	if err != nil {
		t.Fatalf("GetCachedSummary: %v", err)
	}
	if got == nil || got.Text != want.Text {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestOperationsRequireInitialisedCollection(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, err := s.HasDocument(ctx, "missing", "doc"); err == nil {
		t.Error("expected NotInitialised error for an un-initialised collection")
	}
}
