package vectorstore

import (
	"context"
	"testing"

	"docsum/internal/core"
)

func TestInitialiseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Initialise(ctx, "c1", 3); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if err := s.UpsertSegments(ctx, "c1", []core.Segment{{ID: "a", Embedding: []float32{1, 2, 3}}}); err != nil {
		t.Fatalf("UpsertSegments: %v", err)
	}
	if err := s.Initialise(ctx, "c1", 3); err != nil {
		t.Fatalf("second Initialise: %v", err)
	}
	stats, _ := s.Stats(ctx)
	if stats.SegmentCount != 1 {
		t.Errorf("expected the re-initialise to be a no-op, segments = %d", stats.SegmentCount)
	}
}

func TestUpsertSkipsSegmentsWithoutEmbedding(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Initialise(ctx, "c1", 3)
	err := s.UpsertSegments(ctx, "c1", []core.Segment{
		{ID: "has-vec", Embedding: []float32{1, 0, 0}},
		{ID: "no-vec"},
	})
	if err != nil {
		t.Fatalf("UpsertSegments: %v", err)
	}
	segs, _ := s.GetDocumentSegments(ctx, "c1", "")
	for _, seg := range segs {
		if seg.ID == "no-vec" {
			t.Error("segment lacking an embedding should have been skipped")
		}
	}
}

func TestSearchPopulatesQuerySimilarity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Initialise(ctx, "c1", 2)
	_ = s.UpsertSegments(ctx, "c1", []core.Segment{
		{ID: "a", DocID: "doc1", Embedding: []float32{1, 0}},
		{ID: "b", DocID: "doc1", Embedding: []float32{0, 1}},
	})
	results, err := s.Search(ctx, "c1", []float32{1, 0}, 10, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("expected a to rank first, got %s", results[0].ID)
	}
	if results[0].QuerySimilarity <= results[1].QuerySimilarity {
		t.Error("expected descending similarity order")
	}
}

func TestRemoveStaleSegmentsOnlyTouchesOwnDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Initialise(ctx, "c1", 1)
	_ = s.UpsertSegments(ctx, "c1", []core.Segment{
		{ID: "doc1_0", DocID: "doc1", ContentHash: "h1", Embedding: []float32{1}},
		{ID: "doc1_1", DocID: "doc1", ContentHash: "h2", Embedding: []float32{1}},
		{ID: "doc2_0", DocID: "doc2", ContentHash: "h3", Embedding: []float32{1}},
	})
	if err := s.RemoveStaleSegments(ctx, "c1", "doc1", []string{"h1"}); err != nil {
		t.Fatalf("RemoveStaleSegments: %v", err)
	}
	doc1Segs, _ := s.GetDocumentSegments(ctx, "c1", "doc1")
	if len(doc1Segs) != 1 || doc1Segs[0].ContentHash != "h1" {
		t.Errorf("expected only h1 to survive for doc1, got %+v", doc1Segs)
	}
	doc2Segs, _ := s.GetDocumentSegments(ctx, "c1", "doc2")
	if len(doc2Segs) != 1 {
		t.Error("doc2's segment should not have been touched")
	}
}

func TestCacheSummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Initialise(ctx, "c1", 1)
	if got, _ := s.GetCachedSummary(ctx, "c1", "ev1"); got != nil {
		t.Error("expected cache miss before first write")
	}
	want := core.DocumentSummary{Text: "a summary", EvidenceHash: "ev1"}
	if err := s.CacheSummary(ctx, "c1", "ev1", want); err != nil {
		t.Fatalf("CacheSummary: %v", err)
	}
	got, err := s.GetCachedSummary(ctx, "c1", "ev1")
	if err != nil {
		t.Fatalf("GetCachedSummary: %v", err)
	}
	if got == nil || got.Text != want.Text {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestOperationsBeforeInitialiseAreNotInitialised(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.HasDocument(ctx, "missing", "doc1")
	if err == nil {
		t.Fatal("expected NotInitialised error")
	}
}

func TestDeleteDocumentLeavesOtherDocumentsIntact(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Initialise(ctx, "c1", 1)
	_ = s.UpsertSegments(ctx, "c1", []core.Segment{
		{ID: "doc1_0", DocID: "doc1", Embedding: []float32{1}},
		{ID: "doc2_0", DocID: "doc2", Embedding: []float32{1}},
	})
	if err := s.DeleteDocument(ctx, "c1", "doc1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	segs, _ := s.GetDocumentSegments(ctx, "c1", "doc2")
	if len(segs) != 1 {
		t.Error("doc2 should be unaffected by deleting doc1")
	}
}
