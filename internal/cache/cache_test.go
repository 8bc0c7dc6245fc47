package cache

import (
	"context"
	"errors"
	"sort"
	"testing"

	"docsum/internal/core"
	"docsum/internal/vectorstore"
)

func TestEvidenceHashOrderIndependent(t *testing.T) {
	a := EvidenceHash([]string{"h1", "h2", "h3"}, "model-a")
	b := EvidenceHash([]string{"h3", "h1", "h2"}, "model-a")
	if a != b {
		t.Fatalf("expected order-independent hash, got %s != %s", a, b)
	}
}

func TestEvidenceHashChangesWithModel(t *testing.T) {
	a := EvidenceHash([]string{"h1"}, "model-a")
	b := EvidenceHash([]string{"h1"}, "model-b")
	if a == b {
		t.Fatalf("expected distinct hashes for distinct models")
	}
}

func TestEvidenceHashDoesNotMutateInput(t *testing.T) {
	hashes := []string{"c", "a", "b"}
	cp := append([]string(nil), hashes...)
	_ = EvidenceHash(hashes, "m")
	sort.Strings(cp)
	if hashes[0] != "c" {
		t.Fatalf("EvidenceHash must not mutate its input slice")
	}
}

type fakeEmbedder struct {
	calls int
	dim   int
}

func (f *fakeEmbedder) Initialise(ctx context.Context) error { return nil }
func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
func (f *fakeEmbedder) Dimension() int { return 3 }

func TestReuseSegmentsOnlyEmbedsMisses(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	if err := store.Initialise(ctx, "col", 3); err != nil {
		t.Fatal(err)
	}

	// Seed the store with one segment already carrying an embedding.
	seeded := core.Segment{ID: "doc_0", DocID: "doc", Index: 0, Text: "alpha", ContentHash: "hash-alpha", Embedding: []float32{9, 9, 9}}
	if err := store.UpsertSegments(ctx, "col", []core.Segment{seeded}); err != nil {
		t.Fatal(err)
	}

	fresh := []core.Segment{
		{ID: "doc_0", DocID: "doc", Index: 0, Text: "alpha", ContentHash: "hash-alpha"},
		{ID: "doc_1", DocID: "doc", Index: 1, Text: "beta", ContentHash: "hash-beta"},
	}

	embedder := &fakeEmbedder{}
	out, err := ReuseSegments(ctx, store, embedder, "col", "doc", fresh)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(out))
	}
	if embedder.calls != 1 {
		t.Fatalf("expected exactly one batch embed call for the miss set, got %d", embedder.calls)
	}
	if out[0].Embedding[0] != 9 {
		t.Fatalf("expected reused prior embedding for hash-alpha, got %v", out[0].Embedding)
	}
	if out[1].Embedding[0] != 1 {
		t.Fatalf("expected freshly computed embedding for hash-beta, got %v", out[1].Embedding)
	}
}

func TestReuseSegmentsEvictsStale(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	_ = store.Initialise(ctx, "col", 3)

	old := core.Segment{ID: "doc_0", DocID: "doc", Index: 0, Text: "old", ContentHash: "hash-old", Embedding: []float32{1, 1, 1}}
	_ = store.UpsertSegments(ctx, "col", []core.Segment{old})

	fresh := []core.Segment{{ID: "doc_0", DocID: "doc", Index: 0, Text: "new", ContentHash: "hash-new"}}
	embedder := &fakeEmbedder{}
	if _, err := ReuseSegments(ctx, store, embedder, "col", "doc", fresh); err != nil {
		t.Fatal(err)
	}

	segs, err := store.GetDocumentSegments(ctx, "col", "doc")
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 || segs[0].ContentHash != "hash-new" {
		t.Fatalf("expected only hash-new to survive, got %+v", segs)
	}
}

func TestGetOrGenerateCallsGenOnlyOnMiss(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	_ = store.Initialise(ctx, "col", 3)

	calls := 0
	gen := func(ctx context.Context) (string, string, error) {
		calls++
		return "a summary", "model-x", nil
	}

	_, hit1, err := GetOrGenerate(ctx, store, "col", "evhash", gen)
	if err != nil {
		t.Fatal(err)
	}
	if hit1 {
		t.Fatalf("expected first call to be a cache miss")
	}
	if calls != 1 {
		t.Fatalf("expected gen called once, got %d", calls)
	}

	summary2, hit2, err := GetOrGenerate(ctx, store, "col", "evhash", gen)
	if err != nil {
		t.Fatal(err)
	}
	if !hit2 {
		t.Fatalf("expected second call to be a cache hit")
	}
	if calls != 1 {
		t.Fatalf("expected gen not called again on cache hit, got %d calls", calls)
	}
	if summary2.Text != "a summary" {
		t.Fatalf("unexpected cached summary: %+v", summary2)
	}
}

func TestGetOrGenerateSurfacesGenError(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	_ = store.Initialise(ctx, "col", 3)

	wantErr := errors.New("llm down")
	_, _, err := GetOrGenerate(ctx, store, "col", "evhash", func(ctx context.Context) (string, string, error) {
		return "", "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected gen error to propagate, got %v", err)
	}
}
