package pipeline

import (
	"context"
	"strings"
	"testing"

	"docsum/internal/core"
	"docsum/internal/vectorstore"
)

func TestSummarizeFileBertModeNoExternals(t *testing.T) {
	svc := NewService(nil, nil, vectorstore.NewMemoryStore(), "test")
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Shutdown(ctx)

	md := "# Heading\n\n" + strings.Repeat("Alpha beta gamma delta epsilon zeta. More filler text here to pad out the segment well past the minimum chunk size so extraction produces at least one segment with real content to rank.\n\n", 3)

	res, err := svc.SummarizeFile(ctx, Request{
		DocID:    "doc1",
		Markdown: md,
		Mode:     core.ModeBert,
	})
	if err != nil {
		t.Fatalf("SummarizeFile: %v", err)
	}
	if res.Summary.Text == "" {
		t.Fatal("expected non-empty extractive summary")
	}
	if res.Summary.Provider != string(core.ModeBert) {
		t.Errorf("Provider = %q, want %q", res.Summary.Provider, core.ModeBert)
	}
}

func TestSummarizeFileRejectsNonBertWithoutLLM(t *testing.T) {
	svc := NewService(nil, nil, vectorstore.NewMemoryStore(), "test")
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := svc.SummarizeFile(ctx, Request{
		DocID:    "doc1",
		Markdown: "# Heading\n\nSome content that is long enough to form a segment once split by the extractor.",
		Mode:     core.ModeBertHybrid,
	})
	if err == nil {
		t.Fatal("expected an error requesting BertHybrid with no LLM configured")
	}
}

func TestSummarizeFileEmptyInputIsInvalid(t *testing.T) {
	svc := NewService(nil, nil, vectorstore.NewMemoryStore(), "test")
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := svc.SummarizeFile(ctx, Request{DocID: "doc1", Markdown: "   \n\n  ", Mode: core.ModeBert})
	if err == nil {
		t.Fatal("expected an error for a document with no extractable segments")
	}
}
