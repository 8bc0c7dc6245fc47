// Package pipeline wires the leaf components (archive, markdown, segment,
// collection, retrieval, summarize, cache, capability) into the data flow
// described in §2: input file -> (archive if zip) -> markdown -> parsed
// tree -> segments -> classify -> either the single-document retrieval
// path or the hierarchical collection path. Service also owns the
// startup/shutdown lifecycle described in §6.
package pipeline

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"docsum/internal/apperr"
	"docsum/internal/archive"
	"docsum/internal/cache"
	"docsum/internal/capability"
	"docsum/internal/collection"
	"docsum/internal/core"
	"docsum/internal/embedding"
	"docsum/internal/handler"
	"docsum/internal/llm"
	"docsum/internal/markdown"
	"docsum/internal/retrieval"
	"docsum/internal/segment"
	"docsum/internal/summarize"
	"docsum/internal/vectorstore"
)

// Service sequences the pipeline for a single collection and owns the
// startup/shutdown lifecycle: initialise the embedding service, clear the
// collection if configured to reindex on startup, then initialise the
// vector store with the collection name and embedding dimension.
type Service struct {
	Embedder   embedding.Client
	LLM        llm.Client
	Store      vectorstore.Store
	Handlers   *handler.Registry
	Collection string

	SegmentOpts   segment.Options
	ArchiveOpts   archive.Options
	BM25Params    retrieval.BM25Params
	FusionParams  retrieval.FusionParams
	SummarizeOpts summarize.Options

	// MapConcurrency bounds how many works the hierarchical map phase
	// summarises at once; see summarize.Deps.MaxConcurrency. Defaults to
	// 1 (sequential) and is set from config.Summarize.MaxConcurrency by
	// the caller.
	MapConcurrency int

	ReindexOnStartup bool
}

// NewService builds a Service with the §4.1-§4.9 defaults and a registry
// pre-populated with the shipped markdown and archive handlers.
func NewService(embedder embedding.Client, llmClient llm.Client, store vectorstore.Store, collectionName string) *Service {
	reg := handler.NewRegistry()
	reg.Register(handler.NewMarkdownHandler())
	reg.Register(handler.NewArchiveHandler(archive.DefaultOptions()))

	return &Service{
		Embedder:       embedder,
		LLM:            llmClient,
		Store:          store,
		Handlers:       reg,
		Collection:     collectionName,
		SegmentOpts:    segment.DefaultOptions(),
		ArchiveOpts:    archive.DefaultOptions(),
		BM25Params:     retrieval.DefaultBM25Params(),
		FusionParams:   retrieval.DefaultFusionParams(),
		SummarizeOpts:  summarize.DefaultOptions(),
		MapConcurrency: 1,
	}
}

// Start initialises the embedding client, optionally clears the
// collection, then initialises the vector store. It must be called
// before any SummarizeFile call. A nil Embedder is permitted: retrieval
// then runs without dense similarity and no segments are persisted, but
// the vector store is still initialised, with dimension 0, so the summary
// cache works.
func (s *Service) Start(ctx context.Context) error {
	dim := 0
	if s.Embedder != nil {
		if err := s.Embedder.Initialise(ctx); err != nil {
			return err
		}
		dim = s.Embedder.Dimension()
	}
	if s.ReindexOnStartup {
		if err := s.Store.DeleteCollection(ctx, s.Collection); err != nil {
			return err
		}
	}
	return s.Store.Initialise(ctx, s.Collection, dim)
}

// Shutdown performs no persistence beyond what the backend already holds
// (§6); it exists so callers have a single symmetric lifecycle hook and a
// place to release backend resources such as an open SQLite handle.
func (s *Service) Shutdown(_ context.Context) error {
	type closer interface{ Close() error }
	if c, ok := s.Store.(closer); ok {
		return c.Close()
	}
	return nil
}

// ProgressFunc receives a JobState snapshot and an optional human-readable
// label as the pipeline advances; the TUI and any other progress consumer
// implement this.
type ProgressFunc func(state core.JobState, label string)

// Request configures a single summarisation call.
type Request struct {
	DocID      string
	Path       string // file path; used to resolve a handler and as the default DocID
	Data       []byte // raw file bytes; SummarizeFile does not read this field
	Markdown   string // pre-extracted markdown; skips handler resolution
	Mode       core.SummarizationMode
	FocusQuery string
	Caps       core.ServiceCapabilities
	OnProgress ProgressFunc
}

// Result is what a single summarisation call returns.
type Result struct {
	Summary    core.DocumentSummary
	Collection *summarize.Result // non-nil when the input was a collection
}

// SummarizeFile runs the full data flow against a request. It resolves a
// document handler from req.Path when req.Markdown is empty, extracts
// segments, classifies the document, and takes either the single-document
// retrieval path or the hierarchical collection path.
func (s *Service) SummarizeFile(ctx context.Context, req Request) (Result, error) {
	job := &core.JobState{ID: uuid.NewString(), Phase: core.JobReady}
	report := func(label string) {
		if req.OnProgress != nil {
			req.OnProgress(*job, label)
		}
	}

	markdownSource := req.Markdown
	docID := req.DocID
	if markdownSource == "" {
		if req.Path == "" {
			return Result{}, apperr.New(apperr.InvalidInput, "request has neither Markdown nor Path")
		}
		h := s.Handlers.Resolve(req.Path)
		if h == nil {
			return Result{}, apperr.New(apperr.InvalidInput, "no handler registered for "+req.Path)
		}
		content, err := h.Process(ctx, req.Path, handler.Options{MaxSizeBytes: s.ArchiveOpts.MaxSize})
		if err != nil {
			return Result{}, err
		}
		markdownSource = content.Markdown
		if docID == "" {
			docID = req.Path
		}
	}
	if docID == "" {
		docID = "document"
	}

	mode := capability.SelectMode(req.Mode, req.Caps)

	job.Advance(core.JobDetecting)
	report("detecting")
	doc := markdown.Parse(markdownSource)
	info := collection.Detect(doc)

	if info.IsCollection {
		if s.LLM == nil {
			return Result{}, apperr.New(apperr.ExternalUnavailable, "hierarchical summarisation requires an LLM").
				WithRemediation("configure ai.gemini.api_key or GEMINI_API_KEY")
		}
		deps := summarize.Deps{LLM: s.LLM, MaxConcurrency: s.MapConcurrency}
		opts := s.SummarizeOpts
		opts.FocusQuery = req.FocusQuery
		collResult, err := summarize.Run(ctx, deps, markdownSource, opts, job)
		if err != nil {
			return Result{}, err
		}
		if req.OnProgress != nil {
			req.OnProgress(*job, "done")
		}
		return Result{Summary: collResult.Summary, Collection: &collResult}, nil
	}

	summary, err := s.summarizeSingleDocument(ctx, docID, doc, mode, req.FocusQuery, job, report)
	if err != nil {
		return Result{}, err
	}
	return Result{Summary: summary}, nil
}

// summarizeSingleDocument implements the single-doc path: segment
// extraction with granular cache reuse, BM25+dense+salience retrieval
// fusion, and synthesis (LLM for BertHybrid/BertRag, plain concatenation
// for Bert).
func (s *Service) summarizeSingleDocument(ctx context.Context, docID string, doc core.ParsedDocument, mode core.SummarizationMode, focusQuery string, job *core.JobState, report func(string)) (core.DocumentSummary, error) {
	job.Advance(core.JobPartitioning)
	report("extracting segments")
	fresh := segment.Extract(docID, doc, s.SegmentOpts)
	if len(fresh) == 0 {
		job.Fail(apperr.New(apperr.InvalidInput, "document produced no segments"))
		return core.DocumentSummary{}, job.Err
	}

	job.Advance(core.JobSampling)
	report("reusing cached embeddings")
	withEmbeddings := fresh
	if s.Embedder != nil {
		var err error
		withEmbeddings, err = cache.ReuseSegments(ctx, s.Store, s.Embedder, s.Collection, docID, fresh)
		if err != nil {
			job.Fail(err)
			return core.DocumentSummary{}, err
		}
	}

	job.Advance(core.JobMapping)
	report("retrieving")
	var queryEmbedding []float32
	var err error
	if focusQuery != "" && s.Embedder != nil && mode != core.ModeBert {
		queryEmbedding, err = s.Embedder.Embed(ctx, focusQuery)
		if err != nil {
			job.Fail(err)
			return core.DocumentSummary{}, err
		}
	}
	corpus := retrieval.BuildBM25Corpus(withEmbeddings, s.BM25Params)
	bm25Scores := corpus.Score(focusQuery)
	top := retrieval.Fuse(withEmbeddings, queryEmbedding, bm25Scores, s.FusionParams)

	contentHashes := make([]string, len(top))
	for i, seg := range top {
		contentHashes[i] = seg.ContentHash
	}

	job.Advance(core.JobReducing)
	report("synthesising")

	modelID := "extractive"
	if mode != core.ModeBert {
		modelID = "gemini"
	}
	if mode != core.ModeBert && s.LLM == nil {
		err := apperr.New(apperr.ExternalUnavailable, "synthesis requires an LLM in "+string(mode)).
			WithRemediation("configure ai.gemini.api_key or GEMINI_API_KEY, or pass --mode bert")
		job.Fail(err)
		return core.DocumentSummary{}, err
	}
	evidenceHash := cache.EvidenceHash(contentHashes, modelID)

	summary, _, err := cache.GetOrGenerate(ctx, s.Store, s.Collection, evidenceHash, func(ctx context.Context) (string, string, error) {
		if mode == core.ModeBert {
			return concatenateExtractive(top), modelID, nil
		}
		prompt := summarize.BuildSingleDocPrompt(top, focusQuery, s.SummarizeOpts.TargetWordsPerWork)
		text, err := s.LLM.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.3})
		if err != nil {
			return "", "", err
		}
		return llm.CleanResponse(text), modelID, nil
	})
	if err != nil {
		job.Fail(err)
		return core.DocumentSummary{}, err
	}
	summary.EvidenceHash = evidenceHash
	summary.Provider = string(mode)

	job.Advance(core.JobDone)
	report("done")
	return summary, nil
}

// concatenateExtractive builds the pure-extractive (Bert mode) summary:
// the top-RRF segments joined in ranked order.
func concatenateExtractive(segments []core.Segment) string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	return strings.Join(texts, "\n\n")
}

// Probe runs the three-way capability probe (§4.8) against the service's
// own collaborators, treating the vector store as always available once
// Start has succeeded.
func (s *Service) Probe(ctx context.Context) core.ServiceCapabilities {
	caps := capability.Probe(ctx, llmProber{s.LLM}, nil, nil)
	caps.VectorDBAvailable = s.Store != nil
	return caps
}

type llmProber struct{ c llm.Client }

func (p llmProber) IsAvailable(ctx context.Context) bool {
	if p.c == nil {
		return false
	}
	return p.c.IsAvailable(ctx)
}
