// Package summarize implements the hierarchical (map-reduce) summariser
// described in §4.7: detect whether a document is a collection, partition
// it into works, sample a representative subset when it is too large,
// summarise each sampled work independently (map), then synthesise a
// single overview from the per-work summaries (reduce).
package summarize

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docsum/internal/apperr"
	"docsum/internal/collection"
	"docsum/internal/core"
	"docsum/internal/llm"
	"docsum/internal/markdown"
)

// Deps are the external collaborators the hierarchical summariser needs.
type Deps struct {
	LLM llm.Client
	// MaxConcurrency bounds how many works the map phase summarises at
	// once. 0 or 1 runs the map phase sequentially (the default, to
	// bound LLM pressure); the caller may raise it for bounded
	// parallelism.
	MaxConcurrency int
}

// Options configures a single hierarchical summarisation run.
type Options struct {
	MaxWorks           int
	TargetWordsPerWork int
	TargetWordsFinal   int
	FocusQuery         string
}

// DefaultOptions returns the defaults specified in §4.7.
func DefaultOptions() Options {
	return Options{
		MaxWorks:           DefaultMaxWorks,
		TargetWordsPerWork: DefaultTargetWordsPerWork,
		TargetWordsFinal:   DefaultTargetWordsFinal,
	}
}

// Result is the hierarchical summariser's output. When SingleDocument is
// true, the detector found this input is not a collection; the caller
// should take the single-document retrieval path instead, and every
// other field is zero.
type Result struct {
	SingleDocument  bool
	CollectionTitle string
	Summary         core.DocumentSummary
	WorkSummaries   []WorkSummary
	TotalWorks      int
	SummarizedWorks int
}

// Run executes the five-phase state machine against markdown source,
// updating job as it progresses. Detector/parser failures are fatal;
// per-work map failures are isolated and recorded in job.WorkErrors.
func Run(ctx context.Context, deps Deps, source string, opts Options, job *core.JobState) (Result, error) {
	if job == nil {
		job = &core.JobState{}
	}
	job.Phase = core.JobReady

	job.Advance(core.JobDetecting)
	if err := checkCancel(ctx, job); err != nil {
		return Result{}, err
	}
	doc := markdown.Parse(source)
	info := collection.Detect(doc)
	if !info.IsCollection {
		job.Advance(core.JobDone)
		return Result{SingleDocument: true}, nil
	}

	job.Advance(core.JobPartitioning)
	if err := checkCancel(ctx, job); err != nil {
		return Result{}, err
	}
	works := Partition(source)
	for i := range works {
		sectionHint := core.WorkUnknown
		for _, w := range info.Works {
			if w.Title == works[i].Title {
				sectionHint = w.Type
				break
			}
		}
		wi := collection.InferWorkType(works[i].Title, sectionHint)
		works[i].WorkInfo = &wi
	}
	totalWorks := len(works)

	job.Advance(core.JobSampling)
	if err := checkCancel(ctx, job); err != nil {
		return Result{}, err
	}
	maxWorks := opts.MaxWorks
	if maxWorks <= 0 {
		maxWorks = DefaultMaxWorks
	}
	sampled := Sample(works, maxWorks)

	targetPerWork := opts.TargetWordsPerWork
	if targetPerWork <= 0 {
		targetPerWork = DefaultTargetWordsPerWork
	}

	job.Advance(core.JobMapping)
	job.MapTotal = len(sampled)
	summaries, err := mapPhase(ctx, deps, sampled, targetPerWork, job)
	if err != nil {
		job.Fail(err)
		return Result{}, err
	}

	job.Advance(core.JobReducing)
	if err := checkCancel(ctx, job); err != nil {
		return Result{}, err
	}
	targetFinal := opts.TargetWordsFinal
	if targetFinal <= 0 {
		targetFinal = DefaultTargetWordsFinal
	}
	var succeeded []WorkSummary
	for _, s := range summaries {
		if !s.Failed {
			succeeded = append(succeeded, s)
		}
	}
	summarizedCount := len(succeeded)
	groups := groupByType(succeeded)
	prompt := BuildReducePrompt(info.CollectionTitle, groups, totalWorks, summarizedCount, opts.FocusQuery, info.IsShakespeare, targetFinal)

	text, err := deps.LLM.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.4})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			job.Cancelled = true
			job.Fail(apperr.Wrap(apperr.Cancelled, "reduce phase cancelled", ctxErr))
			return Result{}, job.Err
		}
		wrapped := apperr.Wrap(apperr.ExternalUnavailable, "reduce phase failed", err)
		job.Fail(wrapped)
		return Result{}, wrapped
	}
	text = llm.CleanResponse(text)
	if summarizedCount < totalWorks {
		pct := 0
		if totalWorks > 0 {
			pct = summarizedCount * 100 / totalWorks
		}
		text += fmt.Sprintf("\n\n*Coverage: %d of %d works summarized (%d%%)*", summarizedCount, totalWorks, pct)
	}

	job.Advance(core.JobDone)
	return Result{
		CollectionTitle: info.CollectionTitle,
		Summary:         core.DocumentSummary{Text: text},
		WorkSummaries:   summaries,
		TotalWorks:      totalWorks,
		SummarizedWorks: summarizedCount,
	}, nil
}

// mapPhase summarises each sampled work, honouring deps.MaxConcurrency,
// and returns results in original document order regardless of which
// goroutine finished first.
func mapPhase(ctx context.Context, deps Deps, sampled []core.WorkPartition, targetWords int, job *core.JobState) ([]WorkSummary, error) {
	n := len(sampled)
	out := make([]WorkSummary, n)

	concurrency := deps.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, work := range sampled {
		if err := checkCancel(ctx, job); err != nil {
			return nil, err
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, work core.WorkPartition) {
			defer wg.Done()
			defer func() { <-sem }()

			ws := summariseOneWork(ctx, deps, work, targetWords)

			mu.Lock()
			out[i] = ws
			job.MapDone++
			if ws.Failed {
				job.RecordWorkError(work.Title, ws.Summary)
			}
			mu.Unlock()
		}(i, work)
	}
	wg.Wait()

	if ctx.Err() != nil {
		job.Cancelled = true
		job.Fail(apperr.Wrap(apperr.Cancelled, "map phase cancelled", ctx.Err()))
		return nil, job.Err
	}
	return out, nil
}

// summariseOneWork summarises a single work; failures are isolated per
// §4.7/§7 (PartialSuccess) and never abort the map phase.
func summariseOneWork(ctx context.Context, deps Deps, work core.WorkPartition, targetWords int) WorkSummary {
	typ := core.WorkUnknown
	if work.WorkInfo != nil {
		typ = work.WorkInfo.Type
	}

	prompt := BuildMapPrompt(work, targetWords)
	text, err := deps.LLM.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.3})
	if err != nil {
		reason := err.Error()
		return WorkSummary{
			Title:   work.Title,
			Type:    typ,
			Summary: fmt.Sprintf("(Failed to summarize: %s)", reason),
			Failed:  true,
		}
	}
	return WorkSummary{Title: work.Title, Type: typ, Summary: llm.CleanResponse(text)}
}

// groupByType buckets work summaries by inferred type, sorted by
// descending group size (ties broken by first appearance order).
func groupByType(summaries []WorkSummary) []TypeGroup {
	order := make(map[core.WorkType]int)
	groups := make(map[core.WorkType][]WorkSummary)
	for _, s := range summaries {
		if _, ok := groups[s.Type]; !ok {
			order[s.Type] = len(order)
		}
		groups[s.Type] = append(groups[s.Type], s)
	}

	var types []core.WorkType
	for t := range groups {
		types = append(types, t)
	}
	sort.SliceStable(types, func(i, j int) bool {
		if len(groups[types[i]]) != len(groups[types[j]]) {
			return len(groups[types[i]]) > len(groups[types[j]])
		}
		return order[types[i]] < order[types[j]]
	})

	out := make([]TypeGroup, len(types))
	for i, t := range types {
		out[i] = TypeGroup{Type: t, Summaries: groups[t]}
	}
	return out
}

func checkCancel(ctx context.Context, job *core.JobState) error {
	select {
	case <-ctx.Done():
		job.Cancelled = true
		job.Fail(apperr.Wrap(apperr.Cancelled, "job cancelled", ctx.Err()))
		return job.Err
	default:
		return nil
	}
}
