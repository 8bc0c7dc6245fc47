// Package capability implements the service capability model: probing
// which externals (LLM, PDF converter, vector store) are reachable and
// choosing a summarisation mode from the result.
package capability

import (
	"context"

	"golang.org/x/sync/errgroup"

	"docsum/internal/core"
)

// Prober is satisfied by any external collaborator the capability model
// checks; IsAvailable must not panic and should honour ctx cancellation.
type Prober interface {
	IsAvailable(ctx context.Context) bool
}

// PDFProber additionally reports GPU availability for chunk planning.
type PDFProber interface {
	Prober
	HasGPU(ctx context.Context) bool
}

// Probe runs the LLM, PDF, and vector-store probes concurrently and
// returns the resulting capability snapshot. A nil prober is treated as
// unavailable without being called.
func Probe(ctx context.Context, llmProber, vectorProber Prober, pdfProber PDFProber) core.ServiceCapabilities {
	var caps core.ServiceCapabilities
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if llmProber != nil {
			caps.LLMAvailable = llmProber.IsAvailable(gCtx)
		}
		return nil
	})
	g.Go(func() error {
		if vectorProber != nil {
			caps.VectorDBAvailable = vectorProber.IsAvailable(gCtx)
		}
		return nil
	})
	g.Go(func() error {
		if pdfProber != nil {
			caps.PDFAvailable = pdfProber.IsAvailable(gCtx)
			if caps.PDFAvailable {
				caps.PDFHasGPU = pdfProber.HasGPU(gCtx)
			}
		}
		return nil
	})

	// Probes never return an error (they resolve to a bool), so the
	// errgroup wait only blocks until all three goroutines have finished.
	_ = g.Wait()
	return caps
}

// SelectMode chooses a SummarizationMode from probed capabilities when the
// caller requested Auto; any other requested mode passes through
// unchanged, letting the caller override the capability model.
func SelectMode(requested core.SummarizationMode, caps core.ServiceCapabilities) core.SummarizationMode {
	if requested != core.ModeAuto {
		return requested
	}
	switch {
	case caps.LLMAvailable && caps.VectorDBAvailable:
		return core.ModeBertRag
	case caps.LLMAvailable:
		return core.ModeBertHybrid
	default:
		return core.ModeBert
	}
}

// PDFChunkPlan derives pages-per-chunk and worker concurrency for PDF
// conversion from the probed capabilities. With GPU support the converter
// parallelises internally, so chunks are larger and the caller runs a
// single chunk at a time; without GPU, chunks are smaller and the caller
// runs several concurrently to compensate.
func PDFChunkPlan(caps core.ServiceCapabilities) core.PDFChunkPlan {
	if caps.PDFHasGPU {
		return core.PDFChunkPlan{PagesPerChunk: 50, Concurrency: 1}
	}
	return core.PDFChunkPlan{PagesPerChunk: 10, Concurrency: 4}
}
