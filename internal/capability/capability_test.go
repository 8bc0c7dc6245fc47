package capability

import (
	"context"
	"testing"

	"docsum/internal/core"
)

type fakeProber struct{ available bool }

func (f fakeProber) IsAvailable(ctx context.Context) bool { return f.available }

type fakePDFProber struct {
	available bool
	gpu       bool
}

func (f fakePDFProber) IsAvailable(ctx context.Context) bool { return f.available }
func (f fakePDFProber) HasGPU(ctx context.Context) bool      { return f.gpu }

func TestProbeRunsConcurrentlyAndAggregates(t *testing.T) {
	caps := Probe(context.Background(), fakeProber{true}, fakeProber{true}, fakePDFProber{true, true})
	if !caps.LLMAvailable || !caps.VectorDBAvailable || !caps.PDFAvailable || !caps.PDFHasGPU {
		t.Fatalf("expected all capabilities true, got %+v", caps)
	}
}

func TestProbeNilCollaboratorsAreUnavailable(t *testing.T) {
	caps := Probe(context.Background(), nil, nil, nil)
	if caps.LLMAvailable || caps.VectorDBAvailable || caps.PDFAvailable {
		t.Fatalf("expected no capabilities, got %+v", caps)
	}
}

func TestSelectModeAuto(t *testing.T) {
	cases := []struct {
		name string
		caps core.ServiceCapabilities
		want core.SummarizationMode
	}{
		{"llm and vector", core.ServiceCapabilities{LLMAvailable: true, VectorDBAvailable: true}, core.ModeBertRag},
		{"llm only", core.ServiceCapabilities{LLMAvailable: true}, core.ModeBertHybrid},
		{"neither", core.ServiceCapabilities{}, core.ModeBert},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SelectMode(core.ModeAuto, tc.caps); got != tc.want {
				t.Errorf("SelectMode() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSelectModePassesThroughExplicitRequest(t *testing.T) {
	got := SelectMode(core.ModeBert, core.ServiceCapabilities{LLMAvailable: true, VectorDBAvailable: true})
	if got != core.ModeBert {
		t.Errorf("expected explicit mode to pass through, got %v", got)
	}
}

func TestPDFChunkPlan(t *testing.T) {
	gpuPlan := PDFChunkPlan(core.ServiceCapabilities{PDFHasGPU: true})
	if gpuPlan.Concurrency != 1 || gpuPlan.PagesPerChunk <= 0 {
		t.Errorf("expected GPU plan with concurrency 1, got %+v", gpuPlan)
	}
	cpuPlan := PDFChunkPlan(core.ServiceCapabilities{})
	if cpuPlan.Concurrency < 2 {
		t.Errorf("expected CPU plan with concurrency >= 2, got %+v", cpuPlan)
	}
	if cpuPlan.PagesPerChunk >= gpuPlan.PagesPerChunk {
		t.Errorf("expected CPU chunks smaller than GPU chunks")
	}
}
