package summarize

import (
	"testing"

	"docsum/internal/core"
)

func makeTypedWorks(counts map[core.WorkType]int) []core.WorkPartition {
	var works []core.WorkPartition
	idx := 0
	// Deterministic type order for test readability.
	order := []core.WorkType{core.WorkTragedy, core.WorkComedy, core.WorkHistory, core.WorkPoetry}
	for _, t := range order {
		n := counts[t]
		for i := 0; i < n; i++ {
			info := core.WorkInfo{Type: t}
			works = append(works, core.WorkPartition{
				Title:     string(t) + itoa(i),
				Index:     idx,
				WordCount: 100 + i,
				WorkInfo:  &info,
			})
			idx++
		}
	}
	return works
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%10]}, b...)
		n /= 10
	}
	return string(b)
}

func TestSampleBelowThresholdUsesAll(t *testing.T) {
	works := makeTypedWorks(map[core.WorkType]int{core.WorkTragedy: 3, core.WorkComedy: 3})
	got := Sample(works, 15)
	if len(got) != len(works) {
		t.Fatalf("expected all %d works, got %d", len(works), len(got))
	}
}

func TestSampleQuotaAndDocOrder(t *testing.T) {
	works := makeTypedWorks(map[core.WorkType]int{
		core.WorkTragedy: 10, core.WorkComedy: 10, core.WorkHistory: 10, core.WorkPoetry: 10,
	})
	got := Sample(works, 8)
	if len(got) != 8 {
		t.Fatalf("expected 8 sampled works, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Index < got[i-1].Index {
			t.Fatalf("expected sampled works in original document order, got indices %v", indicesOf(got))
		}
	}
}

func TestSampleCoversEveryType(t *testing.T) {
	works := makeTypedWorks(map[core.WorkType]int{
		core.WorkTragedy: 10, core.WorkComedy: 10, core.WorkHistory: 10, core.WorkPoetry: 10,
	})
	got := Sample(works, 8)
	seen := make(map[core.WorkType]bool)
	for _, w := range got {
		seen[w.WorkInfo.Type] = true
	}
	for _, typ := range []core.WorkType{core.WorkTragedy, core.WorkComedy, core.WorkHistory, core.WorkPoetry} {
		if !seen[typ] {
			t.Errorf("expected sampled set to include a %s work", typ)
		}
	}
}

func indicesOf(works []core.WorkPartition) []int {
	out := make([]int, len(works))
	for i, w := range works {
		out[i] = w.Index
	}
	return out
}
