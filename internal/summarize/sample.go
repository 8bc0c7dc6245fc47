package summarize

import (
	"sort"

	"docsum/internal/core"
)

// DefaultMaxWorks is the sampling threshold below which every work is
// summarised; above it, Sample selects a representative subset.
const DefaultMaxWorks = 15

// Sample selects a representative subset of works when the collection is
// too large to summarise in full. Below maxWorks, every work is used.
// Above it, each inferred type gets a quota of max(2, maxWorks/#types);
// each type contributes its first work, its last work (if the quota
// allows more than one), and evenly-spaced middle works for any
// remaining quota. If the per-type selection still falls short of
// maxWorks, the global remainder (by descending word count) fills the
// gap. The result is always resorted to original document order.
func Sample(works []core.WorkPartition, maxWorks int) []core.WorkPartition {
	if maxWorks <= 0 {
		maxWorks = DefaultMaxWorks
	}
	if len(works) <= maxWorks {
		return works
	}

	byType := make(map[core.WorkType][]core.WorkPartition)
	var typeOrder []core.WorkType
	for _, w := range works {
		t := core.WorkUnknown
		if w.WorkInfo != nil {
			t = w.WorkInfo.Type
		}
		if _, ok := byType[t]; !ok {
			typeOrder = append(typeOrder, t)
		}
		byType[t] = append(byType[t], w)
	}

	numTypes := len(typeOrder)
	quota := maxWorks / numTypes
	if quota < 2 {
		quota = 2
	}

	selected := make(map[int]bool) // keyed by Index
	var selectedList []core.WorkPartition

	take := func(w core.WorkPartition) {
		if selected[w.Index] {
			return
		}
		selected[w.Index] = true
		selectedList = append(selectedList, w)
	}

	for _, t := range typeOrder {
		group := byType[t]
		n := len(group)
		q := quota
		if q > n {
			q = n
		}
		if q == 0 {
			continue
		}

		take(group[0])
		taken := 1
		if q > 1 {
			take(group[n-1])
			taken++
		}
		remaining := q - taken
		if remaining > 0 && n > 2 {
			for i := 1; i <= remaining; i++ {
				idx := i * (n - 1) / (remaining + 1)
				if idx <= 0 {
					idx = 1
				}
				if idx >= n-1 {
					idx = n - 2
				}
				if idx < 0 {
					idx = 0
				}
				take(group[idx])
			}
		}
	}

	if len(selectedList) < maxWorks {
		var remainder []core.WorkPartition
		for _, w := range works {
			if !selected[w.Index] {
				remainder = append(remainder, w)
			}
		}
		sort.SliceStable(remainder, func(i, j int) bool {
			return remainder[i].WordCount > remainder[j].WordCount
		})
		for _, w := range remainder {
			if len(selectedList) >= maxWorks {
				break
			}
			take(w)
		}
	}

	sort.SliceStable(selectedList, func(i, j int) bool {
		return selectedList[i].Index < selectedList[j].Index
	})
	return selectedList
}
