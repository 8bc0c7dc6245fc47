package retrieval

import (
	"sort"

	"docsum/internal/core"
)

// FusionParams configures reciprocal-rank fusion.
type FusionParams struct {
	K    float64
	TopK int
}

// DefaultFusionParams returns k=60, topK=25.
func DefaultFusionParams() FusionParams {
	return FusionParams{K: 60, TopK: 25}
}

// Fuse ranks segments by dense similarity, BM25, and salience, then
// combines the three ranked lists with reciprocal-rank fusion. It writes
// query_similarity and retrieval_score on every input segment (mutating a
// copy) and returns the top TopK segments in descending RRF order, ties
// broken by higher dense rank, then BM25 rank, then lower index.
func Fuse(segments []core.Segment, queryEmbedding []float32, bm25Scores map[string]float64, params FusionParams) []core.Segment {
	n := len(segments)
	if n == 0 {
		return nil
	}

	out := make([]core.Segment, n)
	copy(out, segments)

	denseScore := make([]float64, n)
	bm25Score := make([]float64, n)
	salienceScore := make([]float64, n)
	hasEmbedding := make([]bool, n)

	for i := range out {
		if len(out[i].Embedding) > 0 && len(queryEmbedding) > 0 {
			denseScore[i] = Cosine(queryEmbedding, out[i].Embedding)
			hasEmbedding[i] = true
		}
		bm25Score[i] = bm25Scores[out[i].ID]
		salienceScore[i] = out[i].SalienceScore
		out[i].QuerySimilarity = denseScore[i]
	}

	denseRank := rankDescending(n, func(i int) float64 { return denseScore[i] }, func(i int) bool { return hasEmbedding[i] })
	bm25Rank := rankDescending(n, func(i int) float64 { return bm25Score[i] }, func(i int) bool { return bm25Score[i] > 0 })
	salienceRank := rankDescending(n, func(i int) float64 { return salienceScore[i] }, func(i int) bool { return true })

	for i := range out {
		rrf := 0.0
		if r, ok := denseRank[i]; ok {
			rrf += 1.0 / (params.K + float64(r))
		}
		if r, ok := bm25Rank[i]; ok {
			rrf += 1.0 / (params.K + float64(r))
		}
		if r, ok := salienceRank[i]; ok {
			rrf += 1.0 / (params.K + float64(r))
		}
		out[i].RetrievalScore = rrf
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if out[i].RetrievalScore != out[j].RetrievalScore {
			return out[i].RetrievalScore > out[j].RetrievalScore
		}
		di, dok := denseRank[i]
		dj, djok := denseRank[j]
		if dok != djok {
			return dok
		}
		if dok && di != dj {
			return di < dj
		}
		bi, biok := bm25Rank[i]
		bj, bjok := bm25Rank[j]
		if biok != bjok {
			return biok
		}
		if biok && bi != bj {
			return bi < bj
		}
		return out[i].Index < out[j].Index
	})

	topK := params.TopK
	if topK <= 0 || topK > n {
		topK = n
	}
	result := make([]core.Segment, topK)
	for i := 0; i < topK; i++ {
		result[i] = out[order[i]]
	}
	return result
}

// rankDescending assigns 1-based ranks to indices in descending score
// order; indices for which eligible returns false are left unranked.
func rankDescending(n int, score func(i int) float64, eligible func(i int) bool) map[int]int {
	idxs := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if eligible(i) {
			idxs = append(idxs, i)
		}
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		if score(idxs[a]) != score(idxs[b]) {
			return score(idxs[a]) > score(idxs[b])
		}
		return idxs[a] < idxs[b]
	})
	ranks := make(map[int]int, len(idxs))
	for rank, idx := range idxs {
		ranks[idx] = rank + 1
	}
	return ranks
}
