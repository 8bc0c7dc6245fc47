// Package retrieval implements the hybrid ranking stack: a BM25 sparse
// corpus, dense cosine similarity, and reciprocal-rank fusion across both
// plus a salience signal.
package retrieval

import (
	"math"
	"regexp"
	"strings"

	"docsum/internal/core"
)

// BM25Params holds the term-saturation and length-normalisation
// parameters.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25Params returns k1=1.5, b=0.75.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.5, B: 0.75}
}

// BM25Corpus is the per-term statistics built from a full segment set.
type BM25Corpus struct {
	params     BM25Params
	docLengths map[string]int
	termFreqs  map[string]map[string]int
	docFreqs   map[string]int
	avgDocLen  float64
	segmentIDs []string
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases and splits on non-alphanumeric runs.
func Tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// BuildBM25Corpus indexes the given segments.
func BuildBM25Corpus(segments []core.Segment, params BM25Params) *BM25Corpus {
	c := &BM25Corpus{
		params:     params,
		docLengths: make(map[string]int),
		termFreqs:  make(map[string]map[string]int),
		docFreqs:   make(map[string]int),
	}
	var totalLen int
	for _, seg := range segments {
		tokens := Tokenize(seg.Text)
		c.docLengths[seg.ID] = len(tokens)
		totalLen += len(tokens)
		c.segmentIDs = append(c.segmentIDs, seg.ID)

		counts := make(map[string]int)
		for _, tok := range tokens {
			counts[tok]++
		}
		c.termFreqs[seg.ID] = counts
		for term := range counts {
			c.docFreqs[term]++
		}
	}
	if len(segments) > 0 {
		c.avgDocLen = float64(totalLen) / float64(len(segments))
	}
	return c
}

// IDF returns the inverse document frequency for a term. A term absent
// from the corpus has df=0, which still yields a positive value under the
// formula (it contributes nothing to a score only because every
// document's term frequency for it is also 0).
func (c *BM25Corpus) IDF(term string) float64 {
	df := c.docFreqs[term]
	n := float64(len(c.segmentIDs))
	return math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

// Score computes score(q,d) for every segment id in the corpus, keyed by
// segment id.
func (c *BM25Corpus) Score(query string) map[string]float64 {
	queryTerms := Tokenize(query)
	scores := make(map[string]float64, len(c.segmentIDs))

	for _, term := range queryTerms {
		idf := c.IDF(term)

		for _, segID := range c.segmentIDs {
			tf := float64(c.termFreqs[segID][term])
			if tf == 0 {
				continue
			}
			docLen := float64(c.docLengths[segID])
			numerator := tf * (c.params.K1 + 1)
			denominator := tf + c.params.K1*(1-c.params.B+c.params.B*(docLen/c.avgDocLen))
			scores[segID] += idf * (numerator / denominator)
		}
	}
	return scores
}
