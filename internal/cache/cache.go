// Package cache implements the content-addressed caching layer described
// in §4.9: granular segment reuse across re-ingests, keyed by per-segment
// content hash, and per-query summary reuse, keyed by an evidence hash
// over the segments and model that produced it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"docsum/internal/core"
	"docsum/internal/embedding"
	"docsum/internal/vectorstore"
)

// PromptTemplateVersion is bumped whenever a prompt template changes in a
// way that should invalidate previously cached summaries.
const PromptTemplateVersion = "v1"

// EvidenceHash computes the stable cache key for a summary: a SHA-256
// digest over the sorted content hashes of the segments used, the model
// id, and the prompt template version. Sorting the hashes makes the key
// independent of the order segments were retrieved in.
func EvidenceHash(contentHashes []string, modelID string) string {
	sorted := append([]string(nil), contentHashes...)
	sort.Strings(sorted)
	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, "|")))
	h.Write([]byte("|" + modelID + "|" + PromptTemplateVersion))
	return hex.EncodeToString(h.Sum(nil))
}

// ReuseSegments implements the granular segment-reuse orchestration on
// re-ingest: for every freshly extracted segment, recover a prior
// embedding by content hash when one exists, compute embeddings only for
// the miss set, upsert the full set, and evict anything that no longer
// belongs to the document. It returns the segments with embeddings
// populated, in their original order.
func ReuseSegments(ctx context.Context, store vectorstore.Store, embedder embedding.Client, collection, docID string, fresh []core.Segment) ([]core.Segment, error) {
	if len(fresh) == 0 {
		return nil, nil
	}

	hashes := make([]string, len(fresh))
	for i, seg := range fresh {
		hashes[i] = seg.ContentHash
	}

	cached, err := store.GetSegmentsByHash(ctx, collection, hashes)
	if err != nil {
		return nil, err
	}

	out := make([]core.Segment, len(fresh))
	var missTexts []string
	var missIdx []int
	for i, seg := range fresh {
		if prior, ok := cached[seg.ContentHash]; ok && len(prior.Embedding) > 0 {
			seg.Embedding = prior.Embedding
			out[i] = seg
			continue
		}
		out[i] = seg
		missTexts = append(missTexts, seg.Text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		vecs, err := embedder.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, idx := range missIdx {
			if j < len(vecs) {
				out[idx].Embedding = vecs[j]
			}
		}
	}

	if err := store.UpsertSegments(ctx, collection, out); err != nil {
		return nil, err
	}

	validHashes := make([]string, len(out))
	for i, seg := range out {
		validHashes[i] = seg.ContentHash
	}
	if err := store.RemoveStaleSegments(ctx, collection, docID, validHashes); err != nil {
		return nil, err
	}

	return out, nil
}

// Generator produces summary text given only a context; callers close over
// whatever prompt/segments they need. It is invoked only on a cache miss.
type Generator func(ctx context.Context) (text string, modelID string, err error)

// GetOrGenerate looks up a cached summary by evidence hash; on a miss it
// invokes gen, caches the result, and returns it. On a hit it returns the
// cached summary without calling gen, satisfying the cache-equivalence
// property: summarising identical evidence twice issues exactly one
// generation call.
func GetOrGenerate(ctx context.Context, store vectorstore.Store, collection, evidenceHash string, gen Generator) (core.DocumentSummary, bool, error) {
	if cached, err := store.GetCachedSummary(ctx, collection, evidenceHash); err != nil {
		return core.DocumentSummary{}, false, err
	} else if cached != nil {
		return *cached, true, nil
	}

	text, modelID, err := gen(ctx)
	if err != nil {
		return core.DocumentSummary{}, false, err
	}

	summary := core.DocumentSummary{
		Text:         text,
		EvidenceHash: evidenceHash,
		ModelUsed:    modelID,
		GeneratedAt:  time.Now(),
	}
	if err := store.CacheSummary(ctx, collection, evidenceHash, summary); err != nil {
		return summary, false, err
	}
	return summary, false, nil
}
