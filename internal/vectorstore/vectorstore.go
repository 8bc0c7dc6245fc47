// Package vectorstore defines the segment/summary persistence contract the
// core consumes and ships the mandatory in-memory implementation: the one
// process-wide mutable state the core owns.
package vectorstore

import (
	"context"
	"strings"
	"sync"

	"docsum/internal/apperr"
	"docsum/internal/core"
	"docsum/internal/retrieval"
	"docsum/internal/segment"
)

// Store is the contract every vector store backend satisfies. Every
// operation is safe to call concurrently across collections; a single
// collection's operations serialise.
type Store interface {
	// Initialise is idempotent; it creates the collection if missing.
	Initialise(ctx context.Context, collection string, vectorDim int) error

	// HasDocument reports whether any segment whose id begins with the
	// sanitised doc_hash, or whose content_hash begins with doc_hash,
	// exists in the collection.
	HasDocument(ctx context.Context, collection, docHash string) (bool, error)

	// UpsertSegments replaces segments by id. Segments lacking an
	// embedding are skipped silently.
	UpsertSegments(ctx context.Context, collection string, segments []core.Segment) error

	// Search returns the topK segments with highest cosine similarity to
	// queryEmbedding, filtered by docHash prefix when non-empty, with
	// query_similarity populated on each result.
	Search(ctx context.Context, collection string, queryEmbedding []float32, topK int, docHash string) ([]core.Segment, error)

	// GetDocumentSegments returns every segment belonging to docHash,
	// ordered by index.
	GetDocumentSegments(ctx context.Context, collection, docHash string) ([]core.Segment, error)

	// GetSegmentsByHash maps content hashes to the (possibly stale)
	// segment already carrying that hash, for granular cache reuse.
	GetSegmentsByHash(ctx context.Context, collection string, contentHashes []string) (map[string]core.Segment, error)

	// RemoveStaleSegments deletes segments belonging to docHash whose
	// content_hash is absent from validHashes. Segments belonging to
	// other documents are never touched.
	RemoveStaleSegments(ctx context.Context, collection, docHash string, validHashes []string) error

	// GetCachedSummary and CacheSummary key summaries by evidence hash.
	GetCachedSummary(ctx context.Context, collection, evidenceHash string) (*core.DocumentSummary, error)
	CacheSummary(ctx context.Context, collection, evidenceHash string, summary core.DocumentSummary) error

	DeleteCollection(ctx context.Context, collection string) error
	DeleteDocument(ctx context.Context, collection, docHash string) error

	// Stats reports aggregate counters for the cache layer.
	Stats(ctx context.Context) (core.CacheStats, error)
}

type collectionData struct {
	dim      int
	segments map[string]core.Segment // keyed by segment id
	summaries map[string]core.DocumentSummary // keyed by evidence hash
}

// MemoryStore is the mandatory in-memory implementation described in the
// concurrency model: a mapping collection_name -> segments plus
// (collection, evidence_hash) -> summary. Readers and writers serialise
// per collection; upserts are replace-by-id atomic.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collectionData
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*collectionData)}
}

func (m *MemoryStore) Initialise(_ context.Context, collection string, vectorDim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; ok {
		return nil
	}
	m.collections[collection] = &collectionData{
		dim:       vectorDim,
		segments:  make(map[string]core.Segment),
		summaries: make(map[string]core.DocumentSummary),
	}
	return nil
}

func (m *MemoryStore) get(collection string) (*collectionData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, apperr.New(apperr.NotInitialised, "collection "+collection+" not initialised")
	}
	return c, nil
}

func (m *MemoryStore) HasDocument(_ context.Context, collection, docHash string) (bool, error) {
	c, err := m.get(collection)
	if err != nil {
		return false, err
	}
	sanitised := segment.SanitiseDocID(docHash)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, seg := range c.segments {
		if strings.HasPrefix(seg.ID, sanitised) || strings.HasPrefix(seg.ContentHash, docHash) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) UpsertSegments(_ context.Context, collection string, segments []core.Segment) error {
	c, err := m.get(collection)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seg := range segments {
		if len(seg.Embedding) == 0 {
			continue
		}
		c.segments[seg.ID] = seg
	}
	return nil
}

func (m *MemoryStore) Search(_ context.Context, collection string, queryEmbedding []float32, topK int, docHash string) ([]core.Segment, error) {
	c, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	var candidates []core.Segment
	for _, seg := range c.segments {
		if docHash != "" && !strings.HasPrefix(seg.ID, docHash) && !strings.HasPrefix(seg.ContentHash, docHash) {
			continue
		}
		seg.QuerySimilarity = retrieval.Cosine(queryEmbedding, seg.Embedding)
		candidates = append(candidates, seg)
	}
	m.mu.RUnlock()

	sortBySimilarityDescending(candidates)
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func sortBySimilarityDescending(segments []core.Segment) {
	for i := 1; i < len(segments); i++ {
		j := i
		for j > 0 && segments[j-1].QuerySimilarity < segments[j].QuerySimilarity {
			segments[j-1], segments[j] = segments[j], segments[j-1]
			j--
		}
	}
}

func (m *MemoryStore) GetDocumentSegments(_ context.Context, collection, docHash string) ([]core.Segment, error) {
	c, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Segment
	for _, seg := range c.segments {
		if seg.DocID == docHash {
			out = append(out, seg)
		}
	}
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Index > out[j].Index {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out, nil
}

func (m *MemoryStore) GetSegmentsByHash(_ context.Context, collection string, contentHashes []string) (map[string]core.Segment, error) {
	c, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[string]bool, len(contentHashes))
	for _, h := range contentHashes {
		want[h] = true
	}
	out := make(map[string]core.Segment)
	for _, seg := range c.segments {
		if want[seg.ContentHash] {
			out[seg.ContentHash] = seg
		}
	}
	return out, nil
}

func (m *MemoryStore) RemoveStaleSegments(_ context.Context, collection, docHash string, validHashes []string) error {
	c, err := m.get(collection)
	if err != nil {
		return err
	}
	valid := make(map[string]bool, len(validHashes))
	for _, h := range validHashes {
		valid[h] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, seg := range c.segments {
		if seg.DocID != docHash {
			continue
		}
		if !valid[seg.ContentHash] {
			delete(c.segments, id)
		}
	}
	return nil
}

func (m *MemoryStore) GetCachedSummary(_ context.Context, collection, evidenceHash string) (*core.DocumentSummary, error) {
	c, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := c.summaries[evidenceHash]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) CacheSummary(_ context.Context, collection, evidenceHash string, summary core.DocumentSummary) error {
	c, err := m.get(collection)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.summaries[evidenceHash] = summary
	return nil
}

func (m *MemoryStore) DeleteCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

func (m *MemoryStore) DeleteDocument(_ context.Context, collection, docHash string) error {
	c, err := m.get(collection)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, seg := range c.segments {
		if seg.DocID == docHash {
			delete(c.segments, id)
		}
	}
	return nil
}

func (m *MemoryStore) Stats(_ context.Context) (core.CacheStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := core.CacheStats{Collections: len(m.collections)}
	for _, c := range m.collections {
		stats.SegmentCount += len(c.segments)
		stats.SummaryCount += len(c.summaries)
	}
	return stats, nil
}
