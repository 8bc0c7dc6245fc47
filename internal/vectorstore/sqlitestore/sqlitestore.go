// Package sqlitestore is the optional persisted vectorstore.Store backend.
// It satisfies the same contract as the in-memory store, keyed exactly as
// the persisted summary layout describes: one row per segment keyed by
// id, one row per summary keyed by evidence_hash.
package sqlitestore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"docsum/internal/apperr"
	"docsum/internal/core"
	"docsum/internal/retrieval"
	"docsum/internal/segment"
)

// Store is a SQLite-backed implementation of vectorstore.Store.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) a SQLite database under dataDir and ensures the
// schema exists.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "docsum.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			vector_dim INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS segments (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			text TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			embedding BLOB,
			salience_score REAL,
			section_path TEXT,
			PRIMARY KEY (collection, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_segments_doc ON segments(collection, doc_id);`,
		`CREATE INDEX IF NOT EXISTS idx_segments_hash ON segments(collection, content_hash);`,
		`CREATE TABLE IF NOT EXISTS summaries (
			collection TEXT NOT NULL,
			evidence_hash TEXT NOT NULL,
			text TEXT NOT NULL,
			provider TEXT,
			model_used TEXT,
			generated_at DATETIME,
			PRIMARY KEY (collection, evidence_hash)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Initialise(_ context.Context, collection string, vectorDim int) error {
	_, err := s.db.Exec(
		`INSERT INTO collections(name, vector_dim) VALUES (?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		collection, vectorDim,
	)
	return err
}

func (s *Store) collectionExists(collection string) (bool, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM collections WHERE name = ?`, collection).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) requireCollection(collection string) error {
	ok, err := s.collectionExists(collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !ok {
		return apperr.New(apperr.NotInitialised, "collection "+collection+" not initialised")
	}
	return nil
}

func (s *Store) HasDocument(_ context.Context, collection, docHash string) (bool, error) {
	if err := s.requireCollection(collection); err != nil {
		return false, err
	}
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM segments WHERE collection = ? AND (id LIKE ? OR content_hash LIKE ?)`,
		collection, segment.SanitiseDocID(docHash)+"%", docHash+"%",
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) UpsertSegments(_ context.Context, collection string, segments []core.Segment) error {
	if err := s.requireCollection(collection); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, seg := range segments {
		if len(seg.Embedding) == 0 {
			continue
		}
		blob, err := serializeEmbedding(seg.Embedding)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		pathJSON, err := json.Marshal(seg.SectionPath)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO segments(collection, id, doc_id, idx, text, content_hash, embedding, salience_score, section_path)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(collection, id) DO UPDATE SET
				doc_id=excluded.doc_id, idx=excluded.idx, text=excluded.text,
				content_hash=excluded.content_hash, embedding=excluded.embedding,
				salience_score=excluded.salience_score, section_path=excluded.section_path`,
			collection, seg.ID, seg.DocID, seg.Index, seg.Text, seg.ContentHash, blob, seg.SalienceScore, string(pathJSON),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Search(_ context.Context, collection string, queryEmbedding []float32, topK int, docHash string) ([]core.Segment, error) {
	if err := s.requireCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.queryCandidates(collection, docHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []core.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		seg.QuerySimilarity = retrieval.Cosine(queryEmbedding, seg.Embedding)
		candidates = append(candidates, seg)
	}
	sortBySimilarityDescending(candidates)
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *Store) queryCandidates(collection, docHash string) (*sql.Rows, error) {
	if docHash == "" {
		return s.db.Query(
			`SELECT id, doc_id, idx, text, content_hash, embedding, salience_score, section_path
			 FROM segments WHERE collection = ?`, collection)
	}
	return s.db.Query(
		`SELECT id, doc_id, idx, text, content_hash, embedding, salience_score, section_path
		 FROM segments WHERE collection = ? AND (id LIKE ? OR content_hash LIKE ?)`,
		collection, docHash+"%", docHash+"%")
}

func scanSegment(rows *sql.Rows) (core.Segment, error) {
	var seg core.Segment
	var blob []byte
	var pathJSON string
	if err := rows.Scan(&seg.ID, &seg.DocID, &seg.Index, &seg.Text, &seg.ContentHash, &blob, &seg.SalienceScore, &pathJSON); err != nil {
		return seg, err
	}
	emb, err := deserializeEmbedding(blob)
	if err != nil {
		return seg, err
	}
	seg.Embedding = emb
	if pathJSON != "" {
		_ = json.Unmarshal([]byte(pathJSON), &seg.SectionPath)
	}
	return seg, nil
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

func (s *Store) GetDocumentSegments(_ context.Context, collection, docHash string) ([]core.Segment, error) {
	if err := s.requireCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT id, doc_id, idx, text, content_hash, embedding, salience_score, section_path
		 FROM segments WHERE collection = ? AND doc_id = ? ORDER BY idx ASC`,
		collection, docHash,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

func (s *Store) GetSegmentsByHash(_ context.Context, collection string, contentHashes []string) (map[string]core.Segment, error) {
	if err := s.requireCollection(collection); err != nil {
		return nil, err
	}
	out := make(map[string]core.Segment)
	if len(contentHashes) == 0 {
		return out, nil
	}
	placeholders := strings.Repeat("?,", len(contentHashes))
	placeholders = strings.TrimSuffix(placeholders, ",")
	args := make([]any, 0, len(contentHashes)+1)
	args = append(args, collection)
	for _, h := range contentHashes {
		args = append(args, h)
	}
	rows, err := s.db.Query(
		`SELECT id, doc_id, idx, text, content_hash, embedding, salience_score, section_path
		 FROM segments WHERE collection = ? AND content_hash IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out[seg.ContentHash] = seg
	}
	return out, nil
}

func (s *Store) RemoveStaleSegments(_ context.Context, collection, docHash string, validHashes []string) error {
	if err := s.requireCollection(collection); err != nil {
		return err
	}
	valid := make(map[string]bool, len(validHashes))
	for _, h := range validHashes {
		valid[h] = true
	}
	rows, err := s.db.Query(`SELECT id, content_hash FROM segments WHERE collection = ? AND doc_id = ?`, collection, docHash)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			rows.Close()
			return err
		}
		if !valid[hash] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	for _, id := range stale {
		if _, err := s.db.Exec(`DELETE FROM segments WHERE collection = ? AND id = ?`, collection, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetCachedSummary(_ context.Context, collection, evidenceHash string) (*core.DocumentSummary, error) {
	if err := s.requireCollection(collection); err != nil {
		return nil, err
	}
	var sum core.DocumentSummary
	var generatedAt time.Time
	err := s.db.QueryRow(
		`SELECT text, provider, model_used, generated_at FROM summaries WHERE collection = ? AND evidence_hash = ?`,
		collection, evidenceHash,
	).Scan(&sum.Text, &sum.Provider, &sum.ModelUsed, &generatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sum.EvidenceHash = evidenceHash
	sum.GeneratedAt = generatedAt
	return &sum, nil
}

func (s *Store) CacheSummary(_ context.Context, collection, evidenceHash string, summary core.DocumentSummary) error {
	if err := s.requireCollection(collection); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO summaries(collection, evidence_hash, text, provider, model_used, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(collection, evidence_hash) DO UPDATE SET
			text=excluded.text, provider=excluded.provider, model_used=excluded.model_used, generated_at=excluded.generated_at`,
		collection, evidenceHash, summary.Text, summary.Provider, summary.ModelUsed, summary.GeneratedAt,
	)
	return err
}

func (s *Store) DeleteCollection(_ context.Context, collection string) error {
	if _, err := s.db.Exec(`DELETE FROM segments WHERE collection = ?`, collection); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM summaries WHERE collection = ?`, collection); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM collections WHERE name = ?`, collection)
	return err
}

func (s *Store) DeleteDocument(_ context.Context, collection, docHash string) error {
	if err := s.requireCollection(collection); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM segments WHERE collection = ? AND doc_id = ?`, collection, docHash)
	return err
}

func (s *Store) Stats(_ context.Context) (core.CacheStats, error) {
	var stats core.CacheStats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM collections`).Scan(&stats.Collections); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM segments`).Scan(&stats.SegmentCount); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM summaries`).Scan(&stats.SummaryCount); err != nil {
		return stats, err
	}
	return stats, nil
}

// serializeEmbedding converts a float32 slice to little-endian bytes for
// BLOB storage.
func serializeEmbedding(embedding []float32) ([]byte, error) {
	if embedding == nil {
		return nil, nil
	}
	buf := new(bytes.Buffer)
	for _, val := range embedding {
		if err := binary.Write(buf, binary.LittleEndian, val); err != nil {
			return nil, fmt.Errorf("serialize embedding: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// deserializeEmbedding converts a BLOB back into a float32 slice.
func deserializeEmbedding(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	buf := bytes.NewReader(data)
	var embedding []float32
	for buf.Len() > 0 {
		var val float32
		if err := binary.Read(buf, binary.LittleEndian, &val); err != nil {
			return nil, fmt.Errorf("deserialize embedding: %w", err)
		}
		embedding = append(embedding, val)
	}
	return embedding, nil
}
