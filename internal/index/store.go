// Package index stores document chunks with their embedding vectors in
// SQLite. Vectors live in BLOB columns with a precomputed L2 norm, and
// similarity is computed in Go at query time. This suits corpora of a few
// thousand chunks; larger corpora would need a dedicated vector database.
package index

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Chunk is one stored document fragment
type Chunk struct {
	ID       string
	Content  string
	Source   string
	Category string
	Vector   []float32
}

// scored pairs a chunk with its similarity to the current query
type scored struct {
	chunk Chunk
	score float64
}

// Store is a SQLite-backed chunk index
type Store struct {
	db        *sql.DB
	dimension int
}

// Open opens (creating if needed) the index database at dbPath
func Open(dbPath string, dimension int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	s := &Store{db: db, dimension: dimension}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS passages (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			category TEXT NOT NULL,
			vector BLOB NOT NULL,
			norm REAL NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_category ON passages(category)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to initialize passages table: %w", err)
		}
	}
	return nil
}

// Add stores chunks in one transaction, replacing chunks with the same ID
func (s *Store) Add(chunks []Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO passages (id, content, source, category, vector, norm, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range chunks {
		if len(c.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d", c.ID, s.dimension, len(c.Vector))
		}
		norm := calculateNorm(c.Vector)
		if _, err := stmt.Exec(c.ID, c.Content, c.Source, c.Category, vectorToBlob(c.Vector), norm, now); err != nil {
			return fmt.Errorf("failed to store chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// Result is one search hit
type Result struct {
	Chunk Chunk
	Score float64 // cosine similarity
}

// Search returns the topK chunks most similar to queryVector. A non-empty
// category restricts candidates to that category.
func (s *Store) Search(queryVector []float32, topK int, category string) ([]Result, error) {
	candidates, err := s.rank(queryVector, category)
	if err != nil {
		return nil, err
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return toResults(candidates), nil
}

// SearchMMR returns topK chunks re-ranked with maximal marginal relevance.
// fetchK similarity candidates are pulled first, then picked greedily
// trading relevance against redundancy by lambda (1 = pure relevance).
func (s *Store) SearchMMR(queryVector []float32, topK, fetchK int, lambda float64) ([]Result, error) {
	candidates, err := s.rank(queryVector, "")
	if err != nil {
		return nil, err
	}
	if len(candidates) > fetchK {
		candidates = candidates[:fetchK]
	}
	if len(candidates) <= topK {
		return toResults(candidates), nil
	}

	var selected []scored
	remaining := append([]scored(nil), candidates...)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			redundancy := 0.0
			for _, sel := range selected {
				if sim := CosineSimilarity(cand.chunk.Vector, sel.chunk.Vector); sim > redundancy {
					redundancy = sim
				}
			}
			mmr := lambda*cand.score - (1-lambda)*redundancy
			if mmr > bestScore {
				bestScore = mmr
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return toResults(selected), nil
}

// rank loads all candidate chunks and sorts them by cosine similarity
func (s *Store) rank(queryVector []float32, category string) ([]scored, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d", s.dimension, len(queryVector))
	}
	queryNorm := calculateNorm(queryVector)
	if queryNorm == 0 {
		return nil, fmt.Errorf("query vector has zero norm")
	}

	query := "SELECT id, content, source, category, vector, norm FROM passages"
	args := []any{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}
	defer rows.Close()

	var candidates []scored
	for rows.Next() {
		var c Chunk
		var blob []byte
		var norm float64
		if err := rows.Scan(&c.ID, &c.Content, &c.Source, &c.Category, &blob, &norm); err != nil {
			continue
		}
		if norm == 0 {
			continue
		}
		c.Vector = blobToVector(blob)
		similarity := calculateDotProduct(queryVector, c.Vector) / (queryNorm * norm)
		candidates = append(candidates, scored{chunk: c, score: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan passages: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates, nil
}

func toResults(candidates []scored) []Result {
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{Chunk: c.chunk, Score: c.score}
	}
	return results
}

// Count returns the number of stored chunks
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM passages").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return count, nil
}

// DeleteAll removes every stored chunk
func (s *Store) DeleteAll() error {
	if _, err := s.db.Exec("DELETE FROM passages"); err != nil {
		return fmt.Errorf("failed to clear passages: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func blobToVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

func calculateNorm(vector []float32) float64 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func calculateDotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// CosineSimilarity computes the cosine similarity of two vectors
func CosineSimilarity(a, b []float32) float64 {
	dot := calculateDotProduct(a, b)
	normA := calculateNorm(a)
	normB := calculateNorm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}
