package retrieval

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Chunk is a stored piece of a document with its embedding.
type Chunk struct {
	ID         string
	UserID     string
	DocumentID string
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredChunk is a search hit with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk
	Score float64
}

// Store persists chunks and answers similarity queries.
type Store interface {
	// Add stores chunks. Missing IDs are assigned.
	Add(ctx context.Context, chunks []Chunk) error

	// Search returns up to topK chunks for the user with similarity at or
	// above threshold, most similar first. An empty documentID searches
	// all of the user's documents.
	Search(ctx context.Context, embedding []float32, userID, documentID string, topK int, threshold float64) ([]ScoredChunk, error)

	// DeleteDocument removes all chunks of one document.
	DeleteDocument(ctx context.Context, userID, documentID string) error

	// Close releases store resources.
	Close() error
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// encodeVector serializes an embedding as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserializes an embedding blob.
func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, errors.New("retrieval: malformed embedding blob")
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}

// rankChunks filters candidates by threshold and returns the topK best.
func rankChunks(candidates []Chunk, embedding []float32, topK int, threshold float64) []ScoredChunk {
	scored := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		score := CosineSimilarity(embedding, c.Embedding)
		if score >= threshold {
			scored = append(scored, ScoredChunk{Chunk: c, Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// MemoryStore is an in-memory Store for tests and ephemeral use.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []Chunk
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add implements Store.
func (s *MemoryStore) Add(_ context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("retrieval: store is closed")
	}
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// Search implements Store.
func (s *MemoryStore) Search(_ context.Context, embedding []float32, userID, documentID string, topK int, threshold float64) ([]ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New("retrieval: store is closed")
	}

	var candidates []Chunk
	for _, c := range s.chunks {
		if c.UserID != userID {
			continue
		}
		if documentID != "" && c.DocumentID != documentID {
			continue
		}
		candidates = append(candidates, c)
	}
	return rankChunks(candidates, embedding, topK, threshold), nil
}

// DeleteDocument implements Store.
func (s *MemoryStore) DeleteDocument(_ context.Context, userID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.UserID == userID && c.DocumentID == documentID {
			continue
		}
		kept = append(kept, c)
	}
	s.chunks = kept
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

var _ Store = (*MemoryStore)(nil)

// errStoreClosed formats consistently with the sqlite store.
func errStoreClosed(op string) error {
	return fmt.Errorf("retrieval: %s on closed store", op)
}
