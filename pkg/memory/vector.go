package memory

import (
	"context"
	"math"
	"sort"
	"sync"
)

// VectorStore is a vector database keyed by collection. The kernel maps one
// collection per memory channel.
type VectorStore interface {
	// CreateCollection creates a collection if it doesn't exist.
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	// Upsert adds or updates points in a collection.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns the nearest points to the given vector.
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error)
}

// Point is a stored vector with its payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchResult is one hit from a vector search.
type SearchResult struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Point Point   `json:"point"`
}

// Embedder converts text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SimpleEmbedder is a character-frequency embedder for tests and examples.
// It maps each vocabulary character to one dimension.
type SimpleEmbedder struct {
	vocab string
	index map[rune]int
}

// NewSimpleEmbedder creates an embedder over the lowercase latin alphabet
// plus space.
func NewSimpleEmbedder() *SimpleEmbedder {
	vocab := "abcdefghijklmnopqrstuvwxyz "
	index := make(map[rune]int, len(vocab))
	for i, ch := range vocab {
		index[ch] = i
	}
	return &SimpleEmbedder{vocab: vocab, index: index}
}

// Size returns the embedding dimension.
func (e *SimpleEmbedder) Size() uint64 {
	return uint64(len(e.vocab))
}

func (e *SimpleEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, len(e.vocab))
	for _, ch := range text {
		if ch >= 'A' && ch <= 'Z' {
			ch += 'a' - 'A'
		}
		if i, ok := e.index[ch]; ok {
			vector[i]++
		}
	}
	return vector, nil
}

// InMemoryVectorStore implements VectorStore with cosine similarity search.
type InMemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Point
}

// NewInMemoryVectorStore creates an empty vector store.
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{collections: make(map[string]map[string]Point)}
}

func (s *InMemoryVectorStore) CreateCollection(_ context.Context, name string, _ uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = make(map[string]Point)
	}
	return nil
}

func (s *InMemoryVectorStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Point)
		s.collections[collection] = coll
	}
	for _, p := range points {
		coll[p.ID] = p
	}
	return nil
}

func (s *InMemoryVectorStore) Search(_ context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SearchResult
	for _, p := range s.collections[collection] {
		score := cosineSimilarity(vector, p.Vector)
		if score < scoreThreshold {
			continue
		}
		out = append(out, SearchResult{ID: p.ID, Score: score, Point: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
