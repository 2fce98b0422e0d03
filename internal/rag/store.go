package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// embedBatchSize is the maximum number of chunks sent to the embedding
// provider per request, matching common provider request-size limits.
const embedBatchSize = 100

// snapshot is an immutable view of the store contents. vectors[i] is the
// embedding of chunks[i]; retrieval maps a vector index straight back to a
// chunk index, so this alignment must hold for every snapshot ever published.
type snapshot struct {
	chunks  []Chunk
	vectors [][]float32
}

// Store is the in-memory embedding store. AddDocuments rebuilds the whole
// store and publishes the result as one atomic snapshot swap; Retrieve reads
// the current snapshot and scans it without holding the lock. Single writer,
// many readers.
type Store struct {
	// embedder produces vectors for both document chunks and queries.
	// The same provider and model must serve both, or similarity scores
	// are meaningless.
	embedder Embedder

	mu   sync.RWMutex
	snap *snapshot
}

// NewStore constructs an empty Store backed by the given embedder.
func NewStore(embedder Embedder) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	return &Store{embedder: embedder, snap: &snapshot{}}, nil
}

// AddDocuments chunks every document, embeds all chunks in sequential batches,
// and replaces the store contents with the new collection. Documents are
// iterated in sorted-name order so chunk indexing is deterministic regardless
// of map iteration order. On any embedding failure the previous snapshot is
// left untouched — readers never observe a partially built store.
func (s *Store) AddDocuments(ctx context.Context, documents map[string]string, chunkSize, overlap int) error {
	if len(documents) == 0 {
		return fmt.Errorf("rag: documents must not be empty")
	}

	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []Chunk
	for _, name := range names {
		pieces, err := SplitWords(documents[name], chunkSize, overlap)
		if err != nil {
			return fmt.Errorf("rag: chunking %q: %w", name, err)
		}
		for i, text := range pieces {
			all = append(all, Chunk{
				Text:   text,
				Source: name,
				Index:  i,
				Total:  len(pieces),
			})
		}
	}

	vectors := make([][]float32, 0, len(all))
	for start := 0; start < len(all); start += embedBatchSize {
		end := min(start+embedBatchSize, len(all))
		batch := make([]string, 0, end-start)
		for _, c := range all[start:end] {
			batch = append(batch, c.Text)
		}

		embedded, err := s.embedder.Embed(ctx, batch)
		if err != nil {
			return fmt.Errorf("rag: embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(embedded) != len(batch) {
			return fmt.Errorf("rag: embedder returned %d vectors for %d chunks", len(embedded), len(batch))
		}
		vectors = append(vectors, embedded...)
	}

	// All vectors must share one dimensionality or the similarity sweep
	// would silently compare truncated prefixes.
	for i := 1; i < len(vectors); i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return fmt.Errorf("rag: vector %d has dimension %d, expected %d", i, len(vectors[i]), len(vectors[0]))
		}
	}

	s.mu.Lock()
	s.snap = &snapshot{chunks: all, vectors: vectors}
	s.mu.Unlock()
	return nil
}

// Len returns the number of chunks currently stored.
func (s *Store) Len() int {
	return len(s.current().chunks)
}

// Sources returns the per-document chunk counts of the current snapshot.
func (s *Store) Sources() map[string]int {
	counts := make(map[string]int)
	for _, c := range s.current().chunks {
		counts[c.Source] = c.Total
	}
	return counts
}

// Retrieve embeds the query and returns the topK stored chunks ranked by
// descending cosine similarity. An empty store yields an empty result with no
// provider call. Ties break by ascending chunk position (stable sort over the
// flat chunk order); every result carries its score alongside its metadata so
// ranking never re-derives an index by value lookup.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("rag: topK must be positive, got %d", topK)
	}

	snap := s.current()
	if len(snap.chunks) == 0 {
		return nil, nil
	}

	embedded, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query: %w", err)
	}
	if len(embedded) != 1 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for one query", len(embedded))
	}
	queryVec := embedded[0]

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(snap.vectors))
	for i, vec := range snap.vectors {
		ranked[i] = scored{index: i, score: cosineSimilarity(queryVec, vec)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	n := min(topK, len(ranked))
	results := make([]Result, 0, n)
	for _, r := range ranked[:n] {
		c := snap.chunks[r.index]
		results = append(results, Result{
			Text:        c.Text,
			Source:      c.Source,
			ChunkIndex:  c.Index,
			TotalChunks: c.Total,
			Similarity:  r.score,
		})
	}
	return results, nil
}

// current returns the live snapshot under the read lock. Callers scan the
// returned snapshot without holding the lock — snapshots are never mutated
// after publication.
func (s *Store) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// cosineSimilarity computes the cosine similarity between two vectors:
// dot product over the product of Euclidean norms. Zero-norm operands and
// mismatched dimensions yield 0 rather than NaN.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
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
