// Package rag implements the retrieval core of the persona agent: chunking
// profile documents into overlapping word windows, embedding them through an
// external provider, and ranking stored chunks against a query embedding by
// cosine similarity. The store is in-memory and rebuilt wholesale on every
// AddDocuments call — there is no persistent index and no partial update.
package rag

import (
	"context"
)

// Chunk is one contiguous word-window extracted from a source document.
// Chunks are created during AddDocuments and never mutated afterwards.
type Chunk struct {
	// Text is the space-joined words of this window.
	Text string

	// Source is the name of the document this chunk was cut from.
	Source string

	// Index is the 0-based position of this chunk among its source's chunks.
	Index int

	// Total is the number of chunks produced from the same source.
	Total int
}

// Result is a single retrieval hit. Results are produced fresh on every
// Retrieve call and ordered by descending similarity.
type Result struct {
	// Text is the chunk content to inject into the prompt.
	Text string

	// Source is the originating document name.
	Source string

	// ChunkIndex is the chunk's 0-based position within its source.
	ChunkIndex int

	// TotalChunks is the number of chunks the source was split into.
	TotalChunks int

	// Similarity is the cosine similarity between the query embedding and
	// this chunk's embedding. Higher is more relevant; range [-1, 1].
	Similarity float64
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the interface the agent uses to fetch relevant context for a
// query. *Store satisfies it; the server wraps it for instrumentation.
type Retriever interface {
	// Retrieve returns the top-k most relevant chunks for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Result, error)
}
