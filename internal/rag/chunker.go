package rag

import (
	"fmt"
	"strings"
)

// SplitWords splits text into overlapping windows of up to chunkSize words.
// Consecutive windows share overlap words; the window start advances by
// (chunkSize - overlap) each step, so the final chunk may be shorter than
// chunkSize. Whitespace-only input yields no chunks.
//
// overlap must be smaller than chunkSize — a zero or negative stride would
// stall the scan, so the configuration is rejected up front rather than
// clamped.
func SplitWords(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("rag: chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("rag: overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("rag: overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	// Stop once a window has covered the last word: a start inside the
	// previous window's overlap would emit a chunk containing no new words.
	stride := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(words)-overlap; start += stride {
		end := min(start+chunkSize, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks, nil
}
