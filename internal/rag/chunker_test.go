package rag

import (
	"reflect"
	"strings"
	"testing"
)

func Test_SplitWords_OverlappingWindows(t *testing.T) {
	t.Parallel()

	chunks, err := SplitWords("alpha beta gamma delta epsilon", 3, 1)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{"alpha beta gamma", "gamma delta epsilon"}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("want %v, got %v", want, chunks)
	}
}

func Test_SplitWords_LastChunkMayBeShort(t *testing.T) {
	t.Parallel()

	chunks, err := SplitWords("a b c d e f g", 3, 0)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{"a b c", "d e f", "g"}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("want %v, got %v", want, chunks)
	}
}

// A window start that falls inside the previous window's overlap would
// produce a chunk made entirely of already-emitted words. The scan must end
// once a window reaches the last word instead.
func Test_SplitWords_NoTrailingOverlapOnlyChunk(t *testing.T) {
	t.Parallel()

	chunks, err := SplitWords("a b c d e", 4, 3)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{"a b c d", "b c d e"}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("want %v, got %v", want, chunks)
	}

	// A single word fully consumed by the overlap yields no chunks at all.
	chunks, err = SplitWords("only", 3, 1)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("want 0 chunks, got %v", chunks)
	}
}

func Test_SplitWords_EmptyAndWhitespaceInput(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "\n\t  \n"} {
		chunks, err := SplitWords(text, 10, 2)
		if err != nil {
			t.Fatalf("split %q: %v", text, err)
		}
		if len(chunks) != 0 {
			t.Errorf("input %q: want 0 chunks, got %d", text, len(chunks))
		}
	}
}

func Test_SplitWords_CollapsesInternalWhitespace(t *testing.T) {
	t.Parallel()

	chunks, err := SplitWords("one   two\n\nthree\tfour", 4, 0)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "one two three four" {
		t.Errorf("want single normalised chunk, got %v", chunks)
	}
}

// Test_SplitWords_ChunkCountFormula verifies the window-count identity
// ceil(max(w-o, 0) / (c-o)) for a range of sizes and overlaps.
func Test_SplitWords_ChunkCountFormula(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		words, size, overlap int
	}{
		{1, 3, 1},
		{5, 3, 1},
		{7, 3, 0},
		{10, 4, 2},
		{100, 7, 3},
		{500, 500, 50},
		{501, 500, 50},
		{1200, 500, 50},
	} {
		text := strings.Repeat("w ", tc.words)
		chunks, err := SplitWords(text, tc.size, tc.overlap)
		if err != nil {
			t.Fatalf("split w=%d c=%d o=%d: %v", tc.words, tc.size, tc.overlap, err)
		}

		stride := tc.size - tc.overlap
		want := (max(tc.words-tc.overlap, 0) + stride - 1) / stride
		if len(chunks) != want {
			t.Errorf("w=%d c=%d o=%d: want %d chunks, got %d",
				tc.words, tc.size, tc.overlap, want, len(chunks))
		}
	}
}

func Test_SplitWords_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name          string
		size, overlap int
	}{
		{"zero chunk size", 0, 0},
		{"negative chunk size", -3, 0},
		{"negative overlap", 5, -1},
		{"overlap equals chunk size", 5, 5},
		{"overlap exceeds chunk size", 5, 8},
	} {
		if _, err := SplitWords("some words here", tc.size, tc.overlap); err == nil {
			t.Errorf("%s: want error, got nil", tc.name)
		}
	}
}
