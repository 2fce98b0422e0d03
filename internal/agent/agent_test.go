package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/calvia/persona/internal/budget"
	"github.com/calvia/persona/internal/rag"
)

// fakeRetriever returns canned results or a canned error.
type fakeRetriever struct {
	results []rag.Result
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _ int) ([]rag.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

// testAgent builds a PersonaAgent directly, bypassing New so prompt-building
// can be tested without a live chat model.
func testAgent(t *testing.T, retriever rag.Retriever, documents map[string]string) *PersonaAgent {
	t.Helper()
	return &PersonaAgent{
		name:             "Ada Lovelace",
		retriever:        retriever,
		documents:        documents,
		topK:             5,
		maxContextTokens: budget.DefaultMaxContextTokens,
	}
}

func TestSystemPrompt_WithRetrievedChunks(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{results: []rag.Result{
		{Text: "Worked on the analytical engine.", Source: "resume", ChunkIndex: 2, TotalChunks: 7, Similarity: 0.91},
		{Text: "First published algorithm.", Source: "summary", ChunkIndex: 0, TotalChunks: 3, Similarity: 0.82},
	}}
	a := testAgent(t, r, map[string]string{"summary": "full summary text"})

	prompt := a.systemPrompt(context.Background(), "What did you work on?")

	for _, want := range []string{
		"You are acting as Ada Lovelace.",
		"record_unknown_question",
		"record_user_details",
		"## Relevant Information:",
		"[resume - Chunk 3]:\nWorked on the analytical engine.",
		"[summary - Chunk 1]:\nFirst published algorithm.",
		"always staying in character as Ada Lovelace.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\nprompt:\n%s", want, prompt)
		}
	}

	// Retrieved chunks replace the full documents, never both.
	if strings.Contains(prompt, "full summary text") {
		t.Error("prompt should not include full documents when chunks were retrieved")
	}
}

func TestSystemPrompt_FallbackToFullDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		retriever rag.Retriever
	}{
		{"nil retriever", nil},
		{"empty results", &fakeRetriever{}},
		{"retrieval error", &fakeRetriever{err: errors.New("embed backend down")}},
	}

	docs := map[string]string{
		"summary": "A pioneer of computing.",
		"resume":  "Analyst, metaphysician.",
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := testAgent(t, tc.retriever, docs)

			prompt := a.systemPrompt(context.Background(), "hello")

			if strings.Contains(prompt, "## Relevant Information:") {
				t.Error("fallback prompt should not contain the retrieved-chunks header")
			}
			for _, want := range []string{
				"## resume:\nAnalyst, metaphysician.",
				"## summary:\nA pioneer of computing.",
			} {
				if !strings.Contains(prompt, want) {
					t.Errorf("prompt missing %q\nprompt:\n%s", want, prompt)
				}
			}
			// Deterministic document order: sorted by name.
			if strings.Index(prompt, "## resume:") > strings.Index(prompt, "## summary:") {
				t.Error("documents should appear in sorted name order")
			}
		})
	}
}

func TestBuildMessages_HistoryOrder(t *testing.T) {
	t.Parallel()

	a := testAgent(t, nil, nil)
	history := []Turn{
		{Role: RoleUser, Content: "Hi there"},
		{Role: RoleAssistant, Content: "Hello! How can I help?"},
		{Role: "tool", Content: "ignored"},
	}

	msgs := a.buildMessages(context.Background(), "What do you do?", history)

	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages (system + 2 history + user), got %d", len(msgs))
	}
	if msgs[0].Role != schema.System {
		t.Errorf("first message role: got %s, want system", msgs[0].Role)
	}
	if msgs[1].Role != schema.User || msgs[1].Content != "Hi there" {
		t.Errorf("history[0] = %s %q", msgs[1].Role, msgs[1].Content)
	}
	if msgs[2].Role != schema.Assistant || msgs[2].Content != "Hello! How can I help?" {
		t.Errorf("history[1] = %s %q", msgs[2].Role, msgs[2].Content)
	}
	if msgs[3].Role != schema.User || msgs[3].Content != "What do you do?" {
		t.Errorf("last message = %s %q", msgs[3].Role, msgs[3].Content)
	}
}

func TestBuildMessages_TrimsOldestHistory(t *testing.T) {
	t.Parallel()

	a := testAgent(t, nil, nil)
	a.maxContextTokens = 400 // tight budget so older turns must be dropped

	big := strings.Repeat("words and more words ", 30)
	history := []Turn{
		{Role: RoleUser, Content: "oldest " + big},
		{Role: RoleAssistant, Content: "old reply " + big},
		{Role: RoleUser, Content: "recent question"},
		{Role: RoleAssistant, Content: "recent answer"},
	}

	msgs := a.buildMessages(context.Background(), "current", history)

	for _, m := range msgs {
		if strings.HasPrefix(m.Content, "oldest ") {
			t.Error("oldest history message should have been trimmed")
		}
	}
	var sawRecent bool
	for _, m := range msgs {
		if m.Content == "recent answer" {
			sawRecent = true
		}
	}
	if !sawRecent {
		t.Error("recent history should survive trimming")
	}
	if msgs[len(msgs)-1].Content != "current" {
		t.Error("current message must always be last")
	}
}

func TestRetrieve_PassesQueryThrough(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{results: []rag.Result{{Text: "x", Source: "summary"}}}
	a := testAgent(t, r, nil)

	a.systemPrompt(context.Background(), "tell me about your skills")

	if len(r.queries) != 1 || r.queries[0] != "tell me about your skills" {
		t.Errorf("retriever queries = %v", r.queries)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), &Config{}); err == nil {
		t.Error("expected error for nil ChatModel")
	}
}
