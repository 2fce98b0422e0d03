// Package agent wires together the Eino ReAct agent with the persona tools and
// the retrieval store to form the core Q&A assistant. The agent handles the
// full ReAct loop: it decides when to record a lead or an unanswered question
// via tools, and when to respond directly from the persona's background.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/calvia/persona/internal/budget"
	"github.com/calvia/persona/internal/logging"
	"github.com/calvia/persona/internal/rag"
)

// Chat message roles accepted in client-supplied history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single prior exchange in the conversation, supplied by the client
// with each request. The agent itself is stateless between requests.
type Turn struct {
	// Role is "user" or "assistant". Unknown roles are skipped.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Config holds the dependencies required to construct a PersonaAgent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Tools is the list of recording tools available to the agent.
	Tools []tool.BaseTool

	// PersonaName is the full name the agent speaks as.
	PersonaName string

	// Retriever serves relevant background chunks for each query.
	// May be nil when retrieval is disabled; the full documents are then
	// injected instead.
	Retriever rag.Retriever

	// Documents maps document name to full text, used as prompt context
	// whenever retrieval is disabled or returns nothing.
	Documents map[string]string

	// TopK controls how many chunks are injected per query.
	// Defaults to 5 if zero.
	TopK int

	// MaxContextTokens is the estimated token budget for the full input context
	// (system prompt + history + user message). History is trimmed oldest-first
	// to fit. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// PersonaAgent wraps the Eino ReAct agent with persona-specific behaviour:
// it builds the in-character system prompt, injects retrieved background
// context, and streams the model's reply.
type PersonaAgent struct {
	// reactAgent is the underlying Eino ReAct loop agent.
	reactAgent *react.Agent

	// name is the persona's full name.
	name string

	// retriever is the optional chunk retriever for background context.
	retriever rag.Retriever

	// documents holds the full background texts for the no-retrieval fallback.
	documents map[string]string

	// topK is the number of chunks to inject per query.
	topK int

	// maxContextTokens is the estimated token budget for the full input context.
	maxContextTokens int
}

// New constructs a PersonaAgent from the provided Config.
func New(ctx context.Context, cfg *Config) (*PersonaAgent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if cfg.PersonaName == "" {
		return nil, fmt.Errorf("agent: PersonaName must not be empty")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}

	agentCfg := &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: cfg.Tools,
		},
	}

	reactAgent, err := react.NewAgent(ctx, agentCfg)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create ReAct agent: %w", err)
	}

	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &PersonaAgent{
		reactAgent:       reactAgent,
		name:             cfg.PersonaName,
		retriever:        cfg.Retriever,
		documents:        cfg.Documents,
		topK:             topK,
		maxContextTokens: maxCtx,
	}, nil
}

// Chat sends a user message to the agent and streams the response to the
// provided writer. Client-supplied history is injected between the system
// prompt and the current message, trimmed oldest-first to fit the token
// budget. Retrieval failures are non-fatal: the agent falls back to the full
// background documents and answers anyway.
func (a *PersonaAgent) Chat(ctx context.Context, message string, history []Turn, w io.Writer) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("agent: message must not be empty")
	}

	messages := a.buildMessages(ctx, message, history)

	sr, err := a.reactAgent.Stream(ctx, messages)
	if err != nil {
		return fmt.Errorf("agent: stream failed: %w", err)
	}
	defer sr.Close()

	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("agent: stream receive error: %w", err)
		}
		if msg != nil && msg.Content != "" {
			if _, err := fmt.Fprint(w, msg.Content); err != nil {
				return fmt.Errorf("agent: write error: %w", err)
			}
		}
	}

	return nil
}

// buildMessages constructs the message slice for the agent: system prompt
// (with retrieved or full-document context), trimmed history, current message.
func (a *PersonaAgent) buildMessages(ctx context.Context, message string, history []Turn) []*schema.Message {
	system := schema.SystemMessage(a.systemPrompt(ctx, message))
	current := schema.UserMessage(message)

	var historyMsgs []*schema.Message
	for _, t := range history {
		switch t.Role {
		case RoleUser:
			historyMsgs = append(historyMsgs, schema.UserMessage(t.Content))
		case RoleAssistant:
			historyMsgs = append(historyMsgs, schema.AssistantMessage(t.Content, nil))
		}
	}

	// Trim history oldest-first so the total estimated token count fits within
	// the configured context budget.
	fixed := []*schema.Message{system, current}
	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, a.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	result := make([]*schema.Message, 0, len(historyMsgs)+2)
	result = append(result, system)
	result = append(result, historyMsgs...)
	result = append(result, current)
	return result
}

// systemPrompt builds the in-character system prompt for the current query.
// When a retriever is configured and returns chunks, only those chunks are
// injected as context; otherwise the full background documents are included.
func (a *PersonaAgent) systemPrompt(ctx context.Context, message string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are acting as %s. You are answering questions on %s's website, "+
		"particularly questions related to %s's career, background, skills and experience. "+
		"Your responsibility is to represent %s for interactions on the website as faithfully as possible. "+
		"Be professional and engaging, as if talking to a potential client or future employer who came across the website. "+
		"If you don't know the answer to any question, use your record_unknown_question tool to record the question that you couldn't answer, even if it's about something trivial or unrelated to career. "+
		"If the user is engaging in discussion, try to steer them towards getting in touch via email; ask for their email and record it using your record_user_details tool. ",
		a.name, a.name, a.name, a.name)

	results := a.retrieve(ctx, message)
	if len(results) > 0 {
		sb.WriteString("\n\n## Relevant Information:\n")
		for _, r := range results {
			fmt.Fprintf(&sb, "\n[%s - Chunk %d]:\n%s\n", r.Source, r.ChunkIndex+1, r.Text)
		}
	} else {
		// Retrieval disabled or empty: include the full background documents.
		for _, name := range sortedKeys(a.documents) {
			fmt.Fprintf(&sb, "\n\n## %s:\n%s\n", name, a.documents[name])
		}
	}

	fmt.Fprintf(&sb, "\nWith this context, please chat with the user, always staying in character as %s.", a.name)
	return sb.String()
}

// retrieve queries the retriever, logging and swallowing errors so a broken
// embedding backend degrades to full-document context instead of failing the
// whole conversation.
func (a *PersonaAgent) retrieve(ctx context.Context, message string) []rag.Result {
	if a.retriever == nil {
		return nil
	}
	results, err := a.retriever.Retrieve(ctx, message, a.topK)
	if err != nil {
		logging.FromContext(ctx).Warn("retrieval failed, continuing with full documents", slog.Any("error", err))
		return nil
	}
	return results
}

// sortedKeys returns the map keys in ascending order for deterministic prompts.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
