package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/tool"

	"github.com/calvia/persona/internal/docs"
	"github.com/calvia/persona/internal/embedder"
	"github.com/calvia/persona/internal/inbox"
	"github.com/calvia/persona/internal/notify"
	"github.com/calvia/persona/internal/rag"
	"github.com/calvia/persona/internal/tools"
)

// Retrieval defaults, used when the RAG_* env vars are unset.
const (
	defaultChunkSize = 500
	defaultOverlap   = 50
	defaultTopK      = 5
	defaultDocsDir   = "me"
)

// personaName resolves the persona's name from PERSONA_NAME.
// The name is required: the agent cannot speak as nobody.
func personaName() (string, error) {
	name := os.Getenv("PERSONA_NAME")
	if name == "" {
		return "", fmt.Errorf("PERSONA_NAME is required (the full name the agent answers as)")
	}
	return name, nil
}

// loadDocuments loads the background documents from PERSONA_DOCS_DIR
// (default: ./me).
func loadDocuments(log *slog.Logger) (map[string]string, error) {
	dir := getEnvOrDefault("PERSONA_DOCS_DIR", defaultDocsDir)
	documents, err := docs.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents from %s: %w", dir, err)
	}
	log.Info("documents loaded", slog.String("dir", dir), slog.Int("count", len(documents)))
	return documents, nil
}

// ragEnabled reports whether retrieval is active. RAG_ENABLED defaults to true;
// anything other than "false"/"0"/"no" keeps it on.
func ragEnabled() bool {
	switch os.Getenv("RAG_ENABLED") {
	case "false", "0", "no":
		return false
	default:
		return true
	}
}

// buildStore validates the embedding configuration, constructs the embedder,
// and indexes documents into an in-memory retrieval store.
// Returns the store together with the embedder used (for readiness probes).
func buildStore(ctx context.Context, log *slog.Logger, documents map[string]string) (*rag.Store, rag.Embedder, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, fmt.Errorf("embedding configuration invalid: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	store, err := rag.NewStore(emb)
	if err != nil {
		return nil, nil, err
	}

	chunkSize := getEnvInt("RAG_CHUNK_SIZE", defaultChunkSize)
	overlap := getEnvInt("RAG_OVERLAP", defaultOverlap)

	if err := store.AddDocuments(ctx, documents, chunkSize, overlap); err != nil {
		return nil, nil, fmt.Errorf("failed to index documents: %w", err)
	}
	log.Info("documents indexed",
		slog.Int("chunks", store.Len()),
		slog.Int("chunk_size", chunkSize),
		slog.Int("overlap", overlap),
	)

	return store, emb, nil
}

// openInbox opens the inbox store. PERSONA_INBOX_DB overrides the default
// path (~/.persona/inbox.db); "disabled" turns persistence off.
// Open failures are non-fatal — tools fall back to push notifications only.
func openInbox(log *slog.Logger) *inbox.SQLiteStore {
	dbPath := os.Getenv("PERSONA_INBOX_DB")
	if dbPath == "disabled" {
		log.Info("inbox: disabled via PERSONA_INBOX_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = inbox.DefaultDBPath()
		if err != nil {
			log.Warn("inbox: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}

	store, err := inbox.Open(dbPath)
	if err != nil {
		log.Warn("inbox: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("inbox: store opened", slog.String("path", dbPath))
	return store
}

// buildSinks assembles the tool sinks from the optional notifier and inbox.
func buildSinks(log *slog.Logger, inboxStore *inbox.SQLiteStore) *tools.Sinks {
	sinks := &tools.Sinks{Log: log}

	if notifier, ok := notify.NewFromEnv(); ok {
		sinks.Notifier = notifier
		log.Info("pushover notifications enabled")
	} else {
		log.Info("pushover notifications disabled", slog.String("reason", "PUSHOVER_TOKEN/PUSHOVER_USER not set"))
	}

	// A nil interface must stay nil, not a typed nil pointer.
	if inboxStore != nil {
		sinks.Inbox = inboxStore
	}

	return sinks
}

// buildTools constructs the recording tools registered with the agent.
func buildTools(sinks *tools.Sinks) []tool.BaseTool {
	return []tool.BaseTool{
		tools.NewContactTool(sinks),
		tools.NewQuestionTool(sinks),
	}
}

// getEnvOrDefault returns the env var value or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset or invalid.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
