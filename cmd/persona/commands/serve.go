package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/calvia/persona/internal/agent"
	"github.com/calvia/persona/internal/logging"
	"github.com/calvia/persona/internal/provider"
	"github.com/calvia/persona/internal/rag"
	"github.com/calvia/persona/internal/server"
	"github.com/calvia/persona/internal/tracing"
)

// NewServeCmd constructs the `persona serve` command, which starts the HTTP
// server and serves the web chat UI.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the persona HTTP server and web chat UI",
		Long: `Start the persona HTTP server on localhost.

The server exposes a REST/SSE API and serves the web chat UI where visitors
talk to the persona. Background documents are loaded and indexed at startup;
each question retrieves the most relevant chunks for the reply.

Examples:
  persona serve
  persona serve --port 9090
  RAG_ENABLED=false persona serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			name, err := personaName()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			log.Info("serve starting",
				slog.String("persona", name),
				slog.String("provider", os.Getenv("MODEL_PROVIDER")),
			)

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			documents, err := loadDocuments(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			metrics := server.NewMetrics(prometheus.NewRegistry())

			// Index documents for retrieval unless RAG is disabled. With
			// retrieval off, the agent sends the full documents as context.
			var (
				store   *rag.Store
				pingers []server.Pinger
			)
			retrievalOn := ragEnabled()
			if retrievalOn {
				var emb rag.Embedder
				store, emb, err = buildStore(ctx, log, documents)
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				backend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "gemini"))
				pingers = append(pingers, server.NewEmbedderPinger(emb, backend))
			} else {
				log.Info("retrieval disabled", slog.String("reason", "RAG_ENABLED=false"))
			}

			inboxStore := openInbox(log)
			if inboxStore != nil {
				defer func() { _ = inboxStore.Close() }()
				pingers = append(pingers, server.NewInboxPinger(inboxStore.Ping))
			}

			sinks := buildSinks(log, inboxStore)
			sinks.OnInvoke = metrics.ObserveToolCall

			var retriever rag.Retriever
			if store != nil {
				retriever = metrics.TimeRetrieval(store)
			}

			personaAgent, err := agent.New(ctx, &agent.Config{
				ChatModel:   chatModel,
				Tools:       buildTools(sinks),
				PersonaName: name,
				Retriever:   retriever,
				Documents:   documents,
				TopK:        getEnvInt("RAG_TOP_K", defaultTopK),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise agent: %w", err)
			}

			documentChunks := make(map[string]int, len(documents))
			for docName := range documents {
				documentChunks[docName] = 0
			}
			if store != nil {
				documentChunks = store.Sources()
			}

			srv, err := server.New(personaAgent, &server.Config{
				Host:             host,
				Port:             port,
				Logger:           log,
				Pingers:          pingers,
				APIKey:           os.Getenv("PERSONA_API_KEY"),
				Metrics:          metrics,
				PersonaName:      name,
				DocumentChunks:   documentChunks,
				RetrievalEnabled: retrievalOn,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
