package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calvia/persona/internal/agent"
	"github.com/calvia/persona/internal/logging"
	"github.com/calvia/persona/internal/provider"
	"github.com/calvia/persona/internal/rag"
)

// NewAskCmd constructs the `persona ask` command, which sends a single
// question to the agent and streams the response to stdout.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the persona a question from the command line",
		Long: `Ask the persona agent a single question and print the streamed answer.

Useful for smoke-testing the provider, embedding, and document configuration
before exposing the web UI.

Examples:
  persona ask "what did you work on most recently?"
  persona ask "which programming languages do you know?"
  RAG_ENABLED=false persona ask "summarise your career in two sentences"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			name, err := personaName()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			documents, err := loadDocuments(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			var retriever rag.Retriever
			if ragEnabled() {
				store, _, err := buildStore(ctx, log, documents)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				retriever = store
			}

			inboxStore := openInbox(log)
			if inboxStore != nil {
				defer func() { _ = inboxStore.Close() }()
			}

			personaAgent, err := agent.New(ctx, &agent.Config{
				ChatModel:   chatModel,
				Tools:       buildTools(buildSinks(log, inboxStore)),
				PersonaName: name,
				Retriever:   retriever,
				Documents:   documents,
				TopK:        getEnvInt("RAG_TOP_K", defaultTopK),
			})
			if err != nil {
				return fmt.Errorf("ask: failed to initialise agent: %w", err)
			}

			question := strings.Join(args, " ")
			if err := personaAgent.Chat(ctx, question, nil, os.Stdout); err != nil {
				return err //nolint:wrapcheck // CLI entry point — error goes directly to cobra
			}
			fmt.Println()
			return nil
		},
	}

	return cmd
}
