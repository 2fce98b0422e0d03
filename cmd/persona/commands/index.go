package commands

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/calvia/persona/internal/logging"
	"github.com/calvia/persona/internal/rag"
)

// NewIndexCmd constructs the `persona index` command, which chunks (and
// optionally embeds) the background documents without starting the server.
func NewIndexCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Chunk and embed the background documents without serving",
		Long: `Load the background documents, split them into chunks, and embed them.

Use this to verify the document directory, chunking parameters, and embedding
credentials before starting the server. With --dry-run only the chunking is
performed — no embedding requests are made.

Examples:
  persona index
  persona index --dry-run
  RAG_CHUNK_SIZE=300 RAG_OVERLAP=30 persona index --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			documents, err := loadDocuments(log)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			chunkSize := getEnvInt("RAG_CHUNK_SIZE", defaultChunkSize)
			overlap := getEnvInt("RAG_OVERLAP", defaultOverlap)

			names := make([]string, 0, len(documents))
			for name := range documents {
				names = append(names, name)
			}
			sort.Strings(names)

			total := 0
			for _, name := range names {
				chunks, err := rag.SplitWords(documents[name], chunkSize, overlap)
				if err != nil {
					return fmt.Errorf("index: %s: %w", name, err)
				}
				fmt.Printf("%-20s %4d chunks\n", name, len(chunks))
				total += len(chunks)
			}
			fmt.Printf("%-20s %4d chunks (chunk_size=%d overlap=%d)\n", "total", total, chunkSize, overlap)

			if dryRun {
				return nil
			}

			store, _, err := buildStore(ctx, log, documents)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			log.Info("embedding check passed", slog.Int("indexed_chunks", store.Len()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Chunk only — skip the embedding requests")

	return cmd
}
