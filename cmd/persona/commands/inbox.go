package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/calvia/persona/internal/inbox"
)

// NewInboxCmd constructs the `persona inbox` command, which lists the leads
// and unanswered questions recorded by the agent's tools.
func NewInboxCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List recorded leads and unanswered questions",
		Long: `List the contact requests and unanswered questions the agent recorded.

Entries are stored in a local SQLite database (default: ~/.persona/inbox.db,
override with PERSONA_INBOX_DB) and shown newest first.

Examples:
  persona inbox
  persona inbox --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dbPath := os.Getenv("PERSONA_INBOX_DB")
			if dbPath == "disabled" {
				return fmt.Errorf("inbox: disabled via PERSONA_INBOX_DB=disabled")
			}
			if dbPath == "" {
				var err error
				dbPath, err = inbox.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("inbox: %w", err)
				}
			}

			store, err := inbox.Open(dbPath)
			if err != nil {
				return fmt.Errorf("inbox: %w", err)
			}
			defer func() { _ = store.Close() }()

			contacts, err := store.RecentContacts(ctx, limit)
			if err != nil {
				return fmt.Errorf("inbox: %w", err)
			}
			questions, err := store.RecentQuestions(ctx, limit)
			if err != nil {
				return fmt.Errorf("inbox: %w", err)
			}

			fmt.Printf("Contacts (%d):\n", len(contacts))
			for _, c := range contacts {
				fmt.Printf("  %s  %-30s %-20s %s\n",
					c.CreatedAt.Format("2006-01-02 15:04"), c.Email, c.Name, c.Notes)
			}
			if len(contacts) == 0 {
				fmt.Println("  (none)")
			}

			fmt.Printf("\nUnanswered questions (%d):\n", len(questions))
			for _, q := range questions {
				fmt.Printf("  %s  %s\n", q.CreatedAt.Format("2006-01-02 15:04"), q.Text)
			}
			if len(questions) == 0 {
				fmt.Println("  (none)")
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show per section")

	return cmd
}
