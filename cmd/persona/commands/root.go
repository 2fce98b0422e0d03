// Package commands defines all Cobra CLI commands for the persona binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/calvia/persona/internal/audit"
	"github.com/calvia/persona/internal/config"
	"github.com/calvia/persona/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "persona",
		Short: "persona — an AI agent that answers questions as you, from your own documents",
		Long: `persona serves a personal Q&A agent for your website.

It loads your background documents (resume, summary, LinkedIn export),
indexes them for retrieval, and answers visitor questions in your voice.
Visitors who want to get in touch are recorded and pushed to your phone.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.persona/config.yaml).
See 'persona --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Pick up a local .env first so it participates in config layering.
			// Missing file is fine — env vars and YAML still apply.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.persona/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewIndexCmd(),
		NewInboxCmd(),
		NewVersionCmd(),
	)

	return root
}
