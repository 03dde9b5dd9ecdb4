// Package commands defines all Cobra CLI commands for the coursechat binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/robolearn/coursechat/internal/audit"
	"github.com/robolearn/coursechat/internal/config"
	"github.com/robolearn/coursechat/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coursechat",
		Short: "RAG-powered chat assistant for course documentation",
		Long: `coursechat answers questions about course materials by retrieving
relevant documentation passages from a vector store and grounding an LLM
response on them.

Typical workflow:
  coursechat ingest --docs ./docs     index the course markdown
  coursechat ask "what is SLAM?"      one-shot question on the CLI
  coursechat serve                    start the HTTP chat API

Configuration comes from env vars, an optional .env file, or a YAML config
file (~/.coursechat/config.yaml). See 'coursechat --help' for commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env is optional; absence is not an error.
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.coursechat/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewAskCmd(),
		NewServeCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
