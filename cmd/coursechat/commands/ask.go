package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robolearn/coursechat/internal/logging"
)

// NewAskCmd constructs the `coursechat ask` command, which answers a single
// question on the command line.
func NewAskCmd() *cobra.Command {
	var week string
	var topK int
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a one-shot question about the course materials",
		Long: `Ask a single question and print the grounded answer to stdout.

Examples:
  coursechat ask "what is inverse kinematics?"
  coursechat ask --week week-03-04 "how does PID tuning work?"
  coursechat ask --sources "what sensors does the robot use?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			engine, store, _, _, err := buildEngine(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer store.Close()

			result, err := engine.Answer(ctx, args[0], nil, week, topK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(result.Answer)

			if showSources && len(result.Documents) > 0 {
				fmt.Printf("\nConfidence: %.2f\nSources:\n", result.Confidence)
				for _, d := range result.Documents {
					fmt.Printf("  %.3f  %s (%s)\n", d.Score, d.Title, d.URL)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&week, "week", "w", "", "Restrict retrieval to one course week (e.g. week-01-02)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (default 5)")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print retrieved sources and confidence")

	return cmd
}
