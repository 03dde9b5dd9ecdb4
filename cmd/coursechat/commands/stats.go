package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robolearn/coursechat/internal/store"
)

// NewStatsCmd constructs the `coursechat stats` command, which prints usage
// statistics from the conversation log.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print usage statistics from the conversation log",
		Long: `Print totals, average response time, average retrieval confidence, and
the most-asked questions of the last 7 days.

The conversation log lives at ~/.coursechat/conversations.db by default;
override with COURSECHAT_HISTORY_DB.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := os.Getenv("COURSECHAT_HISTORY_DB")
			if dbPath == "disabled" {
				return fmt.Errorf("stats: conversation logging is disabled")
			}
			if dbPath == "" {
				var err error
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("stats: %w", err)
				}
			}

			s, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer s.Close()

			stats, err := s.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			fmt.Printf("Conversations:      %d\n", stats.TotalConversations)
			fmt.Printf("Feedback entries:   %d\n", stats.TotalFeedback)
			fmt.Printf("Avg response time:  %.0f ms\n", stats.AvgResponseTimeMs)
			fmt.Printf("Avg confidence:     %.2f\n", stats.AvgConfidence)
			if len(stats.TopQuestions) > 0 {
				fmt.Println("Top questions (last 7 days):")
				for _, q := range stats.TopQuestions {
					fmt.Printf("  %3d  %s\n", q.Count, q.Question)
				}
			}
			return nil
		},
	}
}
