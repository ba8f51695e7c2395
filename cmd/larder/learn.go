package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/larderhq/larder/internal/engine"
)

func learnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Derive rule suggestions from feedback",
		Long: `Run one learner pass over the recorded incorrect-match feedback.
Recurring patterns become pending rule suggestions; re-running over the
same feedback refreshes counts instead of duplicating suggestions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sinceFlag, _ := cmd.Flags().GetString("since")
			progress, _ := cmd.Flags().GetBool("progress")

			var since *time.Time
			if sinceFlag != "" {
				duration, err := time.ParseDuration(sinceFlag)
				if err != nil {
					return fmt.Errorf("invalid --since duration: %w", err)
				}
				cutoff := time.Now().Add(-duration)
				since = &cutoff
			}

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := engine.DefaultConfig()
			cfg.ShowProgress = progress
			eng := engine.NewWithConfig(db, cfg)

			stats, err := eng.RunLearner(ctx, since)
			if err != nil {
				return fmt.Errorf("learner pass failed: %w", err)
			}

			slog.Info("✓ Learner pass complete",
				"feedback_rows", stats.FeedbackRows,
				"suggestions_created", stats.Created,
				"suggestions_updated", stats.Updated)
			return nil
		},
	}

	cmd.Flags().String("since", "", "Only consider feedback newer than this duration (e.g. 168h)")
	cmd.Flags().Bool("progress", true, "Show a progress bar while writing suggestions")

	return cmd
}
