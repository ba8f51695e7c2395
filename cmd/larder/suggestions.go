package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/larderhq/larder/internal/cli"
	"github.com/larderhq/larder/internal/engine"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/tui"
)

func suggestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "suggestions",
		Aliases: []string{"suggestion"},
		Short:   "Review learned rule suggestions",
		Long: `List and resolve the rule suggestions the learner derived from
incorrect-match feedback. Approving a suggestion atomically creates the
corresponding rule.`,
	}

	// Subcommands
	cmd.AddCommand(suggestionsListCmd())
	cmd.AddCommand(suggestionsApproveCmd())
	cmd.AddCommand(suggestionsRejectCmd())
	cmd.AddCommand(suggestionsReviewCmd())

	return cmd
}

func suggestionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rule suggestions",
		Long:  `List rule suggestions, highest confidence first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			statusFlag, _ := cmd.Flags().GetString("status")
			status := model.SuggestionStatus(statusFlag)
			switch status {
			case model.SuggestionPending, model.SuggestionApproved,
				model.SuggestionRejected, model.SuggestionNeedsInfo:
			default:
				return fmt.Errorf("invalid status: %s (valid: pending, approved, rejected, needs_info)", statusFlag)
			}

			suggestions, err := db.GetSuggestionsByStatus(ctx, status)
			if err != nil {
				return fmt.Errorf("failed to get suggestions: %w", err)
			}

			if len(suggestions) == 0 {
				slog.Info("No suggestions found", "status", status)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tTYPE\tINGREDIENT\tPAIRED WITH\tSEEN\tCONFIDENCE\tSTATUS")
			_, _ = fmt.Fprintln(w, "──\t────\t──────────\t───────────\t────\t──────────\t──────")

			for _, s := range suggestions {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.0f%% (%s)\t%s\n",
					s.ID,
					s.SuggestionType,
					truncateString(s.Ingredient1, 24),
					truncateString(s.Ingredient2, 24),
					s.OccurrenceCount,
					s.ConfidenceScore*100,
					cli.ConfidenceLevel(s.ConfidenceScore),
					s.Status)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringP("status", "s", "pending", "Filter by status (pending, approved, rejected, needs_info)")
	return cmd
}

func suggestionsApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a suggestion",
		Long: `Approve a pending suggestion. The suggestion is resolved and the
corresponding rule is created in the same transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			reviewer, _ := cmd.Flags().GetString("by")

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			eng := engine.New(db)
			rule, err := eng.ApproveSuggestion(ctx, id, reviewer)
			if err != nil {
				return fmt.Errorf("failed to approve suggestion %d: %w", id, err)
			}

			slog.Info("✓ Suggestion approved",
				"suggestion_id", id,
				"rule_id", rule.ID,
				"ingredient", rule.IngredientName,
				"type", rule.RuleType)
			return nil
		},
	}

	cmd.Flags().String("by", "cli", "Reviewer name recorded on the approval")
	return cmd
}

func suggestionsRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a suggestion",
		Long:  `Reject a pending suggestion. Rejected suggestions are terminal.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			reviewer, _ := cmd.Flags().GetString("by")
			notes, _ := cmd.Flags().GetString("notes")

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			eng := engine.New(db)
			if err := eng.RejectSuggestion(ctx, id, reviewer, notes); err != nil {
				return fmt.Errorf("failed to reject suggestion %d: %w", id, err)
			}

			slog.Info("✓ Suggestion rejected", "suggestion_id", id)
			return nil
		},
	}

	cmd.Flags().String("by", "cli", "Reviewer name recorded on the rejection")
	cmd.Flags().StringP("notes", "n", "", "Review notes")
	return cmd
}

func suggestionsReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review pending suggestions interactively",
		Long:  `Walk the pending suggestion queue in an interactive terminal UI.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			reviewer, _ := cmd.Flags().GetString("by")

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			pending, err := db.GetSuggestionsByStatus(ctx, model.SuggestionPending)
			if err != nil {
				return fmt.Errorf("failed to get pending suggestions: %w", err)
			}

			eng := engine.New(db)
			return tui.Run(ctx, eng, pending, reviewer)
		},
	}

	cmd.Flags().String("by", "cli", "Reviewer name recorded on resolutions")
	return cmd
}
