package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/larderhq/larder/internal/engine"
	"github.com/larderhq/larder/internal/model"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record match feedback",
		Long: `Record a user verdict on a match result. Feedback rows are
append-only and feed the suggestion learner.`,
	}

	cmd.AddCommand(feedbackRecordCmd())
	return cmd
}

func feedbackRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one feedback verdict",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			ingredient, _ := cmd.Flags().GetString("ingredient")
			product, _ := cmd.Flags().GetString("product")
			correct, _ := cmd.Flags().GetBool("correct")
			matchType, _ := cmd.Flags().GetString("match-type")
			confidence, _ := cmd.Flags().GetFloat64("confidence")
			correction, _ := cmd.Flags().GetString("correction")

			feedback := &model.MatchFeedback{
				RecipeIngredient:   ingredient,
				MatchedProductName: product,
				MatchType:          model.MatchType(matchType),
				ConfidenceScore:    confidence,
				IsCorrect:          correct,
				UserFeedback:       correction,
				FeedbackType:       model.FeedbackThumbsDown,
			}
			if correct {
				feedback.FeedbackType = model.FeedbackThumbsUp
			}

			if err := feedback.Validate(); err != nil {
				return fmt.Errorf("invalid feedback: %w", err)
			}

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			eng := engine.New(db)
			if err := eng.RecordFeedback(ctx, feedback); err != nil {
				return err
			}

			slog.Info("✓ Feedback recorded",
				"id", feedback.ID,
				"ingredient", ingredient,
				"product", product,
				"correct", correct)
			return nil
		},
	}

	cmd.Flags().StringP("ingredient", "i", "", "Recipe ingredient name (required)")
	cmd.Flags().StringP("product", "p", "", "Matched inventory product name (required)")
	cmd.Flags().Bool("correct", false, "The match was correct")
	cmd.Flags().String("match-type", string(model.MatchNone), "Match type that was judged (exact, equivalency, category, containment, none)")
	cmd.Flags().Float64("confidence", 0, "Confidence score of the judged match")
	cmd.Flags().StringP("correction", "c", "", "Free-text correction, e.g. the product that should have matched")

	if err := cmd.MarkFlagRequired("ingredient"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}
	if err := cmd.MarkFlagRequired("product"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}

	return cmd
}
