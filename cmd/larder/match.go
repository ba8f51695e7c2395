package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/larderhq/larder/internal/cli"
	"github.com/larderhq/larder/internal/engine"
	"github.com/larderhq/larder/internal/model"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <ingredient>",
		Short: "Match one ingredient against inventory",
		Long: `Match a single recipe ingredient against the inventory file and
report the best match with its confidence.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			inventoryPath, _ := cmd.Flags().GetString("inventory")
			quantity, _ := cmd.Flags().GetFloat64("quantity")
			unit, _ := cmd.Flags().GetString("unit")

			inventory, err := loadInventory(inventoryPath)
			if err != nil {
				return err
			}

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			ingredient := model.Ingredient{
				Name:     args[0],
				Quantity: quantity,
				Unit:     unit,
			}

			eng := engine.New(db)
			result, err := eng.MatchIngredient(ctx, ingredient, inventory)
			if err != nil {
				return fmt.Errorf("match failed: %w", err)
			}

			if !result.Matched || result.Inventory == nil {
				fmt.Println(cli.FormatError(fmt.Sprintf("No match for %q", ingredient.Name)))
				return nil
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%q matches %q via %s at %s",
				ingredient.Name,
				result.Inventory.Name,
				result.MatchType,
				cli.FormatConfidence(result.Confidence))))

			if result.RuleID != nil {
				slog.Debug("Match used rule", "rule_id", *result.RuleID)
			}
			return nil
		},
	}

	cmd.Flags().StringP("inventory", "v", "", "Inventory JSON file (required)")
	cmd.Flags().Float64P("quantity", "q", 1, "Required quantity")
	cmd.Flags().StringP("unit", "u", "", "Unit of the required quantity")

	if err := cmd.MarkFlagRequired("inventory"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}

	return cmd
}
