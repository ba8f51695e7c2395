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
)

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check recipe availability against inventory",
		Long: `Match every ingredient of a recipe against the household inventory
and report which ingredients are covered, which are missing, and whether
the recipe can be made.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			recipePath, _ := cmd.Flags().GetString("recipe")
			inventoryPath, _ := cmd.Flags().GetString("inventory")

			ingredients, err := loadIngredients(recipePath)
			if err != nil {
				return err
			}
			inventory, err := loadInventory(inventoryPath)
			if err != nil {
				return err
			}

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			eng := engine.New(db)
			result, err := eng.CheckAvailability(ctx, ingredients, inventory)
			if err != nil {
				return fmt.Errorf("availability check failed: %w", err)
			}

			printAvailability(ingredients, result)
			return nil
		},
	}

	cmd.Flags().StringP("recipe", "r", "", "Recipe JSON file (required)")
	cmd.Flags().StringP("inventory", "v", "", "Inventory JSON file (required)")

	if err := cmd.MarkFlagRequired("recipe"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}
	if err := cmd.MarkFlagRequired("inventory"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}

	return cmd
}

func printAvailability(ingredients []model.Ingredient, result model.AvailabilityResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INGREDIENT\tMATCHED WITH\tVIA\tCONFIDENCE")
	_, _ = fmt.Fprintln(w, "──────────\t────────────\t───\t──────────")

	for _, ing := range ingredients {
		match := result.Matches[ing.Name]
		if !match.Matched || match.Inventory == nil {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t\n",
				truncateString(ing.Name, 30), "—", "missing")
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			truncateString(ing.Name, 30),
			truncateString(match.Inventory.Name, 30),
			match.MatchType,
			cli.FormatConfidence(match.Confidence))
	}
	_ = w.Flush()

	fmt.Println()
	summary := fmt.Sprintf("%s %d/%d ingredients available (%.0f%%)",
		cli.BasketIcon,
		len(result.AvailableIngredients),
		len(ingredients),
		result.Availability*100)

	switch result.Status() {
	case model.StatusCanMake:
		fmt.Println(cli.FormatSuccess(summary + " — you can make this recipe"))
	case model.StatusPartial:
		fmt.Println(cli.WarningStyle.Render(summary))
	case model.StatusMissingIngredients:
		fmt.Println(cli.FormatError(summary))
	}
}
