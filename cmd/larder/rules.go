package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/larderhq/larder/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage ingredient matching rules",
		Long: `Manage the equivalency, exclusion, and category rules the matcher
consults when deciding whether an inventory item satisfies a recipe ingredient.`,
	}

	// Subcommands
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesCreateCmd())
	cmd.AddCommand(rulesApproveCmd())
	cmd.AddCommand(rulesDeactivateCmd())
	cmd.AddCommand(rulesDeleteCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingredient rules",
		Long:  `List ingredient rules with their type, payload, and usage.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			// Get database connection
			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			// Get filter flags
			ingredient, _ := cmd.Flags().GetString("ingredient")
			activeOnly, _ := cmd.Flags().GetBool("active")

			// Fetch rules
			var rules []model.IngredientRule
			switch {
			case ingredient != "":
				rules, err = db.GetRulesByIngredient(ctx, ingredient)
			case activeOnly:
				rules, err = db.GetActiveRules(ctx)
			default:
				rules, err = db.GetAllRules(ctx)
			}

			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			if len(rules) == 0 {
				slog.Info("No rules found")
				return nil
			}

			// Display rules in a table
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tINGREDIENT\tTYPE\tPAYLOAD\tSOURCE\tAPPROVED\tACTIVE\tUSE COUNT")
			_, _ = fmt.Fprintln(w, "──\t──────────\t────\t───────\t──────\t────────\t──────\t─────────")

			for _, rule := range rules {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t%t\t%d\n",
					rule.ID,
					truncateString(rule.IngredientName, 24),
					rule.RuleType,
					truncateString(rulePayloadSummary(&rule), 40),
					rule.Source,
					rule.Approved,
					rule.IsActive,
					rule.UseCount)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringP("ingredient", "i", "", "Filter by canonical ingredient name")
	cmd.Flags().BoolP("active", "a", false, "Show only approved, active rules")
	return cmd
}

func rulePayloadSummary(rule *model.IngredientRule) string {
	switch rule.RuleType {
	case model.RuleTypeEquivalency:
		return strings.Join(rule.Equivalents, ", ")
	case model.RuleTypeExclusion:
		return "never: " + strings.Join(rule.ExcludedMatches, ", ")
	case model.RuleTypeCategory:
		if rule.Category == nil {
			return ""
		}
		return fmt.Sprintf("%s (%s)", rule.Category.CategoryID, rule.Category.MatchMode)
	}
	return ""
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show rule details",
		Long:  `Display detailed information about a specific ingredient rule.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			// Get database connection
			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			rule, err := db.GetRule(ctx, id)
			if err != nil {
				return fmt.Errorf("rule %d not found", id)
			}

			slog.Info("Ingredient Rule Details:")
			slog.Info("  ID", "id", rule.ID)
			slog.Info("  Ingredient", "name", rule.IngredientName)
			slog.Info("  Type", "type", rule.RuleType)

			switch rule.RuleType {
			case model.RuleTypeEquivalency:
				slog.Info("  Equivalents", "names", strings.Join(rule.Equivalents, ", "))
				if rule.ConfidenceThreshold > 0 {
					slog.Info("  Confidence Threshold", "threshold", fmt.Sprintf("%.2f", rule.ConfidenceThreshold))
				}
			case model.RuleTypeExclusion:
				slog.Info("  Excluded Matches", "names", strings.Join(rule.ExcludedMatches, ", "))
			case model.RuleTypeCategory:
				if rule.Category != nil {
					slog.Info("  Category", "id", rule.Category.CategoryID, "mode", rule.Category.MatchMode)
				}
			}

			slog.Info("  Source", "source", rule.Source)
			slog.Info("  Approved", "approved", rule.Approved)
			if rule.Approved {
				slog.Info("  Approved By", "reviewer", rule.ApprovedBy)
				if rule.ApprovedAt != nil {
					slog.Info("  Approved At", "date", rule.ApprovedAt.Format("2006-01-02 15:04:05"))
				}
			}
			slog.Info("  Active", "active", rule.IsActive)
			slog.Info("  System Default", "system", rule.IsSystemDefault)
			slog.Info("  Use Count", "count", rule.UseCount)
			if rule.Notes != "" {
				slog.Info("  Notes", "notes", rule.Notes)
			}
			slog.Info("  Created", "date", rule.CreatedAt.Format("2006-01-02 15:04:05"))
			slog.Info("  Updated", "date", rule.UpdatedAt.Format("2006-01-02 15:04:05"))

			return nil
		},
	}
}

func rulesCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an ingredient rule",
		Long: `Create a new admin-authored rule. Exactly one payload flag set is
required: --equivalents, --exclude, or --category.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			// Get required flags
			ingredient, _ := cmd.Flags().GetString("ingredient")
			if ingredient == "" {
				return fmt.Errorf("ingredient is required")
			}

			// Get payload flags
			equivalents, _ := cmd.Flags().GetString("equivalents")
			excluded, _ := cmd.Flags().GetString("exclude")
			category, _ := cmd.Flags().GetString("category")
			categoryMode, _ := cmd.Flags().GetString("category-mode")
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			notes, _ := cmd.Flags().GetString("notes")
			approved, _ := cmd.Flags().GetBool("approved")

			rule := &model.IngredientRule{
				IngredientName:      ingredient,
				Source:              model.RuleSourceAdmin,
				ConfidenceThreshold: threshold,
				Notes:               notes,
				IsActive:            true,
				Approved:            approved,
			}

			payloadCount := 0
			if equivalents != "" {
				rule.RuleType = model.RuleTypeEquivalency
				rule.Equivalents = splitList(equivalents)
				payloadCount++
			}
			if excluded != "" {
				rule.RuleType = model.RuleTypeExclusion
				rule.ExcludedMatches = splitList(excluded)
				payloadCount++
			}
			if category != "" {
				mode := model.CategoryMatchAny
				if categoryMode != "" {
					switch categoryMode {
					case "any":
						mode = model.CategoryMatchAny
					case "strict":
						mode = model.CategoryMatchStrict
					default:
						return fmt.Errorf("invalid category mode: %s (valid: any, strict)", categoryMode)
					}
				}
				rule.RuleType = model.RuleTypeCategory
				rule.Category = &model.CategoryPayload{CategoryID: category, MatchMode: mode}
				payloadCount++
			}

			if payloadCount != 1 {
				return fmt.Errorf("exactly one of --equivalents, --exclude, or --category is required")
			}

			// Get database connection
			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := db.CreateRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			slog.Info("✓ Rule created successfully",
				"id", rule.ID,
				"ingredient", rule.IngredientName,
				"type", rule.RuleType,
				"approved", rule.Approved)

			return nil
		},
	}

	// Required flags
	cmd.Flags().StringP("ingredient", "i", "", "Canonical ingredient name (required)")

	// Payload flags
	cmd.Flags().StringP("equivalents", "e", "", "Comma-separated equivalent names")
	cmd.Flags().StringP("exclude", "x", "", "Comma-separated names that must never match")
	cmd.Flags().StringP("category", "c", "", "Category ID for category matching")
	cmd.Flags().String("category-mode", "any", "Category match mode (any, strict)")
	cmd.Flags().Float64P("threshold", "t", 0, "Rule-specific confidence threshold (0-1)")
	cmd.Flags().StringP("notes", "n", "", "Free-form notes")
	cmd.Flags().Bool("approved", true, "Create the rule pre-approved")

	if err := cmd.MarkFlagRequired("ingredient"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}

	return cmd
}

func rulesApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a rule",
		Long:  `Mark a rule as approved so it participates in matching.`,
		Args:  cobra.ExactArgs(1),
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

			if err := db.ApproveRule(ctx, id, reviewer); err != nil {
				return fmt.Errorf("failed to approve rule %d: %w", id, err)
			}

			slog.Info("✓ Rule approved", "id", id, "reviewer", reviewer)
			return nil
		},
	}

	cmd.Flags().String("by", "cli", "Reviewer name recorded on the approval")
	return cmd
}

func rulesDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a rule",
		Long: `Remove a rule from matching without deleting it. This is the only
way to retire a seeded system default.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := db.DeactivateRule(ctx, id); err != nil {
				return fmt.Errorf("failed to deactivate rule %d: %w", id, err)
			}

			slog.Info("✓ Rule deactivated", "id", id)
			return nil
		},
	}
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Long:  `Permanently delete a rule. System defaults cannot be deleted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := db.DeleteRule(ctx, id); err != nil {
				return fmt.Errorf("failed to delete rule %d: %w", id, err)
			}

			slog.Info("✓ Rule deleted", "id", id)
			return nil
		},
	}
}
