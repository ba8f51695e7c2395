package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/larderhq/larder/internal/common"
	"github.com/larderhq/larder/internal/model"
)

// ApproveSuggestion promotes a pending suggestion into an approved, active
// rule. The rule insert and the suggestion update happen in one storage
// transaction: either the rule exists and the suggestion points at it, or
// neither change is visible.
func (e *Engine) ApproveSuggestion(ctx context.Context, id int64, reviewedBy string) (*model.IngredientRule, error) {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	suggestion, err := tx.GetSuggestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if suggestion.Status != model.SuggestionPending {
		return nil, fmt.Errorf("%w: suggestion %d is %s", common.ErrAlreadyResolved, id, suggestion.Status)
	}
	if suggestion.Ingredient2 == "" {
		return nil, fmt.Errorf("%w: suggestion %d has no counterpart ingredient to build a rule from", common.ErrConflict, id)
	}

	rule := ruleFromSuggestion(suggestion, reviewedBy)
	if err := tx.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule from suggestion %d: %w", id, err)
	}

	now := time.Now()
	suggestion.Status = model.SuggestionApproved
	suggestion.ReviewedBy = reviewedBy
	suggestion.ReviewedAt = &now
	suggestion.CreatedRuleID = &rule.ID
	if err := tx.UpdateSuggestion(ctx, suggestion); err != nil {
		return nil, fmt.Errorf("failed to update suggestion %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	slog.Info("Approved suggestion",
		"suggestion_id", id,
		"rule_id", rule.ID,
		"rule_type", rule.RuleType,
		"reviewed_by", reviewedBy)

	return rule, nil
}

// RejectSuggestion marks a pending suggestion rejected. Rejecting an
// already-resolved suggestion is a conflict, not a silent no-op.
func (e *Engine) RejectSuggestion(ctx context.Context, id int64, reviewedBy, notes string) error {
	return e.resolveSuggestion(ctx, id, model.SuggestionRejected, reviewedBy, notes)
}

// MarkSuggestionNeedsInfo parks a pending suggestion for more evidence.
func (e *Engine) MarkSuggestionNeedsInfo(ctx context.Context, id int64, reviewedBy, notes string) error {
	return e.resolveSuggestion(ctx, id, model.SuggestionNeedsInfo, reviewedBy, notes)
}

func (e *Engine) resolveSuggestion(ctx context.Context, id int64, status model.SuggestionStatus, reviewedBy, notes string) error {
	suggestion, err := e.storage.GetSuggestion(ctx, id)
	if err != nil {
		return err
	}
	if !suggestion.CanTransitionTo(status) {
		return fmt.Errorf("%w: suggestion %d is %s", common.ErrAlreadyResolved, id, suggestion.Status)
	}

	now := time.Now()
	suggestion.Status = status
	suggestion.ReviewedBy = reviewedBy
	suggestion.ReviewedAt = &now
	suggestion.ReviewNotes = notes

	if err := e.storage.UpdateSuggestion(ctx, suggestion); err != nil {
		return fmt.Errorf("failed to update suggestion %d: %w", id, err)
	}

	slog.Info("Resolved suggestion",
		"suggestion_id", id,
		"status", status,
		"reviewed_by", reviewedBy)

	return nil
}

// ruleFromSuggestion materializes the rule a suggestion proposes.
func ruleFromSuggestion(s *model.RuleSuggestion, approvedBy string) *model.IngredientRule {
	now := time.Now()
	rule := &model.IngredientRule{
		RuleType:       s.RuleType(),
		IngredientName: s.Ingredient1,
		IsActive:       true,
		Approved:       true,
		ApprovedBy:     approvedBy,
		ApprovedAt:     &now,
		Source:         model.RuleSourceLearned,
		Notes:          fmt.Sprintf("promoted from suggestion %d (%d occurrences)", s.ID, s.OccurrenceCount),
	}

	switch rule.RuleType {
	case model.RuleTypeExclusion:
		rule.ExcludedMatches = []string{s.Ingredient2}
	case model.RuleTypeEquivalency:
		rule.Equivalents = []string{s.Ingredient2}
		rule.ConfidenceThreshold = s.ConfidenceScore
	case model.RuleTypeCategory:
	}

	return rule
}
