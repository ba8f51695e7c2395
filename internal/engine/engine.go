// Package engine orchestrates the matching engine: it loads rule snapshots
// from storage, runs availability checks, records feedback, and drives the
// suggestion learning and review workflows.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/larderhq/larder/internal/common"
	"github.com/larderhq/larder/internal/learner"
	"github.com/larderhq/larder/internal/match"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/service"
)

// Engine ties the pure matching core to the persistence layer.
type Engine struct {
	storage  service.Storage
	matchCfg match.Config
	learnCfg learner.Config
	progress bool
}

// Config holds configuration options for the engine.
type Config struct {
	Match        match.Config
	Learn        learner.Config
	ShowProgress bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Match:        match.DefaultConfig(),
		Learn:        learner.DefaultConfig(),
		ShowProgress: false,
	}
}

// New creates an engine with default configuration.
func New(storage service.Storage) *Engine {
	return NewWithConfig(storage, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(storage service.Storage, config Config) *Engine {
	return &Engine{
		storage:  storage,
		matchCfg: config.Match,
		learnCfg: config.Learn,
		progress: config.ShowProgress,
	}
}

// RuleSet loads the approved, active rules and indexes them into an
// immutable snapshot. Callers should reuse one snapshot per availability
// check so mid-flight admin edits never produce a half-updated view.
func (e *Engine) RuleSet(ctx context.Context) (*match.RuleSet, error) {
	rules, err := e.storage.GetActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}
	slog.Debug("Loaded rule snapshot", "rules", len(rules))
	return match.NewRuleSet(rules), nil
}

// MatchIngredient matches a single ingredient against the inventory using a
// fresh rule snapshot, and bumps the use counter of the rule that produced
// an accepted match.
func (e *Engine) MatchIngredient(ctx context.Context, ingredient model.Ingredient, inventory []model.InventoryItem) (model.MatchResult, error) {
	rules, err := e.RuleSet(ctx)
	if err != nil {
		return model.MatchResult{}, err
	}

	result, err := match.Ingredient(ingredient, inventory, rules, e.matchCfg)
	if err != nil {
		return model.MatchResult{}, err
	}

	e.recordRuleUse(ctx, result)
	return result, nil
}

// CheckAvailability computes recipe availability against one rule snapshot.
func (e *Engine) CheckAvailability(ctx context.Context, ingredients []model.Ingredient, inventory []model.InventoryItem) (model.AvailabilityResult, error) {
	rules, err := e.RuleSet(ctx)
	if err != nil {
		return model.AvailabilityResult{}, err
	}

	result, err := match.RecipeAvailability(ingredients, inventory, rules, e.matchCfg)
	if err != nil {
		return model.AvailabilityResult{}, err
	}

	for _, m := range result.Matches {
		e.recordRuleUse(ctx, m)
	}

	slog.Info("Checked recipe availability",
		"ingredients", len(ingredients),
		"inventory", len(inventory),
		"availability", result.Availability,
		"status", result.Status())

	return result, nil
}

// recordRuleUse bumps use counters best-effort; a counter failure never
// fails the matching call. Counter writes race with concurrent checks, so
// transient lock errors are retried before giving up.
func (e *Engine) recordRuleUse(ctx context.Context, result model.MatchResult) {
	if !result.Matched || result.RuleID == nil {
		return
	}

	err := common.WithRetry(ctx, func() error {
		if err := e.storage.IncrementRuleUseCount(ctx, *result.RuleID); err != nil {
			return &common.RetryableError{Err: err, Retryable: common.IsRetryable(err)}
		}
		return nil
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: 50 * time.Millisecond})
	if err != nil {
		slog.Warn("Failed to increment rule use count",
			"rule_id", *result.RuleID, "error", err)
	}
}

// RecordFeedback appends one immutable feedback row. Recording is
// independent of the learner: it succeeds even when suggestion derivation
// is broken or disabled.
func (e *Engine) RecordFeedback(ctx context.Context, feedback *model.MatchFeedback) error {
	if err := e.storage.SaveFeedback(ctx, feedback); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	slog.Debug("Recorded match feedback",
		"ingredient", feedback.RecipeIngredient,
		"product", feedback.MatchedProductName,
		"correct", feedback.IsCorrect)
	return nil
}

// LearnerStats summarizes one suggestion-derivation pass.
type LearnerStats struct {
	FeedbackRows int
	Created      int
	Updated      int
}

// RunLearner derives suggestions from the incorrect-match feedback recorded
// since the given time (all of it when since is nil) and upserts them:
// existing pending suggestions get their occurrence counts refreshed, new
// patterns become new pending rows. Re-running over the same window is
// idempotent.
func (e *Engine) RunLearner(ctx context.Context, since *time.Time) (LearnerStats, error) {
	var stats LearnerStats

	feedback, err := e.storage.GetFeedback(ctx, service.FeedbackFilter{
		Since:         since,
		OnlyIncorrect: true,
	})
	if err != nil {
		return stats, fmt.Errorf("failed to load feedback: %w", err)
	}
	stats.FeedbackRows = len(feedback)

	existing, err := e.loadAllSuggestions(ctx)
	if err != nil {
		return stats, err
	}

	derived := learner.Derive(feedback, existing, e.learnCfg)
	if len(derived) == 0 {
		slog.Info("Learner pass complete", "feedback_rows", len(feedback), "suggestions", 0)
		return stats, nil
	}

	var bar *progressbar.ProgressBar
	if e.progress {
		bar = progressbar.NewOptions(len(derived),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Deriving suggestions..."),
		)
	}

	for i := range derived {
		s := &derived[i]
		if s.ID != 0 {
			if err := e.storage.UpdateSuggestion(ctx, s); err != nil {
				return stats, fmt.Errorf("failed to update suggestion %d: %w", s.ID, err)
			}
			stats.Updated++
		} else {
			if err := e.storage.CreateSuggestion(ctx, s); err != nil {
				return stats, fmt.Errorf("failed to create suggestion: %w", err)
			}
			stats.Created++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	slog.Info("Learner pass complete",
		"feedback_rows", stats.FeedbackRows,
		"created", stats.Created,
		"updated", stats.Updated)

	return stats, nil
}

func (e *Engine) loadAllSuggestions(ctx context.Context) ([]model.RuleSuggestion, error) {
	statuses := []model.SuggestionStatus{
		model.SuggestionPending,
		model.SuggestionApproved,
		model.SuggestionRejected,
		model.SuggestionNeedsInfo,
	}

	var all []model.RuleSuggestion
	for _, status := range statuses {
		batch, err := e.storage.GetSuggestionsByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s suggestions: %w", status, err)
		}
		all = append(all, batch...)
	}
	return all, nil
}
