// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/larderhq/larder/internal/model"
)

// FeedbackFilter defines filtering options for feedback queries.
type FeedbackFilter struct {
	Since         *time.Time
	OnlyIncorrect bool
	Limit         int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Rule operations
	CreateRule(ctx context.Context, rule *model.IngredientRule) error
	GetRule(ctx context.Context, id int64) (*model.IngredientRule, error)
	GetActiveRules(ctx context.Context) ([]model.IngredientRule, error)
	GetRulesByIngredient(ctx context.Context, canonicalName string) ([]model.IngredientRule, error)
	GetAllRules(ctx context.Context) ([]model.IngredientRule, error)
	UpdateRule(ctx context.Context, rule *model.IngredientRule) error
	ApproveRule(ctx context.Context, id int64, approvedBy string) error
	DeactivateRule(ctx context.Context, id int64) error
	DeleteRule(ctx context.Context, id int64) error
	IncrementRuleUseCount(ctx context.Context, id int64) error

	// Suggestion operations
	CreateSuggestion(ctx context.Context, suggestion *model.RuleSuggestion) error
	GetSuggestion(ctx context.Context, id int64) (*model.RuleSuggestion, error)
	GetSuggestionsByStatus(ctx context.Context, status model.SuggestionStatus) ([]model.RuleSuggestion, error)
	UpdateSuggestion(ctx context.Context, suggestion *model.RuleSuggestion) error

	// Feedback operations (append-only log)
	SaveFeedback(ctx context.Context, feedback *model.MatchFeedback) error
	GetFeedback(ctx context.Context, filter FeedbackFilter) ([]model.MatchFeedback, error)
	GetFeedbackCount(ctx context.Context) (int, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
