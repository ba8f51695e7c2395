package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/larderhq/larder/internal/common"
	"github.com/larderhq/larder/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrRuleNotFound       = fmt.Errorf("rule %w", common.ErrNotFound)
	ErrSuggestionNotFound = fmt.Errorf("suggestion %w", common.ErrNotFound)
	ErrInvalidRule        = errors.New("invalid rule")
	ErrInvalidSuggestion  = errors.New("invalid suggestion")
	ErrInvalidFeedback    = errors.New("invalid feedback")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRule validates a rule before persisting it.
func validateRule(rule *model.IngredientRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// validateSuggestion validates a suggestion before persisting it.
func validateSuggestion(suggestion *model.RuleSuggestion) error {
	if suggestion == nil {
		return fmt.Errorf("%w: suggestion", ErrNilParameter)
	}
	if err := suggestion.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSuggestion, err)
	}
	return nil
}

// validateFeedback validates a feedback row before appending it.
func validateFeedback(feedback *model.MatchFeedback) error {
	if feedback == nil {
		return fmt.Errorf("%w: feedback", ErrNilParameter)
	}
	if err := feedback.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeedback, err)
	}
	return nil
}
