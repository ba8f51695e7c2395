package model

import (
	"fmt"
	"time"
)

// SuggestionType indicates what kind of rule a suggestion would create.
type SuggestionType string

const (
	// SuggestionEquivalency proposes treating two names as interchangeable.
	SuggestionEquivalency SuggestionType = "equivalency"
	// SuggestionExclusion proposes never matching two names.
	SuggestionExclusion SuggestionType = "exclusion"
	// SuggestionCorrection records a one-off correction pattern without a rule shape yet.
	SuggestionCorrection SuggestionType = "correction"
)

// SuggestionStatus tracks the review lifecycle of a suggestion.
type SuggestionStatus string

const (
	// SuggestionPending awaits human review.
	SuggestionPending SuggestionStatus = "pending"
	// SuggestionApproved was promoted into an active rule.
	SuggestionApproved SuggestionStatus = "approved"
	// SuggestionRejected was declined by a reviewer.
	SuggestionRejected SuggestionStatus = "rejected"
	// SuggestionNeedsInfo was returned to the queue pending more evidence.
	SuggestionNeedsInfo SuggestionStatus = "needs_info"
)

// RuleSuggestion is a machine-derived candidate rule awaiting human approval.
type RuleSuggestion struct {
	CreatedAt       time.Time
	ReviewedAt      *time.Time
	CreatedRuleID   *int64
	ReviewedBy      string
	ReviewNotes     string
	Ingredient1     string
	Ingredient2     string
	SuggestionType  SuggestionType
	Status          SuggestionStatus
	ID              int64
	OccurrenceCount int
	ConfidenceScore float64
}

// Validate ensures the suggestion carries a coherent pattern.
func (s *RuleSuggestion) Validate() error {
	if s.Ingredient1 == "" {
		return fmt.Errorf("ingredient1 is required")
	}
	switch s.SuggestionType {
	case SuggestionEquivalency, SuggestionExclusion:
		if s.Ingredient2 == "" {
			return fmt.Errorf("%s suggestion requires ingredient2", s.SuggestionType)
		}
	case SuggestionCorrection:
	default:
		return fmt.Errorf("unknown suggestion type %q", s.SuggestionType)
	}
	if s.OccurrenceCount < 1 {
		return fmt.Errorf("occurrence count must be at least 1")
	}
	if s.ConfidenceScore < 0 || s.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score must be between 0 and 1")
	}
	return nil
}

// CanTransitionTo reports whether the status change is a legal lifecycle move.
// Suggestions only leave pending; resolved suggestions are terminal.
func (s *RuleSuggestion) CanTransitionTo(next SuggestionStatus) bool {
	if s.Status != SuggestionPending {
		return false
	}
	switch next {
	case SuggestionApproved, SuggestionRejected, SuggestionNeedsInfo:
		return true
	case SuggestionPending:
		return false
	}
	return false
}

// RuleType returns the rule type a suggestion of this type would materialize as.
func (s *RuleSuggestion) RuleType() RuleType {
	if s.SuggestionType == SuggestionExclusion {
		return RuleTypeExclusion
	}
	return RuleTypeEquivalency
}
