// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"time"
)

// RuleType indicates how a rule participates in ingredient matching.
type RuleType string

const (
	// RuleTypeEquivalency declares a set of names interchangeable with the ingredient.
	RuleTypeEquivalency RuleType = "equivalency"
	// RuleTypeExclusion declares names that must never match the ingredient.
	RuleTypeExclusion RuleType = "exclusion"
	// RuleTypeCategory places the ingredient in a category for same-category matching.
	RuleTypeCategory RuleType = "category"
)

// RuleSource indicates how a rule was created.
type RuleSource string

const (
	// RuleSourceAdmin indicates the rule was authored by hand.
	RuleSourceAdmin RuleSource = "admin"
	// RuleSourceLearned indicates the rule was promoted from a learned suggestion.
	RuleSourceLearned RuleSource = "ml_generated"
	// RuleSourceSystem indicates a seeded system default.
	RuleSourceSystem RuleSource = "system"
)

// CategoryMatchMode controls how a category rule matches within its category.
type CategoryMatchMode string

const (
	// CategoryMatchAny accepts any inventory item in the same category.
	CategoryMatchAny CategoryMatchMode = "any"
	// CategoryMatchStrict additionally requires a containment relation between names.
	CategoryMatchStrict CategoryMatchMode = "strict"
)

// CategoryPayload is the typed payload carried by category rules.
type CategoryPayload struct {
	CategoryID string            `json:"category_id"`
	MatchMode  CategoryMatchMode `json:"match_mode"`
}

// IngredientRule maps a canonical ingredient name to equivalents, exclusions,
// or a category. Only approved, active rules participate in matching.
type IngredientRule struct {
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ApprovedAt          *time.Time
	Category            *CategoryPayload
	ApprovedBy          string
	IngredientName      string
	Notes               string
	RuleType            RuleType
	Source              RuleSource
	Equivalents         []string
	ExcludedMatches     []string
	ID                  int64
	ConfidenceThreshold float64
	UseCount            int
	IsActive            bool
	IsSystemDefault     bool
	Approved            bool
}

// Validate ensures the rule satisfies the per-type payload invariants.
func (r *IngredientRule) Validate() error {
	if r.IngredientName == "" {
		return fmt.Errorf("ingredient name is required")
	}

	switch r.RuleType {
	case RuleTypeEquivalency:
		if len(r.Equivalents) == 0 {
			return fmt.Errorf("equivalency rule for %q must have at least one equivalent", r.IngredientName)
		}
	case RuleTypeExclusion:
		if len(r.ExcludedMatches) == 0 {
			return fmt.Errorf("exclusion rule for %q must have at least one excluded match", r.IngredientName)
		}
	case RuleTypeCategory:
		if r.Category == nil || r.Category.CategoryID == "" {
			return fmt.Errorf("category rule for %q must have a category payload", r.IngredientName)
		}
	default:
		return fmt.Errorf("unknown rule type %q", r.RuleType)
	}

	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1")
	}

	switch r.Source {
	case RuleSourceAdmin, RuleSourceLearned, RuleSourceSystem:
	default:
		return fmt.Errorf("unknown rule source %q", r.Source)
	}

	return nil
}

// Matchable reports whether the rule participates in the matching hot path.
func (r *IngredientRule) Matchable() bool {
	return r.Approved && r.IsActive
}
