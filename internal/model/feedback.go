package model

import (
	"fmt"
	"time"
)

// FeedbackType indicates which direction a user's verdict went.
type FeedbackType string

const (
	// FeedbackThumbsUp confirms a match was correct.
	FeedbackThumbsUp FeedbackType = "thumbs_up"
	// FeedbackThumbsDown flags a match as wrong.
	FeedbackThumbsDown FeedbackType = "thumbs_down"
)

// MatchFeedback is one user verdict on a match result. Rows are append-only
// audit records and are never mutated after creation.
type MatchFeedback struct {
	CreatedAt          time.Time
	ID                 string
	RecipeIngredient   string
	MatchedProductName string
	UserFeedback       string
	MatchType          MatchType
	FeedbackType       FeedbackType
	ConfidenceScore    float64
	IsCorrect          bool
}

// Validate checks the minimum shape required to record feedback.
func (f *MatchFeedback) Validate() error {
	if f.RecipeIngredient == "" {
		return fmt.Errorf("recipe ingredient is required")
	}
	if f.MatchedProductName == "" {
		return fmt.Errorf("matched product name is required")
	}
	switch f.FeedbackType {
	case FeedbackThumbsUp, FeedbackThumbsDown:
	default:
		return fmt.Errorf("unknown feedback type %q", f.FeedbackType)
	}
	return nil
}
