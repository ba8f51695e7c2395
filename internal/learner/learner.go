// Package learner turns recorded match feedback into candidate rules. It is
// a best-effort analytics pass: it never blocks feedback recording, skips
// rows it cannot use, and is safe to re-run over the same feedback window.
package learner

import (
	"log/slog"
	"sort"
	"time"

	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/normalize"
)

// Config controls when a correction pattern becomes a suggestion and how
// its confidence grows with repetition.
type Config struct {
	// OccurrenceThreshold is the minimum number of matching corrections
	// before a suggestion is emitted.
	OccurrenceThreshold int
	// BaseConfidence is the confidence floor for a freshly derived suggestion.
	BaseConfidence float64
	// ConfidencePerOccurrence is added for each observed correction, with
	// the total capped at 1.0.
	ConfidencePerOccurrence float64
}

// DefaultConfig returns the standard learning thresholds.
func DefaultConfig() Config {
	return Config{
		OccurrenceThreshold:     3,
		BaseConfidence:          0.5,
		ConfidencePerOccurrence: 0.1,
	}
}

// pattern is the grouping key for correction feedback.
type pattern struct {
	ingredient1    string
	ingredient2    string
	suggestionType model.SuggestionType
}

// Derive aggregates incorrect-match feedback into rule suggestions.
//
// Rows are grouped by normalized name pair: a plain thumbs-down on a match
// is evidence the pair should be excluded; a thumbs-down whose free-text
// feedback names an alternate ingredient is evidence of an equivalency with
// that alternate. Patterns at or above the occurrence threshold become
// suggestions. When a pending suggestion for the pattern already exists in
// existing, its copy is returned with updated counts instead of a new row,
// which keeps re-runs over the same window idempotent. Patterns whose
// suggestion was already resolved are left alone.
//
// Malformed rows are logged and skipped; one bad row never aborts the pass.
func Derive(feedback []model.MatchFeedback, existing []model.RuleSuggestion, cfg Config) []model.RuleSuggestion {
	if cfg.OccurrenceThreshold < 1 {
		cfg.OccurrenceThreshold = 1
	}

	counts := make(map[pattern]int)
	for i := range feedback {
		row := &feedback[i]
		if row.IsCorrect {
			continue
		}
		if err := row.Validate(); err != nil {
			slog.Warn("skipping malformed feedback row",
				"feedback_id", row.ID, "error", err)
			continue
		}

		key, ok := patternFor(row)
		if !ok {
			continue
		}
		counts[key]++
	}

	prior := make(map[pattern]*model.RuleSuggestion, len(existing))
	for i := range existing {
		s := &existing[i]
		key := pattern{
			ingredient1:    normalize.Name(s.Ingredient1),
			ingredient2:    normalize.Name(s.Ingredient2),
			suggestionType: s.SuggestionType,
		}
		prior[key] = s
	}

	var out []model.RuleSuggestion
	for key, count := range counts {
		if count < cfg.OccurrenceThreshold {
			continue
		}

		if p, ok := prior[key]; ok {
			if p.Status != model.SuggestionPending {
				// Already reviewed; do not resurrect resolved patterns.
				continue
			}
			// A partial feedback window can count fewer occurrences than
			// past passes already accumulated; counts never move backwards.
			if count < p.OccurrenceCount {
				count = p.OccurrenceCount
			}
			updated := *p
			updated.OccurrenceCount = count
			updated.ConfidenceScore = confidence(cfg, count)
			out = append(out, updated)
			continue
		}

		out = append(out, model.RuleSuggestion{
			SuggestionType:  key.suggestionType,
			Ingredient1:     key.ingredient1,
			Ingredient2:     key.ingredient2,
			OccurrenceCount: count,
			ConfidenceScore: confidence(cfg, count),
			Status:          model.SuggestionPending,
			CreatedAt:       time.Now(),
		})
	}

	// Map iteration order is random; sort for a stable result.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ingredient1 != out[j].Ingredient1 {
			return out[i].Ingredient1 < out[j].Ingredient1
		}
		if out[i].Ingredient2 != out[j].Ingredient2 {
			return out[i].Ingredient2 < out[j].Ingredient2
		}
		return out[i].SuggestionType < out[j].SuggestionType
	})

	return out
}

// patternFor classifies one incorrect-match row into a grouping key.
func patternFor(row *model.MatchFeedback) (pattern, bool) {
	ing := normalize.Name(row.RecipeIngredient)
	product := normalize.Name(row.MatchedProductName)
	if ing == "" || product == "" {
		return pattern{}, false
	}

	if alt := normalize.Name(row.UserFeedback); alt != "" && alt != ing {
		return pattern{
			ingredient1:    ing,
			ingredient2:    alt,
			suggestionType: model.SuggestionEquivalency,
		}, true
	}

	return pattern{
		ingredient1:    ing,
		ingredient2:    product,
		suggestionType: model.SuggestionExclusion,
	}, true
}

func confidence(cfg Config, count int) float64 {
	c := cfg.BaseConfidence + cfg.ConfidencePerOccurrence*float64(count)
	if c > 1.0 {
		return 1.0
	}
	return c
}
