package match

import (
	"fmt"
	"math"
	"strings"

	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/normalize"
)

// candidate is one inventory entry that could satisfy the ingredient.
type candidate struct {
	item       *model.InventoryItem
	ruleID     *int64
	matchType  model.MatchType
	confidence float64
	index      int
}

// Ingredient matches one recipe ingredient against the inventory snapshot.
// Precedence is strict: exclusion rules disqualify a pair before any other
// path is consulted, then exact, equivalency, category, and finally the
// containment fallback. "No match" is a normal outcome, not an error; an
// error indicates malformed input from the caller.
func Ingredient(ing model.Ingredient, inventory []model.InventoryItem, rules *RuleSet, cfg Config) (model.MatchResult, error) {
	if err := validateIngredient(ing); err != nil {
		return model.MatchResult{}, err
	}
	if rules == nil {
		rules = NewRuleSet(nil)
	}

	needle := normalize.Name(ing.Name)
	if needle == "" {
		// Whitespace or unit-only names normalize away entirely. Treat as
		// unmatchable rather than guessing.
		return model.MatchResult{Matched: false, MatchType: model.MatchNone}, nil
	}

	var best *candidate
	for i := range inventory {
		item := &inventory[i]
		hay := normalize.Name(item.Name)
		if hay == "" {
			continue
		}
		if rules.Excluded(needle, hay) {
			continue
		}

		c, ok := evaluate(needle, hay, rules, cfg)
		if !ok {
			continue
		}
		c.item = item
		c.index = i
		if best == nil || better(&c, best) {
			cc := c
			best = &cc
		}
	}

	if best == nil || best.confidence < cfg.MatchThreshold {
		return model.MatchResult{Matched: false, MatchType: model.MatchNone}, nil
	}

	return model.MatchResult{
		Matched:    true,
		Inventory:  best.item,
		Confidence: best.confidence,
		MatchType:  best.matchType,
		RuleID:     best.ruleID,
	}, nil
}

// evaluate scores one non-excluded needle/hay pair through the precedence
// ladder. Each step short-circuits.
func evaluate(needle, hay string, rules *RuleSet, cfg Config) (candidate, bool) {
	if needle == hay {
		return candidate{confidence: 1.0, matchType: model.MatchExact}, true
	}

	if e, ok := rules.Equivalent(needle, hay); ok {
		conf := e.confidence
		if conf <= 0 {
			conf = cfg.EquivalencyConfidence
		}
		id := e.ruleID
		return candidate{confidence: conf, matchType: model.MatchEquivalency, ruleID: &id}, true
	}

	if id, strict, ok := rules.SharedCategory(needle, hay); ok {
		if !strict || contains(needle, hay) {
			rid := id
			return candidate{confidence: cfg.CategoryConfidence, matchType: model.MatchCategory, ruleID: &rid}, true
		}
	}

	if cfg.EnableContainment && contains(needle, hay) {
		return candidate{confidence: cfg.ContainmentConfidence, matchType: model.MatchContainment}, true
	}

	return candidate{}, false
}

// contains reports a whole-word containment relation in either direction,
// catching brand-qualified product names ("organic whole milk" vs "milk").
func contains(a, b string) bool {
	return containsWords(a, b) || containsWords(b, a)
}

func containsWords(haystack, needle string) bool {
	if haystack == needle {
		return true
	}
	return strings.HasPrefix(haystack, needle+" ") ||
		strings.HasSuffix(haystack, " "+needle) ||
		strings.Contains(haystack, " "+needle+" ")
}

// better orders candidates: higher confidence wins, then larger quantity,
// then earlier purchase date, then inventory order. The full chain keeps
// selection deterministic.
func better(a, b *candidate) bool {
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	if a.item.Quantity != b.item.Quantity {
		return a.item.Quantity > b.item.Quantity
	}
	if !a.item.PurchaseDate.Equal(b.item.PurchaseDate) {
		return a.item.PurchaseDate.Before(b.item.PurchaseDate)
	}
	return a.index < b.index
}

func validateIngredient(ing model.Ingredient) error {
	if strings.TrimSpace(ing.Name) == "" {
		return fmt.Errorf("ingredient name is required")
	}
	if ing.Quantity < 0 || math.IsNaN(ing.Quantity) || math.IsInf(ing.Quantity, 0) {
		return fmt.Errorf("ingredient %q has malformed quantity %v", ing.Name, ing.Quantity)
	}
	return nil
}
