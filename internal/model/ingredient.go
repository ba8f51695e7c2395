package model

import "time"

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	Name     string
	Unit     string
	Quantity float64
}

// InventoryItem is one product currently on hand in a household.
type InventoryItem struct {
	PurchaseDate time.Time
	Name         string
	Unit         string
	Quantity     float64
}

// MatchType identifies which matcher path produced a match.
type MatchType string

const (
	// MatchExact means the normalized names were identical.
	MatchExact MatchType = "exact"
	// MatchEquivalency means an equivalency rule linked the names.
	MatchEquivalency MatchType = "equivalency"
	// MatchCategory means both names share a category per category rules.
	MatchCategory MatchType = "category"
	// MatchContainment means one normalized name contained the other.
	MatchContainment MatchType = "containment"
	// MatchNone means no inventory entry satisfied the ingredient.
	MatchNone MatchType = "none"
)

// MatchResult is the outcome of matching one recipe ingredient against inventory.
// matched=false is a normal outcome, not an error.
type MatchResult struct {
	Inventory  *InventoryItem
	MatchType  MatchType
	RuleID     *int64
	Confidence float64
	Matched    bool
}

// AvailabilityStatus is the recipe-level rollup shown to users.
type AvailabilityStatus string

const (
	// StatusCanMake means every ingredient is satisfiable from inventory.
	StatusCanMake AvailabilityStatus = "can_make"
	// StatusPartial means some but not all ingredients are satisfiable.
	StatusPartial AvailabilityStatus = "partial"
	// StatusMissingIngredients means nothing is satisfiable.
	StatusMissingIngredients AvailabilityStatus = "missing_ingredients"
)

// AvailabilityResult aggregates per-ingredient match results for a recipe.
type AvailabilityResult struct {
	Matches              map[string]MatchResult
	AvailableIngredients []Ingredient
	MissingIngredients   []Ingredient
	Availability         float64
	CanMake              bool
}

// Status derives the display status from the aggregate numbers.
func (a *AvailabilityResult) Status() AvailabilityStatus {
	switch {
	case a.CanMake:
		return StatusCanMake
	case a.Availability > 0:
		return StatusPartial
	default:
		return StatusMissingIngredients
	}
}
