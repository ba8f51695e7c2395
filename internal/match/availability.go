package match

import (
	"fmt"

	"github.com/larderhq/larder/internal/model"
)

// RecipeAvailability runs the matcher over every ingredient of a recipe and
// reduces the results to a recipe-level availability. Each ingredient is
// matched independently against the full inventory snapshot; the same
// inventory item may satisfy several ingredients, since this is a
// non-committing preview rather than a reservation.
func RecipeAvailability(ingredients []model.Ingredient, inventory []model.InventoryItem, rules *RuleSet, cfg Config) (model.AvailabilityResult, error) {
	result := model.AvailabilityResult{
		Matches:              make(map[string]model.MatchResult, len(ingredients)),
		AvailableIngredients: []model.Ingredient{},
		MissingIngredients:   []model.Ingredient{},
	}

	// An empty ingredient list cannot be cooked; availability 1.0 here would
	// be vacuously true and mislead users.
	if len(ingredients) == 0 {
		return result, nil
	}

	for _, ing := range ingredients {
		res, err := Ingredient(ing, inventory, rules, cfg)
		if err != nil {
			return model.AvailabilityResult{}, fmt.Errorf("matching %q: %w", ing.Name, err)
		}
		result.Matches[ing.Name] = res
		if res.Matched {
			result.AvailableIngredients = append(result.AvailableIngredients, ing)
		} else {
			result.MissingIngredients = append(result.MissingIngredients, ing)
		}
	}

	result.Availability = float64(len(result.AvailableIngredients)) / float64(len(ingredients))
	result.CanMake = len(result.MissingIngredients) == 0

	return result, nil
}
