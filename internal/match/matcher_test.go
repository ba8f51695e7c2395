package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larderhq/larder/internal/model"
)

func activeRule(rt model.RuleType, name string, others []string) model.IngredientRule {
	r := model.IngredientRule{
		RuleType:       rt,
		IngredientName: name,
		IsActive:       true,
		Approved:       true,
		Source:         model.RuleSourceAdmin,
	}
	switch rt {
	case model.RuleTypeEquivalency:
		r.Equivalents = others
	case model.RuleTypeExclusion:
		r.ExcludedMatches = others
	case model.RuleTypeCategory:
	}
	return r
}

func inv(names ...string) []model.InventoryItem {
	items := make([]model.InventoryItem, 0, len(names))
	for _, n := range names {
		items = append(items, model.InventoryItem{Name: n, Quantity: 1})
	}
	return items
}

func TestIngredient(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name           string
		rules          []model.IngredientRule
		ingredient     model.Ingredient
		inventory      []model.InventoryItem
		wantMatched    bool
		wantType       model.MatchType
		wantConfidence float64
	}{
		{
			name:           "exact match",
			ingredient:     model.Ingredient{Name: "milk"},
			inventory:      inv("Milk"),
			wantMatched:    true,
			wantType:       model.MatchExact,
			wantConfidence: 1.0,
		},
		{
			name: "equivalency rule match",
			rules: []model.IngredientRule{
				activeRule(model.RuleTypeEquivalency, "milk", []string{"whole milk", "organic whole milk"}),
			},
			ingredient:     model.Ingredient{Name: "milk"},
			inventory:      inv("Organic Whole Milk"),
			wantMatched:    true,
			wantType:       model.MatchEquivalency,
			wantConfidence: cfg.EquivalencyConfidence,
		},
		{
			name: "equivalency checked bidirectionally",
			rules: []model.IngredientRule{
				activeRule(model.RuleTypeEquivalency, "whole milk", []string{"milk"}),
			},
			ingredient:     model.Ingredient{Name: "milk"},
			inventory:      inv("Whole Milk"),
			wantMatched:    true,
			wantType:       model.MatchEquivalency,
			wantConfidence: cfg.EquivalencyConfidence,
		},
		{
			name: "exclusion wins over textual similarity",
			rules: []model.IngredientRule{
				activeRule(model.RuleTypeExclusion, "milk", []string{"almond milk"}),
			},
			ingredient:  model.Ingredient{Name: "milk"},
			inventory:   inv("Almond Milk"),
			wantMatched: false,
			wantType:    model.MatchNone,
		},
		{
			name: "exclusion wins over equivalency",
			rules: []model.IngredientRule{
				activeRule(model.RuleTypeEquivalency, "milk", []string{"almond milk"}),
				activeRule(model.RuleTypeExclusion, "milk", []string{"almond milk"}),
			},
			ingredient:  model.Ingredient{Name: "milk"},
			inventory:   inv("Almond Milk"),
			wantMatched: false,
			wantType:    model.MatchNone,
		},
		{
			name: "exclusion is symmetric",
			rules: []model.IngredientRule{
				activeRule(model.RuleTypeExclusion, "almond milk", []string{"milk"}),
			},
			ingredient:  model.Ingredient{Name: "milk"},
			inventory:   inv("Almond Milk"),
			wantMatched: false,
			wantType:    model.MatchNone,
		},
		{
			name:           "containment fallback for brand qualified product",
			ingredient:     model.Ingredient{Name: "milk"},
			inventory:      inv("Organic Whole Milk"),
			wantMatched:    true,
			wantType:       model.MatchContainment,
			wantConfidence: cfg.ContainmentConfidence,
		},
		{
			name:        "no partial word containment",
			ingredient:  model.Ingredient{Name: "corn"},
			inventory:   inv("cornstarch"),
			wantMatched: false,
			wantType:    model.MatchNone,
		},
		{
			name: "inactive rule does not match",
			rules: []model.IngredientRule{
				{
					RuleType:       model.RuleTypeEquivalency,
					IngredientName: "butter",
					Equivalents:    []string{"margarine"},
					IsActive:       false,
					Approved:       true,
					Source:         model.RuleSourceAdmin,
				},
			},
			ingredient:  model.Ingredient{Name: "butter"},
			inventory:   inv("Margarine"),
			wantMatched: false,
			wantType:    model.MatchNone,
		},
		{
			name: "unapproved rule does not match",
			rules: []model.IngredientRule{
				{
					RuleType:       model.RuleTypeEquivalency,
					IngredientName: "butter",
					Equivalents:    []string{"margarine"},
					IsActive:       true,
					Approved:       false,
					Source:         model.RuleSourceAdmin,
				},
			},
			ingredient:  model.Ingredient{Name: "butter"},
			inventory:   inv("Margarine"),
			wantMatched: false,
			wantType:    model.MatchNone,
		},
		{
			name:        "empty inventory",
			ingredient:  model.Ingredient{Name: "milk"},
			inventory:   nil,
			wantMatched: false,
			wantType:    model.MatchNone,
		},
		{
			name:        "name that normalizes away is unmatchable",
			ingredient:  model.Ingredient{Name: "2 cups"},
			inventory:   inv("cup noodles"),
			wantMatched: false,
			wantType:    model.MatchNone,
		},
		{
			name:           "plural folding aligns names",
			ingredient:     model.Ingredient{Name: "Eggs"},
			inventory:      inv("egg"),
			wantMatched:    true,
			wantType:       model.MatchExact,
			wantConfidence: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := NewRuleSet(tt.rules)
			got, err := Ingredient(tt.ingredient, tt.inventory, rules, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMatched, got.Matched)
			assert.Equal(t, tt.wantType, got.MatchType)
			if tt.wantMatched {
				assert.InDelta(t, tt.wantConfidence, got.Confidence, 0.001)
				require.NotNil(t, got.Inventory)
			}
		})
	}
}

func TestIngredient_RuleConfidenceThreshold(t *testing.T) {
	rule := activeRule(model.RuleTypeEquivalency, "milk", []string{"oat milk"})
	rule.ConfidenceThreshold = 0.92
	rules := NewRuleSet([]model.IngredientRule{rule})

	got, err := Ingredient(model.Ingredient{Name: "milk"}, inv("Oat Milk"), rules, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, got.Matched)
	assert.InDelta(t, 0.92, got.Confidence, 0.001)
	assert.Equal(t, model.MatchEquivalency, got.MatchType)
}

func TestIngredient_CategoryMatch(t *testing.T) {
	cheddar := activeRule(model.RuleTypeCategory, "cheddar", nil)
	cheddar.Category = &model.CategoryPayload{CategoryID: "cheese", MatchMode: model.CategoryMatchAny}
	gouda := activeRule(model.RuleTypeCategory, "gouda", nil)
	gouda.Category = &model.CategoryPayload{CategoryID: "cheese", MatchMode: model.CategoryMatchAny}
	rules := NewRuleSet([]model.IngredientRule{cheddar, gouda})

	cfg := DefaultConfig()
	got, err := Ingredient(model.Ingredient{Name: "cheddar"}, inv("Gouda"), rules, cfg)
	require.NoError(t, err)
	assert.True(t, got.Matched)
	assert.Equal(t, model.MatchCategory, got.MatchType)
	assert.InDelta(t, cfg.CategoryConfidence, got.Confidence, 0.001)
}

func TestIngredient_ExclusionBeatsCategory(t *testing.T) {
	cheddar := activeRule(model.RuleTypeCategory, "cheddar", nil)
	cheddar.Category = &model.CategoryPayload{CategoryID: "cheese", MatchMode: model.CategoryMatchAny}
	gouda := activeRule(model.RuleTypeCategory, "gouda", nil)
	gouda.Category = &model.CategoryPayload{CategoryID: "cheese", MatchMode: model.CategoryMatchAny}
	excl := activeRule(model.RuleTypeExclusion, "cheddar", []string{"gouda"})
	rules := NewRuleSet([]model.IngredientRule{cheddar, gouda, excl})

	got, err := Ingredient(model.Ingredient{Name: "cheddar"}, inv("Gouda"), rules, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, got.Matched)
}

func TestIngredient_TieBreaks(t *testing.T) {
	older := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	t.Run("larger quantity preferred", func(t *testing.T) {
		inventory := []model.InventoryItem{
			{Name: "milk", Quantity: 1},
			{Name: "milk", Quantity: 3},
		}
		got, err := Ingredient(model.Ingredient{Name: "milk"}, inventory, NewRuleSet(nil), DefaultConfig())
		require.NoError(t, err)
		require.True(t, got.Matched)
		assert.Equal(t, 3.0, got.Inventory.Quantity)
	})

	t.Run("earlier purchase date breaks quantity tie", func(t *testing.T) {
		inventory := []model.InventoryItem{
			{Name: "milk", Quantity: 2, PurchaseDate: newer},
			{Name: "milk", Quantity: 2, PurchaseDate: older},
		}
		got, err := Ingredient(model.Ingredient{Name: "milk"}, inventory, NewRuleSet(nil), DefaultConfig())
		require.NoError(t, err)
		require.True(t, got.Matched)
		assert.Equal(t, older, got.Inventory.PurchaseDate)
	})
}

func TestIngredient_Deterministic(t *testing.T) {
	rules := NewRuleSet([]model.IngredientRule{
		activeRule(model.RuleTypeEquivalency, "milk", []string{"whole milk"}),
	})
	inventory := inv("Whole Milk", "Almond Milk", "milk")

	first, err := Ingredient(model.Ingredient{Name: "milk"}, inventory, rules, DefaultConfig())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Ingredient(model.Ingredient{Name: "milk"}, inventory, rules, DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestIngredient_MalformedInput(t *testing.T) {
	tests := []struct {
		name       string
		ingredient model.Ingredient
	}{
		{name: "missing name", ingredient: model.Ingredient{}},
		{name: "whitespace name", ingredient: model.Ingredient{Name: "   "}},
		{name: "negative quantity", ingredient: model.Ingredient{Name: "milk", Quantity: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Ingredient(tt.ingredient, inv("milk"), NewRuleSet(nil), DefaultConfig())
			assert.Error(t, err)
		})
	}
}

func TestRuleSet_For(t *testing.T) {
	rules := NewRuleSet([]model.IngredientRule{
		activeRule(model.RuleTypeEquivalency, "milk", []string{"whole milk", "2% milk"}),
		activeRule(model.RuleTypeExclusion, "milk", []string{"almond milk"}),
	})

	lookup := rules.For("milk")
	assert.ElementsMatch(t, []string{"whole milk", "2% milk"}, lookup.Equivalents)
	assert.ElementsMatch(t, []string{"almond milk"}, lookup.Exclusions)

	// Reverse direction is indexed too.
	reverse := rules.For("whole milk")
	assert.Contains(t, reverse.Equivalents, "milk")
}

func TestRuleSet_SharedCategoryStable(t *testing.T) {
	categoryRule := func(id int64, name, cat string) model.IngredientRule {
		r := activeRule(model.RuleTypeCategory, name, nil)
		r.ID = id
		r.Category = &model.CategoryPayload{CategoryID: cat, MatchMode: model.CategoryMatchAny}
		return r
	}

	// cheddar and gouda share two categories via four rules; the reported
	// rule must not depend on map iteration order.
	input := []model.IngredientRule{
		categoryRule(7, "cheddar", "cheese"),
		categoryRule(8, "gouda", "cheese"),
		categoryRule(3, "cheddar", "dairy"),
		categoryRule(4, "gouda", "dairy"),
	}

	for i := 0; i < 20; i++ {
		rules := NewRuleSet(input)
		id, strict, ok := rules.SharedCategory("cheddar", "gouda")
		require.True(t, ok)
		assert.False(t, strict)
		assert.Equal(t, int64(3), id)
	}
}
