package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larderhq/larder/internal/common"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/service"
)

func setupTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testRule() *model.IngredientRule {
	return &model.IngredientRule{
		RuleType:       model.RuleTypeEquivalency,
		IngredientName: "milk",
		Equivalents:    []string{"oat milk", "soy milk"},
		IsActive:       true,
		Approved:       true,
		Source:         model.RuleSourceAdmin,
	}
}

func TestMigrate(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Migrate is idempotent.
	require.NoError(t, store.Migrate(ctx))
}

func TestMigrate_SeedsSystemDefaults(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	rules, err := store.GetActiveRules(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	var milk *model.IngredientRule
	for i := range rules {
		if rules[i].IngredientName == "milk" {
			milk = &rules[i]
			break
		}
	}
	require.NotNil(t, milk, "seeded milk rule should exist")
	assert.True(t, milk.IsSystemDefault)
	assert.True(t, milk.Approved)
	assert.Equal(t, model.RuleSourceSystem, milk.Source)
	assert.Contains(t, milk.Equivalents, "whole milk")
}

func TestCreateAndGetRule(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	rule := testRule()
	require.NoError(t, store.CreateRule(ctx, rule))
	require.NotZero(t, rule.ID)

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RuleTypeEquivalency, got.RuleType)
	assert.Equal(t, "milk", got.IngredientName)
	assert.Equal(t, []string{"oat milk", "soy milk"}, got.Equivalents)
	assert.True(t, got.Approved)
	assert.True(t, got.IsActive)
	assert.False(t, got.IsSystemDefault)
}

func TestCreateRule_NormalizesNames(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	rule := &model.IngredientRule{
		RuleType:       model.RuleTypeEquivalency,
		IngredientName: "  Tomatoes (canned)  ",
		Equivalents:    []string{"Crushed Tomatoes"},
		IsActive:       true,
		Approved:       true,
		Source:         model.RuleSourceAdmin,
	}
	require.NoError(t, store.CreateRule(ctx, rule))

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "tomato", got.IngredientName)
	assert.Equal(t, []string{"crushed tomato"}, got.Equivalents)

	// Query-time key uses the same normalizer.
	byName, err := store.GetRulesByIngredient(ctx, "Tomatoes")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, rule.ID, byName[0].ID)
}

func TestCreateRule_ValidatesPayload(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rule *model.IngredientRule
	}{
		{
			name: "equivalency without equivalents",
			rule: &model.IngredientRule{
				RuleType:       model.RuleTypeEquivalency,
				IngredientName: "milk",
				Source:         model.RuleSourceAdmin,
			},
		},
		{
			name: "exclusion without exclusions",
			rule: &model.IngredientRule{
				RuleType:       model.RuleTypeExclusion,
				IngredientName: "milk",
				Source:         model.RuleSourceAdmin,
			},
		},
		{
			name: "category without payload",
			rule: &model.IngredientRule{
				RuleType:       model.RuleTypeCategory,
				IngredientName: "milk",
				Source:         model.RuleSourceAdmin,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.CreateRule(ctx, tt.rule))
		})
	}
}

func TestUpdateRule(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	rule := testRule()
	require.NoError(t, store.CreateRule(ctx, rule))

	rule.Equivalents = []string{"oat milk"}
	rule.Notes = "narrowed"
	require.NoError(t, store.UpdateRule(ctx, rule))

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"oat milk"}, got.Equivalents)
	assert.Equal(t, "narrowed", got.Notes)
}

func TestUpdateRule_NonexistentID(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	rule := testRule()
	rule.ID = 9999
	err := store.UpdateRule(ctx, rule)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestApproveRule(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	rule := testRule()
	rule.Approved = false
	require.NoError(t, store.CreateRule(ctx, rule))

	require.NoError(t, store.ApproveRule(ctx, rule.ID, "admin"))

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, got.Approved)
	assert.Equal(t, "admin", got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)

	assert.ErrorIs(t, store.ApproveRule(ctx, 9999, "admin"), ErrRuleNotFound)
}

func TestDeactivateRule(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	rule := testRule()
	require.NoError(t, store.CreateRule(ctx, rule))
	require.NoError(t, store.DeactivateRule(ctx, rule.ID))

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	active, err := store.GetActiveRules(ctx)
	require.NoError(t, err)
	for _, r := range active {
		assert.NotEqual(t, rule.ID, r.ID)
	}
}

func TestDeleteRule(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	rule := testRule()
	require.NoError(t, store.CreateRule(ctx, rule))
	require.NoError(t, store.DeleteRule(ctx, rule.ID))

	_, err := store.GetRule(ctx, rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestDeleteRule_SystemDefaultRefused(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	rules, err := store.GetActiveRules(ctx)
	require.NoError(t, err)

	var systemRule *model.IngredientRule
	for i := range rules {
		if rules[i].IsSystemDefault {
			systemRule = &rules[i]
			break
		}
	}
	require.NotNil(t, systemRule)

	assert.ErrorIs(t, store.DeleteRule(ctx, systemRule.ID), common.ErrSystemDefault)

	// Deactivation is the supported path.
	assert.NoError(t, store.DeactivateRule(ctx, systemRule.ID))
}

func TestIncrementRuleUseCount(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	rule := testRule()
	require.NoError(t, store.CreateRule(ctx, rule))

	require.NoError(t, store.IncrementRuleUseCount(ctx, rule.ID))
	require.NoError(t, store.IncrementRuleUseCount(ctx, rule.ID))

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UseCount)
}

func TestSuggestionCRUD(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	suggestion := &model.RuleSuggestion{
		SuggestionType:  model.SuggestionExclusion,
		Ingredient1:     "cilantro",
		Ingredient2:     "parsley",
		OccurrenceCount: 3,
		ConfidenceScore: 0.8,
		Status:          model.SuggestionPending,
	}
	require.NoError(t, store.CreateSuggestion(ctx, suggestion))
	require.NotZero(t, suggestion.ID)

	got, err := store.GetSuggestion(ctx, suggestion.ID)
	require.NoError(t, err)
	assert.Equal(t, "cilantro", got.Ingredient1)
	assert.Equal(t, "parsley", got.Ingredient2)
	assert.Equal(t, model.SuggestionPending, got.Status)
	assert.Nil(t, got.CreatedRuleID)

	pending, err := store.GetSuggestionsByStatus(ctx, model.SuggestionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	now := time.Now()
	got.Status = model.SuggestionRejected
	got.ReviewedBy = "admin"
	got.ReviewedAt = &now
	got.ReviewNotes = "not a real conflict"
	require.NoError(t, store.UpdateSuggestion(ctx, got))

	rejected, err := store.GetSuggestionsByStatus(ctx, model.SuggestionRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "not a real conflict", rejected[0].ReviewNotes)
	require.NotNil(t, rejected[0].ReviewedAt)

	pending, err = store.GetSuggestionsByStatus(ctx, model.SuggestionPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSaveAndGetFeedback(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	wrong := &model.MatchFeedback{
		RecipeIngredient:   "cilantro",
		MatchedProductName: "parsley",
		IsCorrect:          false,
		FeedbackType:       model.FeedbackThumbsDown,
		ConfidenceScore:    0.4,
		MatchType:          model.MatchContainment,
	}
	require.NoError(t, store.SaveFeedback(ctx, wrong))
	assert.NotEmpty(t, wrong.ID, "an ID should be assigned on save")

	right := &model.MatchFeedback{
		RecipeIngredient:   "milk",
		MatchedProductName: "whole milk",
		IsCorrect:          true,
		FeedbackType:       model.FeedbackThumbsUp,
		ConfidenceScore:    0.85,
		MatchType:          model.MatchEquivalency,
	}
	require.NoError(t, store.SaveFeedback(ctx, right))

	all, err := store.GetFeedback(ctx, service.FeedbackFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	incorrect, err := store.GetFeedback(ctx, service.FeedbackFilter{OnlyIncorrect: true})
	require.NoError(t, err)
	require.Len(t, incorrect, 1)
	assert.Equal(t, "cilantro", incorrect[0].RecipeIngredient)
	assert.Equal(t, model.MatchContainment, incorrect[0].MatchType)

	count, err := store.GetFeedbackCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveFeedback_RequiresNames(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	err := store.SaveFeedback(ctx, &model.MatchFeedback{
		MatchedProductName: "parsley",
		FeedbackType:       model.FeedbackThumbsDown,
	})
	assert.ErrorIs(t, err, ErrInvalidFeedback)
}

func TestTransaction_CommitAndRollback(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	t.Run("rollback leaves no trace", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)

		rule := testRule()
		require.NoError(t, tx.CreateRule(ctx, rule))
		require.NoError(t, tx.Rollback())

		_, err = store.GetRule(ctx, rule.ID)
		assert.ErrorIs(t, err, ErrRuleNotFound)
	})

	t.Run("commit persists", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)

		rule := testRule()
		require.NoError(t, tx.CreateRule(ctx, rule))
		require.NoError(t, tx.Commit())

		got, err := store.GetRule(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, rule.ID, got.ID)
	})

	t.Run("nested transactions rejected", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		_, err = tx.BeginTx(ctx)
		assert.Error(t, err)
	})
}
