package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larderhq/larder/internal/common"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/service"
	"github.com/larderhq/larder/internal/storage"
)

func setupEngine(t *testing.T) (*Engine, *storage.SQLiteStorage) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	return New(store), store
}

func recordIncorrect(t *testing.T, e *Engine, ingredient, product string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		require.NoError(t, e.RecordFeedback(context.Background(), &model.MatchFeedback{
			RecipeIngredient:   ingredient,
			MatchedProductName: product,
			IsCorrect:          false,
			FeedbackType:       model.FeedbackThumbsDown,
			MatchType:          model.MatchContainment,
			ConfidenceScore:    0.4,
		}))
	}
}

func TestCheckAvailability_UsesSeededRules(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	result, err := e.CheckAvailability(ctx,
		[]model.Ingredient{
			{Name: "milk", Quantity: 1, Unit: "cup"},
			{Name: "eggs", Quantity: 2},
			{Name: "flour", Quantity: 2, Unit: "cups"},
		},
		[]model.InventoryItem{
			{Name: "Whole Milk", Quantity: 1, Unit: "gallon"},
			{Name: "Eggs", Quantity: 12},
		},
	)
	require.NoError(t, err)

	assert.False(t, result.CanMake)
	assert.InDelta(t, 0.667, result.Availability, 0.001)
	assert.Equal(t, model.StatusPartial, result.Status())
	require.Len(t, result.MissingIngredients, 1)
	assert.Equal(t, "flour", result.MissingIngredients[0].Name)

	// Milk matched through the seeded equivalency rule.
	milkMatch := result.Matches["milk"]
	require.True(t, milkMatch.Matched)
	assert.Equal(t, model.MatchEquivalency, milkMatch.MatchType)
}

func TestCheckAvailability_IncrementsRuleUseCount(t *testing.T) {
	e, store := setupEngine(t)
	ctx := context.Background()

	result, err := e.MatchIngredient(ctx,
		model.Ingredient{Name: "milk", Quantity: 1},
		[]model.InventoryItem{{Name: "Whole Milk", Quantity: 1}},
	)
	require.NoError(t, err)
	require.True(t, result.Matched)
	require.NotNil(t, result.RuleID)

	rule, err := store.GetRule(ctx, *result.RuleID)
	require.NoError(t, err)
	assert.Equal(t, 1, rule.UseCount)
}

func TestRunLearner_CreatesSuggestion(t *testing.T) {
	e, store := setupEngine(t)
	ctx := context.Background()

	recordIncorrect(t, e, "cilantro", "parsley", 3)

	stats, err := e.RunLearner(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.FeedbackRows)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 0, stats.Updated)

	pending, err := store.GetSuggestionsByStatus(ctx, model.SuggestionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	s := pending[0]
	assert.Equal(t, model.SuggestionExclusion, s.SuggestionType)
	assert.Equal(t, "cilantro", s.Ingredient1)
	assert.Equal(t, "parsley", s.Ingredient2)
	assert.Equal(t, 3, s.OccurrenceCount)
}

func TestRunLearner_Idempotent(t *testing.T) {
	e, store := setupEngine(t)
	ctx := context.Background()

	recordIncorrect(t, e, "cilantro", "parsley", 3)

	_, err := e.RunLearner(ctx, nil)
	require.NoError(t, err)

	stats, err := e.RunLearner(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 1, stats.Updated)

	pending, err := store.GetSuggestionsByStatus(ctx, model.SuggestionPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "re-running the learner must not duplicate suggestions")
}

func TestRunLearner_BelowThreshold(t *testing.T) {
	e, store := setupEngine(t)
	ctx := context.Background()

	recordIncorrect(t, e, "cilantro", "parsley", 2)

	stats, err := e.RunLearner(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)

	pending, err := store.GetSuggestionsByStatus(ctx, model.SuggestionPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApproveSuggestion(t *testing.T) {
	e, store := setupEngine(t)
	ctx := context.Background()

	recordIncorrect(t, e, "cilantro", "parsley", 3)
	_, err := e.RunLearner(ctx, nil)
	require.NoError(t, err)

	pending, err := store.GetSuggestionsByStatus(ctx, model.SuggestionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	rule, err := e.ApproveSuggestion(ctx, pending[0].ID, "admin")
	require.NoError(t, err)

	assert.Equal(t, model.RuleTypeExclusion, rule.RuleType)
	assert.Equal(t, "cilantro", rule.IngredientName)
	assert.Equal(t, []string{"parsley"}, rule.ExcludedMatches)
	assert.True(t, rule.Approved)
	assert.True(t, rule.IsActive)
	assert.Equal(t, model.RuleSourceLearned, rule.Source)

	got, err := store.GetSuggestion(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionApproved, got.Status)
	require.NotNil(t, got.CreatedRuleID)
	assert.Equal(t, rule.ID, *got.CreatedRuleID)

	// The new exclusion takes effect on the next match.
	result, err := e.MatchIngredient(ctx,
		model.Ingredient{Name: "cilantro", Quantity: 1},
		[]model.InventoryItem{{Name: "parsley", Quantity: 1}},
	)
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestApproveSuggestion_AlreadyResolved(t *testing.T) {
	e, store := setupEngine(t)
	ctx := context.Background()

	recordIncorrect(t, e, "cilantro", "parsley", 3)
	_, err := e.RunLearner(ctx, nil)
	require.NoError(t, err)

	pending, err := store.GetSuggestionsByStatus(ctx, model.SuggestionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = e.ApproveSuggestion(ctx, pending[0].ID, "admin")
	require.NoError(t, err)

	// Re-approving is a conflict, not a duplicate rule.
	_, err = e.ApproveSuggestion(ctx, pending[0].ID, "admin")
	assert.True(t, common.IsConflict(err))

	rules, err := store.GetRulesByIngredient(ctx, "cilantro")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestRejectSuggestion(t *testing.T) {
	e, store := setupEngine(t)
	ctx := context.Background()

	recordIncorrect(t, e, "basil", "mint", 3)
	_, err := e.RunLearner(ctx, nil)
	require.NoError(t, err)

	pending, err := store.GetSuggestionsByStatus(ctx, model.SuggestionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, e.RejectSuggestion(ctx, pending[0].ID, "admin", "different herbs, correct behavior"))

	got, err := store.GetSuggestion(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionRejected, got.Status)
	assert.Equal(t, "different herbs, correct behavior", got.ReviewNotes)

	// No rule was created.
	rules, err := store.GetRulesByIngredient(ctx, "basil")
	require.NoError(t, err)
	assert.Empty(t, rules)

	// A rejected suggestion stays rejected.
	err = e.RejectSuggestion(ctx, pending[0].ID, "admin", "")
	assert.True(t, common.IsConflict(err))
}

// failingStorage wraps a real storage and fails UpdateSuggestion inside
// transactions, to exercise approval atomicity.
type failingStorage struct {
	service.Storage
}

type failingTx struct {
	service.Transaction
}

func (f *failingStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	tx, err := f.Storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Transaction: tx}, nil
}

func (f *failingTx) UpdateSuggestion(_ context.Context, _ *model.RuleSuggestion) error {
	return errors.New("simulated persistence failure")
}

func TestApproveSuggestion_Atomic(t *testing.T) {
	_, store := setupEngine(t)
	ctx := context.Background()

	e := New(&failingStorage{Storage: store})

	recordIncorrect(t, e, "cilantro", "parsley", 3)
	_, err := e.RunLearner(ctx, nil)
	require.NoError(t, err)

	pending, err := store.GetSuggestionsByStatus(ctx, model.SuggestionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = e.ApproveSuggestion(ctx, pending[0].ID, "admin")
	require.Error(t, err)

	// Neither half of the operation is visible: no orphaned rule, and the
	// suggestion is still pending.
	rules, err := store.GetRulesByIngredient(ctx, "cilantro")
	require.NoError(t, err)
	assert.Empty(t, rules)

	got, err := store.GetSuggestion(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionPending, got.Status)
	assert.Nil(t, got.CreatedRuleID)
}

func TestRecordFeedback_IndependentOfLearner(t *testing.T) {
	e, store := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, e.RecordFeedback(ctx, &model.MatchFeedback{
		RecipeIngredient:   "milk",
		MatchedProductName: "whole milk",
		IsCorrect:          true,
		FeedbackType:       model.FeedbackThumbsUp,
		ConfidenceScore:    0.85,
		MatchType:          model.MatchEquivalency,
	}))

	count, err := store.GetFeedbackCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
