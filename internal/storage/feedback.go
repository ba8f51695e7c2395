package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/service"
)

// SaveFeedback appends one feedback row to the audit log. Rows are
// immutable; there is deliberately no update or delete for them.
func (s *SQLiteStorage) SaveFeedback(ctx context.Context, feedback *model.MatchFeedback) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveFeedback(ctx, s.db, feedback)
}

func saveFeedback(ctx context.Context, q querier, feedback *model.MatchFeedback) error {
	if err := validateFeedback(feedback); err != nil {
		return err
	}

	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO match_feedback (
			id, recipe_ingredient, matched_product_name, is_correct,
			feedback_type, user_feedback, confidence_score, match_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		feedback.ID, feedback.RecipeIngredient, feedback.MatchedProductName, feedback.IsCorrect,
		feedback.FeedbackType, nullString(feedback.UserFeedback),
		feedback.ConfidenceScore, nullString(string(feedback.MatchType)),
	)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	return nil
}

// GetFeedback retrieves feedback rows matching the filter, oldest first.
func (s *SQLiteStorage) GetFeedback(ctx context.Context, filter service.FeedbackFilter) ([]model.MatchFeedback, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getFeedback(ctx, s.db, filter)
}

func getFeedback(ctx context.Context, q querier, filter service.FeedbackFilter) ([]model.MatchFeedback, error) {
	var conditions []string
	var args []any

	if filter.OnlyIncorrect {
		conditions = append(conditions, "is_correct = 0")
	}
	if filter.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	query := `
		SELECT id, recipe_ingredient, matched_product_name, is_correct,
			feedback_type, user_feedback, confidence_score, match_type, created_at
		FROM match_feedback`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var feedback []model.MatchFeedback
	for rows.Next() {
		var f model.MatchFeedback
		var userFeedback, matchType sql.NullString
		err := rows.Scan(
			&f.ID, &f.RecipeIngredient, &f.MatchedProductName, &f.IsCorrect,
			&f.FeedbackType, &userFeedback, &f.ConfidenceScore, &matchType, &f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		f.UserFeedback = userFeedback.String
		f.MatchType = model.MatchType(matchType.String)
		feedback = append(feedback, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback: %w", err)
	}

	return feedback, nil
}

// GetFeedbackCount reports the total number of feedback rows.
func (s *SQLiteStorage) GetFeedbackCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return getFeedbackCount(ctx, s.db)
}

func getFeedbackCount(ctx context.Context, q querier) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_feedback`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}
