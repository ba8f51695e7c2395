package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/larderhq/larder/internal/model"
)

const suggestionColumns = `id, suggestion_type, ingredient1, ingredient2,
	occurrence_count, confidence_score, status, reviewed_by, reviewed_at,
	review_notes, created_rule_id, created_at`

// CreateSuggestion persists a new rule suggestion.
func (s *SQLiteStorage) CreateSuggestion(ctx context.Context, suggestion *model.RuleSuggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return createSuggestion(ctx, s.db, suggestion)
}

func createSuggestion(ctx context.Context, q querier, suggestion *model.RuleSuggestion) error {
	if err := validateSuggestion(suggestion); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO rule_suggestions (
			suggestion_type, ingredient1, ingredient2,
			occurrence_count, confidence_score, status,
			reviewed_by, reviewed_at, review_notes, created_rule_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		suggestion.SuggestionType, suggestion.Ingredient1, nullString(suggestion.Ingredient2),
		suggestion.OccurrenceCount, suggestion.ConfidenceScore, suggestion.Status,
		nullString(suggestion.ReviewedBy), nullTime(suggestion.ReviewedAt),
		nullString(suggestion.ReviewNotes), suggestion.CreatedRuleID,
	)
	if err != nil {
		return fmt.Errorf("failed to create suggestion: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get suggestion ID: %w", err)
	}

	suggestion.ID = id
	suggestion.CreatedAt = time.Now()

	return nil
}

// GetSuggestion retrieves a suggestion by ID.
func (s *SQLiteStorage) GetSuggestion(ctx context.Context, id int64) (*model.RuleSuggestion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getSuggestion(ctx, s.db, id)
}

func getSuggestion(ctx context.Context, q querier, id int64) (*model.RuleSuggestion, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+suggestionColumns+` FROM rule_suggestions WHERE id = ?`, id)
	suggestion, err := scanSuggestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrSuggestionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return suggestion, nil
}

// GetSuggestionsByStatus retrieves suggestions in a given review state,
// highest confidence first.
func (s *SQLiteStorage) GetSuggestionsByStatus(ctx context.Context, status model.SuggestionStatus) ([]model.RuleSuggestion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getSuggestionsByStatus(ctx, s.db, status)
}

func getSuggestionsByStatus(ctx context.Context, q querier, status model.SuggestionStatus) ([]model.RuleSuggestion, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+suggestionColumns+`
		FROM rule_suggestions
		WHERE status = ?
		ORDER BY confidence_score DESC, occurrence_count DESC, id`,
		status)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var suggestions []model.RuleSuggestion
	for rows.Next() {
		suggestion, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, *suggestion)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}

	return suggestions, nil
}

// UpdateSuggestion updates an existing suggestion. Conditioned on the row
// existing; no silent upsert.
func (s *SQLiteStorage) UpdateSuggestion(ctx context.Context, suggestion *model.RuleSuggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return updateSuggestion(ctx, s.db, suggestion)
}

func updateSuggestion(ctx context.Context, q querier, suggestion *model.RuleSuggestion) error {
	if err := validateSuggestion(suggestion); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE rule_suggestions SET
			suggestion_type = ?, ingredient1 = ?, ingredient2 = ?,
			occurrence_count = ?, confidence_score = ?, status = ?,
			reviewed_by = ?, reviewed_at = ?, review_notes = ?, created_rule_id = ?
		WHERE id = ?`,
		suggestion.SuggestionType, suggestion.Ingredient1, nullString(suggestion.Ingredient2),
		suggestion.OccurrenceCount, suggestion.ConfidenceScore, suggestion.Status,
		nullString(suggestion.ReviewedBy), nullTime(suggestion.ReviewedAt),
		nullString(suggestion.ReviewNotes), suggestion.CreatedRuleID,
		suggestion.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update suggestion: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrSuggestionNotFound, suggestion.ID)
	}

	return nil
}

func scanSuggestion(row scanner) (*model.RuleSuggestion, error) {
	var s model.RuleSuggestion
	var ingredient2, reviewedBy, reviewNotes sql.NullString
	var reviewedAt sql.NullTime
	var createdRuleID sql.NullInt64

	err := row.Scan(
		&s.ID, &s.SuggestionType, &s.Ingredient1, &ingredient2,
		&s.OccurrenceCount, &s.ConfidenceScore, &s.Status, &reviewedBy, &reviewedAt,
		&reviewNotes, &createdRuleID, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Ingredient2 = ingredient2.String
	s.ReviewedBy = reviewedBy.String
	s.ReviewNotes = reviewNotes.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		s.ReviewedAt = &t
	}
	if createdRuleID.Valid {
		id := createdRuleID.Int64
		s.CreatedRuleID = &id
	}

	return &s, nil
}
