package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/larderhq/larder/internal/common"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/normalize"
)

// ruleColumns is the canonical select list for ingredient_rules.
const ruleColumns = `id, rule_type, ingredient_name, equivalents, excluded_matches,
	category_info, confidence_threshold, is_active, is_system_default,
	approved, approved_by, approved_at, source, notes, use_count,
	created_at, updated_at`

// CreateRule creates a new ingredient rule. Name fields are normalized at
// storage time so store-side keys always agree with query-side keys.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.IngredientRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return createRule(ctx, s.db, rule)
}

func createRule(ctx context.Context, q querier, rule *model.IngredientRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	normalizeRule(rule)

	equivalents, exclusions, category, err := marshalRulePayload(rule)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO ingredient_rules (
			rule_type, ingredient_name, equivalents, excluded_matches,
			category_info, confidence_threshold, is_active, is_system_default,
			approved, approved_by, approved_at, source, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.RuleType, rule.IngredientName, equivalents, exclusions,
		category, rule.ConfidenceThreshold, rule.IsActive, rule.IsSystemDefault,
		rule.Approved, nullString(rule.ApprovedBy), nullTime(rule.ApprovedAt),
		rule.Source, nullString(rule.Notes),
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	return nil
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.IngredientRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getRule(ctx, s.db, id)
}

func getRule(ctx context.Context, q querier, id int64) (*model.IngredientRule, error) {
	row := q.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM ingredient_rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// GetActiveRules retrieves the rules that participate in matching:
// approved and active, ordered by ingredient name for stable output.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context) ([]model.IngredientRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getActiveRules(ctx, s.db)
}

func getActiveRules(ctx context.Context, q querier) ([]model.IngredientRule, error) {
	return queryRules(ctx, q, `
		SELECT `+ruleColumns+`
		FROM ingredient_rules
		WHERE approved = 1 AND is_active = 1
		ORDER BY ingredient_name, id`)
}

// GetRulesByIngredient retrieves all rules keyed on a canonical name,
// regardless of state. The lookup key is normalized the same way stored
// keys are.
func (s *SQLiteStorage) GetRulesByIngredient(ctx context.Context, canonicalName string) ([]model.IngredientRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(canonicalName, "canonicalName"); err != nil {
		return nil, err
	}
	return getRulesByIngredient(ctx, s.db, canonicalName)
}

func getRulesByIngredient(ctx context.Context, q querier, canonicalName string) ([]model.IngredientRule, error) {
	return queryRules(ctx, q, `
		SELECT `+ruleColumns+`
		FROM ingredient_rules
		WHERE ingredient_name = ?
		ORDER BY id`, normalize.Name(canonicalName))
}

// GetAllRules retrieves every rule, including inactive and unapproved ones.
func (s *SQLiteStorage) GetAllRules(ctx context.Context) ([]model.IngredientRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getAllRules(ctx, s.db)
}

func getAllRules(ctx context.Context, q querier) ([]model.IngredientRule, error) {
	return queryRules(ctx, q, `
		SELECT `+ruleColumns+`
		FROM ingredient_rules
		ORDER BY ingredient_name, id`)
}

// UpdateRule updates an existing rule. The update is conditioned on the row
// existing; updating a nonexistent ID is a conflict, not an upsert.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.IngredientRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return updateRule(ctx, s.db, rule)
}

func updateRule(ctx context.Context, q querier, rule *model.IngredientRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	normalizeRule(rule)

	equivalents, exclusions, category, err := marshalRulePayload(rule)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE ingredient_rules SET
			rule_type = ?, ingredient_name = ?, equivalents = ?,
			excluded_matches = ?, category_info = ?, confidence_threshold = ?,
			is_active = ?, approved = ?, approved_by = ?, approved_at = ?,
			source = ?, notes = ?
		WHERE id = ?`,
		rule.RuleType, rule.IngredientName, equivalents,
		exclusions, category, rule.ConfidenceThreshold,
		rule.IsActive, rule.Approved, nullString(rule.ApprovedBy), nullTime(rule.ApprovedAt),
		rule.Source, nullString(rule.Notes),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	return requireRowAffected(result, rule.ID)
}

// ApproveRule marks a rule approved so it participates in matching.
func (s *SQLiteStorage) ApproveRule(ctx context.Context, id int64, approvedBy string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return approveRule(ctx, s.db, id, approvedBy)
}

func approveRule(ctx context.Context, q querier, id int64, approvedBy string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE ingredient_rules
		SET approved = 1, approved_by = ?, approved_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		nullString(approvedBy), id)
	if err != nil {
		return fmt.Errorf("failed to approve rule: %w", err)
	}
	return requireRowAffected(result, id)
}

// DeactivateRule takes a rule out of matching without deleting it. This is
// the only way to retire a system default.
func (s *SQLiteStorage) DeactivateRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return deactivateRule(ctx, s.db, id)
}

func deactivateRule(ctx context.Context, q querier, id int64) error {
	result, err := q.ExecContext(ctx,
		`UPDATE ingredient_rules SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}
	return requireRowAffected(result, id)
}

// DeleteRule removes a rule. System default rules cannot be deleted, only
// deactivated.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return deleteRule(ctx, s.db, id)
}

func deleteRule(ctx context.Context, q querier, id int64) error {
	var isSystemDefault bool
	err := q.QueryRowContext(ctx,
		`SELECT is_system_default FROM ingredient_rules WHERE id = ?`, id).Scan(&isSystemDefault)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
		}
		return fmt.Errorf("failed to check rule: %w", err)
	}
	if isSystemDefault {
		return fmt.Errorf("%w: rule %d can only be deactivated", common.ErrSystemDefault, id)
	}

	result, err := q.ExecContext(ctx, `DELETE FROM ingredient_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireRowAffected(result, id)
}

// IncrementRuleUseCount bumps the rule's use counter after it produced an
// accepted match.
func (s *SQLiteStorage) IncrementRuleUseCount(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return incrementRuleUseCount(ctx, s.db, id)
}

func incrementRuleUseCount(ctx context.Context, q querier, id int64) error {
	result, err := q.ExecContext(ctx,
		`UPDATE ingredient_rules SET use_count = use_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment rule use count: %w", err)
	}
	return requireRowAffected(result, id)
}

func queryRules(ctx context.Context, q querier, query string, args ...any) ([]model.IngredientRule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.IngredientRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*model.IngredientRule, error) {
	var rule model.IngredientRule
	var equivalents, exclusions, category, approvedBy, notes sql.NullString
	var approvedAt sql.NullTime

	err := row.Scan(
		&rule.ID, &rule.RuleType, &rule.IngredientName, &equivalents, &exclusions,
		&category, &rule.ConfidenceThreshold, &rule.IsActive, &rule.IsSystemDefault,
		&rule.Approved, &approvedBy, &approvedAt, &rule.Source, &notes, &rule.UseCount,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.ApprovedBy = approvedBy.String
	rule.Notes = notes.String
	if approvedAt.Valid {
		t := approvedAt.Time
		rule.ApprovedAt = &t
	}

	if equivalents.Valid && equivalents.String != "" {
		if err := json.Unmarshal([]byte(equivalents.String), &rule.Equivalents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal equivalents: %w", err)
		}
	}
	if exclusions.Valid && exclusions.String != "" {
		if err := json.Unmarshal([]byte(exclusions.String), &rule.ExcludedMatches); err != nil {
			return nil, fmt.Errorf("failed to unmarshal excluded matches: %w", err)
		}
	}
	if category.Valid && category.String != "" {
		var payload model.CategoryPayload
		if err := json.Unmarshal([]byte(category.String), &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category info: %w", err)
		}
		rule.Category = &payload
	}

	return &rule, nil
}

// normalizeRule canonicalizes all name fields on a rule in place.
func normalizeRule(rule *model.IngredientRule) {
	rule.IngredientName = normalize.Name(rule.IngredientName)
	for i, eq := range rule.Equivalents {
		rule.Equivalents[i] = normalize.Name(eq)
	}
	for i, ex := range rule.ExcludedMatches {
		rule.ExcludedMatches[i] = normalize.Name(ex)
	}
}

func marshalRulePayload(rule *model.IngredientRule) (equivalents, exclusions, category sql.NullString, err error) {
	if len(rule.Equivalents) > 0 {
		data, merr := json.Marshal(rule.Equivalents)
		if merr != nil {
			return equivalents, exclusions, category, fmt.Errorf("failed to marshal equivalents: %w", merr)
		}
		equivalents = sql.NullString{String: string(data), Valid: true}
	}
	if len(rule.ExcludedMatches) > 0 {
		data, merr := json.Marshal(rule.ExcludedMatches)
		if merr != nil {
			return equivalents, exclusions, category, fmt.Errorf("failed to marshal excluded matches: %w", merr)
		}
		exclusions = sql.NullString{String: string(data), Valid: true}
	}
	if rule.Category != nil {
		data, merr := json.Marshal(rule.Category)
		if merr != nil {
			return equivalents, exclusions, category, fmt.Errorf("failed to marshal category info: %w", merr)
		}
		category = sql.NullString{String: string(data), Valid: true}
	}
	return equivalents, exclusions, category, nil
}

func requireRowAffected(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
