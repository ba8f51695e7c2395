// Package storage provides the data persistence layer for the larder engine.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// querier is satisfied by both *sql.DB and *sql.Tx so entity operations can
// run standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{tx: tx, storage: s}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) CreateRule(ctx context.Context, rule *model.IngredientRule) error {
	return createRule(ctx, t.tx, rule)
}

func (t *sqliteTransaction) GetRule(ctx context.Context, id int64) (*model.IngredientRule, error) {
	return getRule(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetActiveRules(ctx context.Context) ([]model.IngredientRule, error) {
	return getActiveRules(ctx, t.tx)
}

func (t *sqliteTransaction) GetRulesByIngredient(ctx context.Context, canonicalName string) ([]model.IngredientRule, error) {
	return getRulesByIngredient(ctx, t.tx, canonicalName)
}

func (t *sqliteTransaction) GetAllRules(ctx context.Context) ([]model.IngredientRule, error) {
	return getAllRules(ctx, t.tx)
}

func (t *sqliteTransaction) UpdateRule(ctx context.Context, rule *model.IngredientRule) error {
	return updateRule(ctx, t.tx, rule)
}

func (t *sqliteTransaction) ApproveRule(ctx context.Context, id int64, approvedBy string) error {
	return approveRule(ctx, t.tx, id, approvedBy)
}

func (t *sqliteTransaction) DeactivateRule(ctx context.Context, id int64) error {
	return deactivateRule(ctx, t.tx, id)
}

func (t *sqliteTransaction) DeleteRule(ctx context.Context, id int64) error {
	return deleteRule(ctx, t.tx, id)
}

func (t *sqliteTransaction) IncrementRuleUseCount(ctx context.Context, id int64) error {
	return incrementRuleUseCount(ctx, t.tx, id)
}

func (t *sqliteTransaction) CreateSuggestion(ctx context.Context, suggestion *model.RuleSuggestion) error {
	return createSuggestion(ctx, t.tx, suggestion)
}

func (t *sqliteTransaction) GetSuggestion(ctx context.Context, id int64) (*model.RuleSuggestion, error) {
	return getSuggestion(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetSuggestionsByStatus(ctx context.Context, status model.SuggestionStatus) ([]model.RuleSuggestion, error) {
	return getSuggestionsByStatus(ctx, t.tx, status)
}

func (t *sqliteTransaction) UpdateSuggestion(ctx context.Context, suggestion *model.RuleSuggestion) error {
	return updateSuggestion(ctx, t.tx, suggestion)
}

func (t *sqliteTransaction) SaveFeedback(ctx context.Context, feedback *model.MatchFeedback) error {
	return saveFeedback(ctx, t.tx, feedback)
}

func (t *sqliteTransaction) GetFeedback(ctx context.Context, filter service.FeedbackFilter) ([]model.MatchFeedback, error) {
	return getFeedback(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetFeedbackCount(ctx context.Context) (int, error) {
	return getFeedbackCount(ctx, t.tx)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
