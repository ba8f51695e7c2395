package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS ingredient_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					rule_type TEXT NOT NULL,
					ingredient_name TEXT NOT NULL,
					equivalents TEXT,
					excluded_matches TEXT,
					category_info TEXT,
					confidence_threshold REAL NOT NULL DEFAULT 0,
					is_active INTEGER NOT NULL DEFAULT 1,
					is_system_default INTEGER NOT NULL DEFAULT 0,
					approved INTEGER NOT NULL DEFAULT 0,
					approved_by TEXT,
					approved_at DATETIME,
					source TEXT NOT NULL DEFAULT 'admin',
					notes TEXT,
					use_count INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_ingredient_rules_name ON ingredient_rules(ingredient_name)`,
				`CREATE INDEX idx_ingredient_rules_active ON ingredient_rules(approved, is_active)`,

				`CREATE TABLE IF NOT EXISTS rule_suggestions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					suggestion_type TEXT NOT NULL,
					ingredient1 TEXT NOT NULL,
					ingredient2 TEXT,
					occurrence_count INTEGER NOT NULL DEFAULT 1,
					confidence_score REAL NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'pending',
					reviewed_by TEXT,
					reviewed_at DATETIME,
					review_notes TEXT,
					created_rule_id INTEGER REFERENCES ingredient_rules(id),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rule_suggestions_status ON rule_suggestions(status)`,
				`CREATE INDEX idx_rule_suggestions_pattern ON rule_suggestions(ingredient1, ingredient2, suggestion_type)`,

				`CREATE TABLE IF NOT EXISTS match_feedback (
					id TEXT PRIMARY KEY,
					recipe_ingredient TEXT NOT NULL,
					matched_product_name TEXT NOT NULL,
					is_correct INTEGER NOT NULL,
					feedback_type TEXT NOT NULL,
					user_feedback TEXT,
					confidence_score REAL NOT NULL DEFAULT 0,
					match_type TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_match_feedback_correct ON match_feedback(is_correct)`,
				`CREATE INDEX idx_match_feedback_created ON match_feedback(created_at)`,

				`CREATE TRIGGER update_ingredient_rules_updated_at
				AFTER UPDATE ON ingredient_rules
				FOR EACH ROW
				BEGIN
					UPDATE ingredient_rules SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
				END`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Seed system default equivalency rules",
		Up: func(tx *sql.Tx) error {
			type seed struct {
				name        string
				equivalents string
			}
			seeds := []seed{
				{"milk", `["whole milk","2% milk","skim milk"]`},
				{"butter", `["unsalted butter","salted butter"]`},
				{"flour", `["all purpose flour","bread flour"]`},
				{"sugar", `["granulated sugar","white sugar"]`},
				{"egg", `["large egg"]`},
				{"green onion", `["scallion","spring onion"]`},
			}

			for _, s := range seeds {
				if _, err := tx.Exec(`
					INSERT INTO ingredient_rules (
						rule_type, ingredient_name, equivalents,
						is_active, is_system_default, approved, source, notes
					) VALUES ('equivalency', ?, ?, 1, 1, 1, 'system', 'seeded default')`,
					s.name, s.equivalents,
				); err != nil {
					return fmt.Errorf("failed to seed rule for %q: %w", s.name, err)
				}
			}

			slog.Info("Seeded system default rules", "count", len(seeds))
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
