package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/larderhq/larder/internal/common"
	"github.com/larderhq/larder/internal/config"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/storage"
)

// getDatabase opens the configured database and runs migrations.
// The returned cleanup function must be called when done.
func getDatabase() (*storage.SQLiteStorage, func(), error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/larder/larder.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Open database
	db, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, nil, common.NewUserError(fmt.Sprintf("failed to open database at %s", dbPath), err)
	}

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}

	return db, cleanup, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID: %s", arg)
	}
	return id, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// ingredientFile is the on-disk shape of a recipe ingredient list.
type ingredientFile struct {
	Name        string          `json:"name"`
	Ingredients []ingredientRow `json:"ingredients"`
}

type ingredientRow struct {
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
}

type inventoryRow struct {
	PurchaseDate string  `json:"purchase_date"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`
}

// loadIngredients reads a recipe file. It accepts either a bare JSON array
// of ingredients or an object with an "ingredients" key.
func loadIngredients(path string) ([]model.Ingredient, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied recipe path
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	var rows []ingredientRow
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse recipe file: %w", err)
		}
	} else {
		var file ingredientFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse recipe file: %w", err)
		}
		rows = file.Ingredients
	}

	ingredients := make([]model.Ingredient, 0, len(rows))
	for _, row := range rows {
		ingredients = append(ingredients, model.Ingredient{
			Name:     row.Name,
			Unit:     row.Unit,
			Quantity: row.Quantity,
		})
	}
	return ingredients, nil
}

// loadInventory reads a JSON array of inventory items. Purchase dates are
// optional and accepted as YYYY-MM-DD or RFC 3339.
func loadInventory(path string) ([]model.InventoryItem, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied inventory path
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file: %w", err)
	}

	var rows []inventoryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse inventory file: %w", err)
	}

	items := make([]model.InventoryItem, 0, len(rows))
	for _, row := range rows {
		item := model.InventoryItem{
			Name:     row.Name,
			Unit:     row.Unit,
			Quantity: row.Quantity,
		}
		if row.PurchaseDate != "" {
			parsed, err := parseDate(row.PurchaseDate)
			if err != nil {
				return nil, fmt.Errorf("invalid purchase date for %q: %w", row.Name, err)
			}
			item.PurchaseDate = parsed
		}
		items = append(items, item)
	}
	return items, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
