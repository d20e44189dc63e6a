// Package watchlist persists the tracked-symbol list. Rows are written by
// the selection reconciler and by operator tooling; the dispatcher only
// reads them.
package watchlist

import (
	"fmt"

	models "autotrade-worker/database/models_pkg"
	"autotrade-worker/database/types"
	"autotrade-worker/helpers"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for the watchlist.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new watchlist repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the entry for a code, or nil when the code is not tracked.
func (r *Repository) Get(code string) (*models.WatchlistEntry, error) {
	var entry models.WatchlistEntry
	err := r.db.Where("code = ?", helpers.NormalizeCode(code)).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &entry, nil
}

// ListEnabled returns the enabled rows, the set the plan materializer walks
// each cycle.
func (r *Repository) ListEnabled() ([]models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	if err := r.db.Where("enabled = ?", true).Order("code ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("ListEnabled: %w", err)
	}
	return entries, nil
}

// Upsert inserts or updates an entry keyed on code. Name, market and
// exchange code only overwrite when the new value is non-empty, so a sync
// with missing metadata never blanks operator-filled fields.
func (r *Repository) Upsert(entry *models.WatchlistEntry) error {
	if !entry.ListType.Valid() {
		return fmt.Errorf("Upsert: invalid list type %q", entry.ListType)
	}
	entry.Code = helpers.NormalizeCode(entry.Code)

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"name":      gorm.Expr("CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE autotrade_watchlist.name END"),
			"market":    gorm.Expr("CASE WHEN EXCLUDED.market <> '' THEN EXCLUDED.market ELSE autotrade_watchlist.market END"),
			"excd":      gorm.Expr("CASE WHEN EXCLUDED.excd <> '' THEN EXCLUDED.excd ELSE autotrade_watchlist.excd END"),
			"list_type": gorm.Expr("EXCLUDED.list_type"),
			"enabled":   gorm.Expr("EXCLUDED.enabled"),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// DisableSelectedExcept soft-disables every enabled SELECTED row whose code
// is not in keep. Rows are retained for audit, never hard-deleted here.
// Returns the number of rows disabled.
func (r *Repository) DisableSelectedExcept(keep []string) (int64, error) {
	query := r.db.Model(&models.WatchlistEntry{}).
		Where("list_type = ?", types.ListSelected).
		Where("enabled = ?", true)
	if len(keep) > 0 {
		normalized := make([]string, 0, len(keep))
		for _, code := range keep {
			normalized = append(normalized, helpers.NormalizeCode(code))
		}
		query = query.Where("code NOT IN ?", normalized)
	}

	result := query.Update("enabled", false)
	if result.Error != nil {
		return 0, fmt.Errorf("DisableSelectedExcept: %w", result.Error)
	}
	return result.RowsAffected, nil
}
