// Package plans persists the engine-produced trading plans, one per
// (asof_date, code). The materializer reuses an existing row verbatim
// instead of recomputing, which is what keeps engine calls bounded to one
// per symbol per market day.
package plans

import (
	"fmt"

	models "autotrade-worker/database/models_pkg"
	"autotrade-worker/helpers"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for trading plans.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new plans repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the plan for (asofDate, code), or nil when none exists.
func (r *Repository) Get(asofDate, code string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.
		Where("asof_date = ? AND code = ?", asofDate, helpers.NormalizeCode(code)).
		First(&plan).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &plan, nil
}

// Upsert inserts or replaces the plan keyed on (asof_date, code). Replace,
// not append: an explicit recompute for the same day overwrites the prior
// row in place.
func (r *Repository) Upsert(plan *models.Plan) error {
	plan.Code = helpers.NormalizeCode(plan.Code)
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asof_date"}, {Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"entry_price", "target_price", "stop_price",
			"confidence", "status", "plan_json", "updated_at",
		}),
	}).Create(plan).Error
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
