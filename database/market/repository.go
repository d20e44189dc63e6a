// Package market reads the collector-owned market tables: latest daily bars
// for the selection funnel, market-date bookkeeping for expiry, and symbol
// metadata lookups. Everything here is read-only.
package market

import (
	"fmt"

	models "autotrade-worker/database/models_pkg"
	"autotrade-worker/database/types"
	"autotrade-worker/helpers"

	"gorm.io/gorm"
)

// Repository handles read access to the market data tables.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new market repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// latestRowsSQL joins the latest bar per symbol with its previous bar (for
// the MA25 trend filter) and the bar three sessions back (for the 3-bar
// return), plus universe and sector metadata. Ordered by amount descending
// so the liquidity-rank cut can walk the slice in order.
const latestRowsSQL = `
SELECT dp.code,
       COALESCE(u.market, '') AS market,
       COALESCE(u.group_name, 'UNKNOWN') AS group_name,
       COALESCE(sm.industry_name, sm.sector_name, u.group_name, 'UNKNOWN') AS sector,
       CAST(COALESCE(dp.amount, 0) AS DOUBLE PRECISION) AS amount,
       CAST(COALESCE(dp.disparity, 0) AS DOUBLE PRECISION) AS disparity,
       CAST(COALESCE(dp.ma25, 0) AS DOUBLE PRECISION) AS ma25,
       CAST(COALESCE(prev.ma25, 0) AS DOUBLE PRECISION) AS ma25_prev,
       CAST(COALESCE(dp.close, 0) AS DOUBLE PRECISION) AS close,
       CAST(COALESCE(prev3.close, 0) AS DOUBLE PRECISION) AS close_prev3
FROM daily_price dp
JOIN (
  SELECT code, MAX(date) AS max_date
  FROM daily_price
  GROUP BY code
) mx
  ON dp.code = mx.code
 AND dp.date = mx.max_date
JOIN universe_members u
  ON dp.code = u.code
LEFT JOIN daily_price prev
  ON prev.code = dp.code
 AND prev.date = (
   SELECT p2.date
   FROM daily_price p2
   WHERE p2.code = dp.code
     AND p2.date < dp.date
   ORDER BY p2.date DESC
   LIMIT 1
 )
LEFT JOIN daily_price prev3
  ON prev3.code = dp.code
 AND prev3.date = (
   SELECT p4.date
   FROM daily_price p4
   WHERE p4.code = dp.code
     AND p4.date < dp.date
   ORDER BY p4.date DESC
   LIMIT 1 OFFSET 2
 )
ORDER BY amount DESC
`

// LatestRows returns the latest-per-symbol market snapshot for the whole
// universe, ordered by traded amount descending.
func (r *Repository) LatestRows() ([]types.MarketRow, error) {
	var rows []types.MarketRow
	if err := r.db.Raw(latestRowsSQL).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("LatestRows: %w", err)
	}
	for i := range rows {
		rows[i].Code = helpers.NormalizeCode(rows[i].Code)
	}
	return rows, nil
}

// LatestMarketDate returns the most recent date present in daily_price, or
// "" when the table is empty. Expiry keys off this date rather than the
// wall clock so queues survive weekends and timezone gaps.
func (r *Repository) LatestMarketDate() (string, error) {
	var date *string
	if err := r.db.Model(&models.DailyPrice{}).Select("MAX(date)").Scan(&date).Error; err != nil {
		return "", fmt.Errorf("LatestMarketDate: %w", err)
	}
	if date == nil {
		return "", nil
	}
	return *date, nil
}

// LastPriceDate returns the most recent bar date for one symbol, or "" when
// the symbol has no bars.
func (r *Repository) LastPriceDate(code string) (string, error) {
	var date *string
	err := r.db.Model(&models.DailyPrice{}).
		Select("MAX(date)").
		Where("code = ?", helpers.NormalizeCode(code)).
		Scan(&date).Error
	if err != nil {
		return "", fmt.Errorf("LastPriceDate: %w", err)
	}
	if date == nil {
		return "", nil
	}
	return *date, nil
}

// HeldSectorCounts returns how many currently held positions fall into each
// sector. The selector seeds its per-sector counters from this so the cap
// covers held + newly selected together.
func (r *Repository) HeldSectorCounts() (map[string]int, error) {
	type heldRow struct {
		Sector string
	}
	var rows []heldRow
	err := r.db.Raw(`
		SELECT COALESCE(sm.industry_name, sm.sector_name, u.group_name, 'UNKNOWN') AS sector
		FROM position_state p
		LEFT JOIN sector_map sm ON p.code = sm.code
		LEFT JOIN universe_members u ON p.code = u.code
	`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("HeldSectorCounts: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		sector := row.Sector
		if sector == "" {
			sector = "UNKNOWN"
		}
		counts[sector]++
	}
	return counts, nil
}

// LookupMember returns universe metadata for a symbol, or nil when the
// symbol is not part of the universe.
func (r *Repository) LookupMember(code string) (*models.UniverseMember, error) {
	var member models.UniverseMember
	err := r.db.Where("code = ?", helpers.NormalizeCode(code)).First(&member).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupMember: %w", err)
	}
	return &member, nil
}
