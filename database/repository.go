package database

import (
	"fmt"

	models "autotrade-worker/database/models_pkg"
	"autotrade-worker/database/market"
	"autotrade-worker/database/plans"
	"autotrade-worker/database/queue"
	"autotrade-worker/database/watchlist"
	"autotrade-worker/helpers"

	"gorm.io/gorm"
)

// AutoTradeRepository bundles the per-table repositories behind one handle.
type AutoTradeRepository struct {
	Market    *market.Repository
	Watchlist *watchlist.Repository
	Plans     *plans.Repository
	Queue     *queue.Repository

	db *gorm.DB
}

// NewAutoTradeRepository creates the repository facade over one connection.
func NewAutoTradeRepository(database *Database) *AutoTradeRepository {
	db := database.DB()
	return &AutoTradeRepository{
		Market:    market.NewRepository(db),
		Watchlist: watchlist.NewRepository(db),
		Plans:     plans.NewRepository(db),
		Queue:     queue.NewRepository(db),
		db:        db,
	}
}

// InitSchema migrates the four worker-owned tables. The market tables belong
// to the data collectors and are deliberately not migrated here.
func (r *AutoTradeRepository) InitSchema() error {
	err := r.db.AutoMigrate(
		&models.WatchlistEntry{},
		&models.Plan{},
		&models.QueueIntent{},
		&models.DispatchEvent{},
	)
	return WrapDBError("InitSchema", err)
}

// SymbolInfo is the metadata needed to build an order payload for a symbol.
type SymbolInfo struct {
	Code         string
	Name         string
	Market       string
	ExchangeCode string
}

// EnrichSymbol resolves name, market and exchange code for a symbol. The
// watchlist row wins when present since operators may have corrected it;
// the universe fills any fields the watchlist leaves blank.
func (r *AutoTradeRepository) EnrichSymbol(code string) (SymbolInfo, error) {
	info := SymbolInfo{Code: helpers.NormalizeCode(code)}

	entry, err := r.Watchlist.Get(info.Code)
	if err != nil {
		return info, fmt.Errorf("EnrichSymbol: %w", err)
	}
	if entry != nil {
		info.Name = entry.Name
		info.Market = entry.Market
		info.ExchangeCode = entry.ExchangeCode
	}

	if info.Name != "" && info.Market != "" && info.ExchangeCode != "" {
		return info, nil
	}

	member, err := r.Market.LookupMember(info.Code)
	if err != nil {
		return info, fmt.Errorf("EnrichSymbol: %w", err)
	}
	if member != nil {
		if info.Name == "" {
			info.Name = member.Name
		}
		if info.Market == "" {
			info.Market = member.Market
		}
		if info.ExchangeCode == "" {
			info.ExchangeCode = member.ExchangeCode
		}
	}
	return info, nil
}
