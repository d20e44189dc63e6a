package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"autotrade-worker/config"
	models "autotrade-worker/database/models_pkg"
	"autotrade-worker/database/types"
)

// WatchlistStore is the watchlist access the reconciler needs.
type WatchlistStore interface {
	Get(code string) (*models.WatchlistEntry, error)
	Upsert(entry *models.WatchlistEntry) error
	DisableSelectedExcept(keep []string) (int64, error)
}

// MarketMetaReader provides the market-side metadata for reconciliation.
type MarketMetaReader interface {
	LatestMarketDate() (string, error)
	LookupMember(code string) (*models.UniverseMember, error)
}

// candidateSelector lets tests substitute the funnel.
type candidateSelector interface {
	Select(params *config.StrategyParams, limit int) ([]types.SelectionCandidate, error)
}

// SyncResult reports one reconciliation pass.
type SyncResult struct {
	Ran         bool
	Managed     map[string]bool // codes the selection currently owns
	Upserted    int
	Disabled    int64
	SkippedExit int
}

// Reconciler keeps the SELECTED portion of the watchlist in step with the
// strategy's current selection. EXIT rows are operator territory and are
// never touched.
type Reconciler struct {
	watchlist WatchlistStore
	market    MarketMetaReader
	selector  candidateSelector
	cfg       config.AutotradeConfig
	log       zerolog.Logger

	// loadStrategy is swappable for tests.
	loadStrategy func(path string) (*config.StrategyParams, error)

	lastSyncAt    time.Time
	lastPriceDate string
}

// NewReconciler creates a reconciler.
func NewReconciler(watchlist WatchlistStore, market MarketMetaReader, selector candidateSelector, cfg config.AutotradeConfig, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		watchlist:    watchlist,
		market:       market,
		selector:     selector,
		cfg:          cfg,
		log:          logger.With().Str("component", "reconciler").Logger(),
		loadStrategy: config.LoadStrategy,
	}
}

// Sync runs one reconciliation pass if it is due. A pass is due when sync is
// enabled and either the sync interval elapsed or a new market date arrived.
// A strategy load failure aborts the pass before any write.
func (r *Reconciler) Sync(now time.Time) (*SyncResult, error) {
	result := &SyncResult{Managed: map[string]bool{}}
	if !r.cfg.SyncEnabled {
		return result, nil
	}

	priceDate, err := r.market.LatestMarketDate()
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	intervalDue := r.lastSyncAt.IsZero() || now.Sub(r.lastSyncAt) >= r.cfg.SyncInterval
	newDate := priceDate != "" && priceDate != r.lastPriceDate
	if !intervalDue && !newDate {
		return result, nil
	}

	params, err := r.loadStrategy(r.cfg.StrategyFile)
	if err != nil {
		// No writes on a bad strategy file; the previous watchlist stays
		// authoritative until the file is fixed.
		return nil, fmt.Errorf("sync: %w", err)
	}

	limit := r.cfg.SyncMaxCodes
	if limit <= 0 {
		limit = params.MaxPositions
	}
	candidates, err := r.selector.Select(params, limit)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	keep := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		existing, err := r.watchlist.Get(candidate.Code)
		if err != nil {
			return result, fmt.Errorf("sync: %w", err)
		}
		if existing != nil && existing.ListType == types.ListExit && existing.Enabled {
			// Operator moved this code to the exit list; selection must
			// not pull it back. A disabled EXIT row is fair game again.
			result.SkippedExit++
			continue
		}

		entry := &models.WatchlistEntry{
			Code:     candidate.Code,
			ListType: types.ListSelected,
			Enabled:  true,
		}
		if member, err := r.market.LookupMember(candidate.Code); err == nil && member != nil {
			entry.Name = member.Name
			entry.Market = member.Market
			entry.ExchangeCode = member.ExchangeCode
		}
		if err := r.watchlist.Upsert(entry); err != nil {
			return result, fmt.Errorf("sync: %w", err)
		}
		result.Upserted++
		keep = append(keep, candidate.Code)
		result.Managed[candidate.Code] = true
	}

	disabled, err := r.watchlist.DisableSelectedExcept(keep)
	if err != nil {
		return result, fmt.Errorf("sync: %w", err)
	}
	result.Disabled = disabled
	result.Ran = true

	r.lastSyncAt = now
	r.lastPriceDate = priceDate

	r.log.Info().
		Int("selected", len(keep)).
		Int64("disabled", disabled).
		Int("skipped_exit", result.SkippedExit).
		Str("price_date", priceDate).
		Msg("watchlist reconciled")
	return result, nil
}
