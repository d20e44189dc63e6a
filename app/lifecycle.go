package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"autotrade-worker/config"
	"autotrade-worker/database"
)

// LifecycleQueue is the queue surface the maintainer drives.
type LifecycleQueue interface {
	ExpireBefore(latestMarketDate string) (int64, error)
	PurgeBefore(cutoffDate string) (int64, error)
	CancelBuysNotIn(keep []string, reason string) (int64, error)
	CancelSells(reason string) (int64, error)
}

// MarketDateReader resolves the latest known market date.
type MarketDateReader interface {
	LatestMarketDate() (string, error)
}

// Maintainer ages the queue: expiry keyed off the market calendar, retention
// purge keyed off the wall clock, and cross-cancellation after selection
// changes.
type Maintainer struct {
	queue  LifecycleQueue
	market MarketDateReader
	cfg    config.AutotradeConfig
	log    zerolog.Logger
}

// NewMaintainer creates a maintainer.
func NewMaintainer(q LifecycleQueue, market MarketDateReader, cfg config.AutotradeConfig, logger zerolog.Logger) *Maintainer {
	return &Maintainer{
		queue:  q,
		market: market,
		cfg:    cfg,
		log:    logger.With().Str("component", "lifecycle").Logger(),
	}
}

// ExpireAndPurge expires intents older than the latest market date and
// deletes terminal intents past the retention window.
func (m *Maintainer) ExpireAndPurge(now time.Time) (expired, purged int64, err error) {
	latest, err := m.market.LatestMarketDate()
	if err != nil {
		return 0, 0, fmt.Errorf("expire: %w", err)
	}

	expired, err = m.queue.ExpireBefore(latest)
	if err != nil {
		return 0, 0, err
	}

	cutoff := now.AddDate(0, 0, -m.cfg.PurgeExpiredAfterDays).Format(database.DateLayout)
	purged, err = m.queue.PurgeBefore(cutoff)
	if err != nil {
		return expired, 0, err
	}

	if expired > 0 || purged > 0 {
		m.log.Info().Int64("expired", expired).Int64("purged", purged).Msg("queue aged")
	}
	return expired, purged, nil
}

// CrossCancel aligns the queue with the latest reconciliation: BUY intents
// whose code left the managed selection are cancelled, and all SELL intents
// are cancelled when sell-queue generation is off. Only runs the buy-side
// cancel after a sync that actually ran, so a skipped sync never wipes the
// queue.
func (m *Maintainer) CrossCancel(sync *SyncResult) (int64, error) {
	var total int64

	if m.cfg.CancelMissingSelected && sync != nil && sync.Ran {
		keep := make([]string, 0, len(sync.Managed))
		for code := range sync.Managed {
			keep = append(keep, code)
		}
		n, err := m.queue.CancelBuysNotIn(keep, database.CancelReasonMissingSelection)
		if err != nil {
			return total, fmt.Errorf("cross cancel: %w", err)
		}
		total += n
	}

	if !m.cfg.GenerateSellQueue {
		n, err := m.queue.CancelSells(database.CancelReasonSellQueueDisabled)
		if err != nil {
			return total, fmt.Errorf("cross cancel: %w", err)
		}
		total += n
	}

	if total > 0 {
		m.log.Info().Int64("cancelled", total).Msg("queue cross-cancelled")
	}
	return total, nil
}
