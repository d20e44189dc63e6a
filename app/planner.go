package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"autotrade-worker/config"
	"autotrade-worker/database"
	models "autotrade-worker/database/models_pkg"
	"autotrade-worker/database/types"
	"autotrade-worker/engine"
	"autotrade-worker/orders"
)

// PlanStore is the plan persistence the materializer needs.
type PlanStore interface {
	Get(asofDate, code string) (*models.Plan, error)
	Upsert(plan *models.Plan) error
}

// IntentStore accepts queue intent upserts.
type IntentStore interface {
	Upsert(intent *models.QueueIntent) error
}

// WatchlistReader lists the entries the materializer walks.
type WatchlistReader interface {
	ListEnabled() ([]models.WatchlistEntry, error)
}

// BarDateReader resolves the latest bar date per symbol.
type BarDateReader interface {
	LastPriceDate(code string) (string, error)
}

// SymbolEnricher resolves the listing metadata an order payload needs.
type SymbolEnricher interface {
	EnrichSymbol(code string) (database.SymbolInfo, error)
}

// RecommendClient is the recommendation engine surface.
type RecommendClient interface {
	Recommend(ctx context.Context, code, optimize string, lookbackBars int) (*engine.Recommendation, error)
}

// PlanStats reports one materialization pass.
type PlanStats struct {
	PlansCreated    int
	PlansReused     int
	IntentsUpserted int
	Skipped         int
}

// Planner materializes one plan per (asof_date, code) and builds the queue
// intents from it. An existing plan is reused verbatim; the engine is only
// consulted for symbols with no plan for their latest bar date.
type Planner struct {
	plans     PlanStore
	queue     IntentStore
	watchlist WatchlistReader
	bars      BarDateReader
	symbols   SymbolEnricher
	engine    RecommendClient
	cfg       config.AutotradeConfig
	log       zerolog.Logger
}

// NewPlanner creates a planner.
func NewPlanner(plans PlanStore, queue IntentStore, watchlist WatchlistReader, bars BarDateReader, symbols SymbolEnricher, rec RecommendClient, cfg config.AutotradeConfig, logger zerolog.Logger) *Planner {
	return &Planner{
		plans:     plans,
		queue:     queue,
		watchlist: watchlist,
		bars:      bars,
		symbols:   symbols,
		engine:    rec,
		cfg:       cfg,
		log:       logger.With().Str("component", "planner").Logger(),
	}
}

// EnsurePlansAndQueue walks every enabled watchlist entry, making sure a
// plan and its intent exist for the entry's latest bar date. Per-symbol
// failures are logged and skipped; the pass itself only fails on a
// watchlist read error.
func (p *Planner) EnsurePlansAndQueue(ctx context.Context) (*PlanStats, error) {
	entries, err := p.watchlist.ListEnabled()
	if err != nil {
		return nil, fmt.Errorf("ensure plans: %w", err)
	}

	stats := &PlanStats{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := p.ensureOne(ctx, entry, stats); err != nil {
			p.log.Warn().Err(err).Str("code", entry.Code).Msg("plan materialization skipped")
			stats.Skipped++
		}
	}
	return stats, nil
}

func (p *Planner) ensureOne(ctx context.Context, entry models.WatchlistEntry, stats *PlanStats) error {
	asof, err := p.bars.LastPriceDate(entry.Code)
	if err != nil {
		return err
	}
	if asof == "" {
		return fmt.Errorf("no price history for %s", entry.Code)
	}

	plan, err := p.plans.Get(asof, entry.Code)
	if err != nil {
		return err
	}
	if plan == nil {
		plan, err = p.materialize(ctx, entry.Code, asof)
		if err != nil {
			return err
		}
		stats.PlansCreated++
	} else {
		stats.PlansReused++
	}

	return p.buildIntents(plan, stats)
}

// materialize asks the engine for a plan and persists it. An engine failure
// writes nothing, so the next cycle retries cleanly.
func (p *Planner) materialize(ctx context.Context, code, asof string) (*models.Plan, error) {
	rec, err := p.engine.Recommend(ctx, code, p.cfg.Optimize, p.cfg.OptimizeLookbackBars)
	if err != nil {
		return nil, err
	}
	if !rec.OK {
		return nil, fmt.Errorf("engine rejected %s: %s", code, rec.Err)
	}

	if rec.AsofDate != "" {
		asof = rec.AsofDate
	}
	plan := &models.Plan{
		AsofDate:    asof,
		Code:        code,
		EntryPrice:  rec.EntryPrice,
		TargetPrice: rec.TargetPrice,
		StopPrice:   rec.StopPrice,
		Confidence:  rec.Confidence,
		Status:      rec.Status,
		RawPayload:  string(rec.Raw),
	}
	if err := p.plans.Upsert(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// buildIntents derives the queue intents from the plan prices: a BUY armed
// at or below the entry price when one exists, and a SELL armed at or above
// the target price when sell-queue generation is on. Which side may actually
// fire is decided at dispatch time from the watchlist row.
func (p *Planner) buildIntents(plan *models.Plan, stats *PlanStats) error {
	info, err := p.symbols.EnrichSymbol(plan.Code)
	if err != nil {
		return err
	}

	if plan.EntryPrice != nil {
		if err := p.upsertIntent(info, plan, types.SideBuy, types.TriggerAtOrBelow, *plan.EntryPrice); err != nil {
			return err
		}
		stats.IntentsUpserted++
	}
	if p.cfg.GenerateSellQueue && plan.TargetPrice != nil {
		if err := p.upsertIntent(info, plan, types.SideSell, types.TriggerAtOrAbove, *plan.TargetPrice); err != nil {
			return err
		}
		stats.IntentsUpserted++
	}
	return nil
}

func (p *Planner) upsertIntent(info database.SymbolInfo, plan *models.Plan, side types.Side, rule types.TriggerRule, trigger float64) error {
	orderName := fmt.Sprintf("auto %s %s %s", strings.ToLower(string(side)), plan.Code, plan.AsofDate)
	payload, err := orders.BuildLimitOrder(
		plan.Code, side, trigger, p.cfg.DefaultAmount,
		info.ExchangeCode, info.Market, orderName,
		p.cfg.Password, p.cfg.KISNumber,
	)
	if err != nil {
		return err
	}

	intent := &models.QueueIntent{
		AsofDate:     plan.AsofDate,
		Code:         plan.Code,
		Side:         side,
		TriggerPrice: trigger,
		TriggerRule:  rule,
		WebhookURL:   p.cfg.WebhookURL,
		Payload:      payload,
		Status:       types.IntentPending,
	}
	return p.queue.Upsert(intent)
}
