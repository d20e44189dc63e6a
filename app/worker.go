package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"autotrade-worker/config"
)

// Worker sequences one full cycle: age the queue, reconcile the watchlist,
// cross-cancel, materialize plans and intents, then dispatch. Stages after
// a failed stage still run where safe; reconciliation failure skips the
// cross-cancel so a transient error never cancels live intents.
type Worker struct {
	reconciler *Reconciler
	planner    *Planner
	dispatcher *Dispatcher
	maintainer *Maintainer
	cfg        config.AutotradeConfig
	log        zerolog.Logger
}

// NewWorker wires the cycle stages together.
func NewWorker(reconciler *Reconciler, planner *Planner, dispatcher *Dispatcher, maintainer *Maintainer, cfg config.AutotradeConfig, logger zerolog.Logger) *Worker {
	return &Worker{
		reconciler: reconciler,
		planner:    planner,
		dispatcher: dispatcher,
		maintainer: maintainer,
		cfg:        cfg,
		log:        logger.With().Str("component", "worker").Logger(),
	}
}

// RunCycle executes one cycle. Each cycle carries a fresh ID that threads
// through the dispatch events for correlation.
func (w *Worker) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	log := w.log.With().Str("cycle", cycleID).Logger()
	started := time.Now()

	if _, _, err := w.maintainer.ExpireAndPurge(started); err != nil {
		log.Error().Err(err).Msg("queue aging failed")
	}

	sync, err := w.reconciler.Sync(started)
	if err != nil {
		log.Error().Err(err).Msg("watchlist sync failed")
		sync = nil
	}
	if _, err := w.maintainer.CrossCancel(sync); err != nil {
		log.Error().Err(err).Msg("cross cancel failed")
	}

	if _, err := w.planner.EnsurePlansAndQueue(ctx); err != nil {
		log.Error().Err(err).Msg("plan materialization failed")
	}

	if _, err := w.dispatcher.Dispatch(ctx, cycleID); err != nil {
		log.Error().Err(err).Msg("dispatch failed")
		return err
	}

	log.Debug().Dur("took", time.Since(started)).Msg("cycle complete")
	return nil
}

// Run executes cycles on the poll interval until the context is cancelled.
// The first cycle starts immediately.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	if err := w.RunCycle(ctx); err != nil && ctx.Err() == nil {
		w.log.Error().Err(err).Msg("cycle failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunCycle(ctx); err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("cycle failed")
			}
		}
	}
}
