package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"autotrade-worker/config"
	"autotrade-worker/database/queue"
	"autotrade-worker/database/types"
)

// DispatchQueue is the queue surface the dispatcher drives.
type DispatchQueue interface {
	DispatchCandidates() ([]queue.DispatchCandidate, error)
	Claim(id int64) (bool, error)
	MarkResult(id int64, res queue.Result) error
}

// QuoteFetcher resolves live quotes for a set of codes.
type QuoteFetcher interface {
	Fetch(ctx context.Context, codes []string) map[string]types.Quote
}

// MessageNotifier receives best-effort operational messages.
type MessageNotifier interface {
	Notify(ctx context.Context, message string)
}

// DispatchStats reports one dispatch pass.
type DispatchStats struct {
	Candidates int
	Triggered  int
	Sent       int
	Errored    int
	DryRun     int
	LostClaim  int
	NoQuote    int
	Illegal    int
}

// Dispatcher evaluates triggers against live quotes and delivers armed
// intents to the order relay. Prices are fetched once per code per pass;
// each intent is claimed before delivery so concurrent workers never send
// the same order twice.
type Dispatcher struct {
	queue    DispatchQueue
	prices   QuoteFetcher
	notifier MessageNotifier
	client   *http.Client
	cfg      config.AutotradeConfig
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher. notifier may be nil.
func NewDispatcher(q DispatchQueue, prices QuoteFetcher, notifier MessageNotifier, cfg config.AutotradeConfig, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:    q,
		prices:   prices,
		notifier: notifier,
		client:   &http.Client{Timeout: 15 * time.Second},
		cfg:      cfg,
		log:      logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch runs one trigger evaluation pass under the given cycle ID.
func (d *Dispatcher) Dispatch(ctx context.Context, cycleID string) (*DispatchStats, error) {
	candidates, err := d.queue.DispatchCandidates()
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	stats := &DispatchStats{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return stats, nil
	}

	codes := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if !seen[c.Code] {
			seen[c.Code] = true
			codes = append(codes, c.Code)
		}
	}
	quotes := d.prices.Fetch(ctx, codes)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		d.evaluate(ctx, cycleID, c, quotes, stats)
	}

	d.log.Info().
		Int("candidates", stats.Candidates).
		Int("triggered", stats.Triggered).
		Int("sent", stats.Sent).
		Int("errored", stats.Errored).
		Int("dry_run", stats.DryRun).
		Msg("dispatch pass complete")
	return stats, nil
}

func (d *Dispatcher) evaluate(ctx context.Context, cycleID string, c queue.DispatchCandidate, quotes map[string]types.Quote, stats *DispatchStats) {
	if !types.AllowsDispatch(c.ListType, c.Side) {
		// SELECTED rows only buy, EXIT rows only sell. A mismatch means
		// the operator flipped the list after the intent was queued.
		d.log.Warn().Str("code", c.Code).Str("side", string(c.Side)).
			Str("list_type", string(c.ListType)).Msg("intent side not legal for list type")
		stats.Illegal++
		return
	}

	quote, ok := quotes[c.Code]
	if !ok || quote.Price == nil {
		stats.NoQuote++
		return
	}
	if !c.TriggerRule.Met(*quote.Price, c.TriggerPrice) {
		return
	}
	stats.Triggered++

	if !d.cfg.SendEnabled {
		d.log.Info().Str("code", c.Code).Str("side", string(c.Side)).
			Float64("price", *quote.Price).Float64("trigger", c.TriggerPrice).
			Msg("dry run: trigger met, not sending")
		stats.DryRun++
		return
	}

	claimed, err := d.queue.Claim(c.ID)
	if err != nil {
		d.log.Error().Err(err).Int64("intent", c.ID).Msg("claim failed")
		stats.Errored++
		return
	}
	if !claimed {
		stats.LostClaim++
		return
	}

	result := d.deliver(ctx, c)
	result.CycleID = cycleID
	if err := d.queue.MarkResult(c.ID, result); err != nil {
		d.log.Error().Err(err).Int64("intent", c.ID).Msg("mark result failed")
		stats.Errored++
		return
	}

	if result.Status == types.IntentSent {
		stats.Sent++
		d.notify(ctx, fmt.Sprintf("order sent: %s %s @ %.2f (trigger %s %.2f)",
			c.Side, c.Code, *quote.Price, c.TriggerRule, c.TriggerPrice))
	} else {
		stats.Errored++
		d.notify(ctx, fmt.Sprintf("order FAILED: %s %s: %s", c.Side, c.Code, result.ErrorText))
	}
}

// deliver posts the prebuilt payload to the relay. Any non-2xx answer or
// transport failure becomes ERROR; there is no automatic retry, recovery is
// cancellation or manual intervention.
func (d *Dispatcher) deliver(ctx context.Context, c queue.DispatchCandidate) queue.Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WebhookURL, strings.NewReader(c.Payload))
	if err != nil {
		return queue.Result{Status: types.IntentError, ErrorText: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return queue.Result{Status: types.IntentError, ErrorText: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return queue.Result{Status: types.IntentSent, HTTPStatus: &status, ResponseText: string(body)}
	}
	return queue.Result{
		Status:       types.IntentError,
		HTTPStatus:   &status,
		ResponseText: string(body),
		ErrorText:    fmt.Sprintf("relay returned status %d", status),
	}
}

func (d *Dispatcher) notify(ctx context.Context, message string) {
	if d.notifier != nil {
		d.notifier.Notify(ctx, message)
	}
}
