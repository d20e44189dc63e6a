// Package queue persists order intents and their dispatch events.
//
// The claim is the concurrency primitive of the whole system: a conditional
// UPDATE that only succeeds while the row is still PENDING. Two worker
// instances racing on the same intent resolve by exactly one seeing a
// non-zero row count; the loser walks away. No in-process lock can replace
// this because instances share nothing but the database.
package queue

import (
	"fmt"
	"time"

	models "autotrade-worker/database/models_pkg"
	"autotrade-worker/database/types"
	"autotrade-worker/helpers"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for the intent queue and the
// dispatch event log.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new queue repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts or refreshes an intent keyed on (asof_date, code, side).
// The conflict update only applies while the existing row is still PENDING:
// re-running the builder with the same plan never resurrects a SENT, ERROR
// or CANCELLED row, and never duplicates the natural key.
func (r *Repository) Upsert(intent *models.QueueIntent) error {
	if !intent.Side.Valid() {
		return fmt.Errorf("Upsert: invalid side %q", intent.Side)
	}
	intent.Code = helpers.NormalizeCode(intent.Code)
	if intent.Status == "" {
		intent.Status = types.IntentPending
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asof_date"}, {Name: "code"}, {Name: "side"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trigger_price", "trigger_rule", "webhook_url", "payload_json", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "autotrade_queue", Name: "status"}, Value: string(types.IntentPending)},
		}},
	}).Create(intent).Error
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// DispatchCandidate is one intent eligible for trigger evaluation, joined
// with the list type of its watchlist row.
type DispatchCandidate struct {
	ID           int64              `gorm:"column:id" json:"id"`
	AsofDate     string             `gorm:"column:asof_date" json:"asof_date"`
	Code         string             `gorm:"column:code" json:"code"`
	Side         types.Side         `gorm:"column:side" json:"side"`
	TriggerPrice float64            `gorm:"column:trigger_price" json:"trigger_price"`
	TriggerRule  types.TriggerRule  `gorm:"column:trigger_rule" json:"trigger_rule"`
	WebhookURL   string             `gorm:"column:webhook_url" json:"webhook_url"`
	Payload      string             `gorm:"column:payload_json" json:"payload_json"`
	Status       types.IntentStatus `gorm:"column:status" json:"status"`
	ListType     types.ListType     `gorm:"column:list_type" json:"list_type"`
	Name         string             `gorm:"column:name" json:"name"`
}

// dispatchCandidatesSQL restricts to the row with the maximum asof_date per
// (code, side) so stale PENDING rows from earlier days never fire, then
// requires an enabled watchlist row.
const dispatchCandidatesSQL = `
WITH latest AS (
  SELECT code, side, MAX(asof_date) AS max_asof
  FROM autotrade_queue
  GROUP BY code, side
)
SELECT q.id, q.asof_date, q.code, q.side, q.trigger_price, q.trigger_rule,
       q.webhook_url, q.payload_json, q.status,
       w.list_type, w.name
FROM autotrade_queue q
JOIN latest l
  ON q.code = l.code AND q.side = l.side AND q.asof_date = l.max_asof
JOIN autotrade_watchlist w
  ON q.code = w.code
WHERE q.status = 'PENDING' AND w.enabled = TRUE
ORDER BY q.asof_date DESC, q.code ASC, q.side ASC, q.id ASC
`

// DispatchCandidates lists the intents eligible for trigger evaluation this
// cycle.
func (r *Repository) DispatchCandidates() ([]DispatchCandidate, error) {
	var candidates []DispatchCandidate
	if err := r.db.Raw(dispatchCandidatesSQL).Scan(&candidates).Error; err != nil {
		return nil, fmt.Errorf("DispatchCandidates: %w", err)
	}
	for i := range candidates {
		candidates[i].Code = helpers.NormalizeCode(candidates[i].Code)
	}
	return candidates, nil
}

// Claim atomically moves a PENDING intent to SENDING, incrementing the
// attempt counter and stamping the attempt time. Returns false when another
// worker instance claimed the row first; that is a normal concurrency
// outcome, not an error.
func (r *Repository) Claim(id int64) (bool, error) {
	now := time.Now().UTC()
	result := r.db.Model(&models.QueueIntent{}).
		Where("id = ? AND status = ?", id, types.IntentPending).
		Updates(map[string]interface{}{
			"status":          types.IntentSending,
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"last_attempt_at": now,
			"updated_at":      now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("Claim: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Result is the outcome of one delivery attempt on a claimed intent.
type Result struct {
	Status       types.IntentStatus
	HTTPStatus   *int
	ResponseText string
	ErrorText    string
	CycleID      string
}

// MarkResult records the delivery outcome on a SENDING intent and appends
// the immutable audit event. The transition SENDING -> {SENT, ERROR} is
// validated against the lifecycle graph before anything is written.
func (r *Repository) MarkResult(id int64, res Result) error {
	var intent models.QueueIntent
	if err := r.db.First(&intent, id).Error; err != nil {
		return fmt.Errorf("MarkResult: %w", err)
	}
	if !intent.Status.CanTransitionTo(res.Status) {
		return &types.TransitionError{IntentID: id, From: intent.Status, To: res.Status}
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        res.Status,
		"response_text": truncate(res.ResponseText),
		"last_error":    truncate(res.ErrorText),
		"updated_at":    now,
	}
	if res.Status == types.IntentSent {
		updates["sent_at"] = now
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.QueueIntent{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		event := &models.DispatchEvent{
			Ts:           now,
			CycleID:      res.CycleID,
			AsofDate:     intent.AsofDate,
			Code:         intent.Code,
			Side:         intent.Side,
			Status:       res.Status,
			HTTPStatus:   res.HTTPStatus,
			WebhookURL:   intent.WebhookURL,
			Payload:      intent.Payload,
			ResponseText: truncate(res.ResponseText),
			ErrorText:    truncate(res.ErrorText),
		}
		return tx.Create(event).Error
	})
	if err != nil {
		return fmt.Errorf("MarkResult: %w", err)
	}
	return nil
}

// CancelBuysNotIn cancels every BUY intent in a cancellable status whose
// code is not in keep. An empty keep set cancels all cancellable BUYs.
// Returns the number of rows cancelled.
func (r *Repository) CancelBuysNotIn(keep []string, reason string) (int64, error) {
	query := r.db.Model(&models.QueueIntent{}).
		Where("side = ?", types.SideBuy).
		Where("status IN ?", statusStrings(types.CancellableStatuses()))
	if len(keep) > 0 {
		normalized := make([]string, 0, len(keep))
		for _, code := range keep {
			normalized = append(normalized, helpers.NormalizeCode(code))
		}
		query = query.Where("code NOT IN ?", normalized)
	}

	result := query.Updates(map[string]interface{}{
		"status":     types.IntentCancelled,
		"last_error": reason,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return 0, fmt.Errorf("CancelBuysNotIn: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CancelSells cancels every SELL intent in a cancellable status, used when
// sell-queue generation is switched off globally. Returns the number of
// rows cancelled.
func (r *Repository) CancelSells(reason string) (int64, error) {
	result := r.db.Model(&models.QueueIntent{}).
		Where("side = ?", types.SideSell).
		Where("status IN ?", statusStrings(types.CancellableStatuses())).
		Updates(map[string]interface{}{
			"status":     types.IntentCancelled,
			"last_error": reason,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("CancelSells: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ExpireBefore expires every cancellable intent with asof_date strictly
// before the latest known market date. Keying off the market date rather
// than the wall clock avoids expiring queues early across timezones and
// weekends. Returns the number of rows expired.
func (r *Repository) ExpireBefore(latestMarketDate string) (int64, error) {
	if latestMarketDate == "" {
		return 0, nil
	}
	result := r.db.Model(&models.QueueIntent{}).
		Where("status IN ?", statusStrings(types.CancellableStatuses())).
		Where("asof_date < ?", latestMarketDate).
		Updates(map[string]interface{}{
			"status":     types.IntentExpired,
			"last_error": gorm.Expr("CASE WHEN COALESCE(last_error,'')='' THEN ? ELSE last_error END", types.ExpiredReason),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("ExpireBefore: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeBefore permanently deletes terminal intents with asof_date older
// than the retention cutoff. Events are retained independently for audit.
// Returns the number of rows deleted.
func (r *Repository) PurgeBefore(cutoffDate string) (int64, error) {
	result := r.db.
		Where("status IN ?", statusStrings(types.PurgeableStatuses())).
		Where("asof_date < ?", cutoffDate).
		Delete(&models.QueueIntent{})
	if result.Error != nil {
		return 0, fmt.Errorf("PurgeBefore: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListEvents returns the most recent dispatch events, newest first.
func (r *Repository) ListEvents(limit int) ([]models.DispatchEvent, error) {
	var events []models.DispatchEvent
	query := r.db.Order("ts DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("ListEvents: %w", err)
	}
	return events, nil
}

func truncate(s string) string {
	if len(s) > types.MaxStoredResponseLen {
		return s[:types.MaxStoredResponseLen]
	}
	return s
}

func statusStrings(statuses []types.IntentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
