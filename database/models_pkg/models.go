// Package models defines the persisted data models for the autotrade worker.
//
// The worker owns four tables:
//   - autotrade_watchlist: tracked symbols (selection sync + operator edits)
//   - autotrade_plans: one immutable trading plan per (asof_date, code)
//   - autotrade_queue: conditional order intents with a claim-based lifecycle
//   - autotrade_events: append-only audit log of dispatch attempts
//
// It also reads (never writes) the market tables maintained by the external
// data collectors: daily_price, universe_members, sector_map, position_state.
//
// Models live in their own package so database subpackages can share them
// without circular imports.
package models

import (
	"time"

	"autotrade-worker/database/types"
)

// WatchlistEntry is one tracked symbol. Rows are created and updated by the
// selection reconciler or by operator action, never by the dispatcher.
//
// A row with ListType=EXIT and Enabled=true was set by an operator and must
// never be flipped back to SELECTED by automated reconciliation.
type WatchlistEntry struct {
	Code         string         `gorm:"primaryKey;size:16" json:"code"`
	Name         string         `gorm:"size:120" json:"name"`
	Market       string         `gorm:"size:20" json:"market"`
	ExchangeCode string         `gorm:"column:excd;size:8" json:"excd"`
	ListType     types.ListType `gorm:"size:10;not null;default:SELECTED" json:"list_type"`
	Enabled      bool           `gorm:"not null;default:true" json:"enabled"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for WatchlistEntry
func (WatchlistEntry) TableName() string {
	return "autotrade_watchlist"
}

// Plan is the trading plan the recommendation engine produced for one symbol
// on one market date. Created lazily on first need per day; reused verbatim
// afterwards (the idempotency contract), replaced only on explicit recompute.
type Plan struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AsofDate    string    `gorm:"size:10;not null;uniqueIndex:idx_plan_asof_code,priority:1" json:"asof_date"`
	Code        string    `gorm:"size:16;not null;uniqueIndex:idx_plan_asof_code,priority:2;index" json:"code"`
	EntryPrice  *float64  `gorm:"type:decimal(15,4)" json:"entry_price,omitempty"`
	TargetPrice *float64  `gorm:"type:decimal(15,4)" json:"target_price,omitempty"`
	StopPrice   *float64  `gorm:"type:decimal(15,4)" json:"stop_price,omitempty"`
	Confidence  *float64  `gorm:"type:decimal(6,4)" json:"confidence,omitempty"`
	Status      string    `gorm:"size:40" json:"status"` // opaque engine label
	RawPayload  string    `gorm:"column:plan_json;type:text" json:"plan_json"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Plan
func (Plan) TableName() string {
	return "autotrade_plans"
}

// QueueIntent is a queued conditional order. The natural key is
// (asof_date, code, side); only the row with the latest asof_date per
// (code, side) is eligible for dispatch, older rows wait for expiry.
type QueueIntent struct {
	ID           int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	AsofDate     string             `gorm:"size:10;not null;uniqueIndex:idx_queue_asof_code_side,priority:1" json:"asof_date"`
	Code         string             `gorm:"size:16;not null;uniqueIndex:idx_queue_asof_code_side,priority:2;index" json:"code"`
	Side         types.Side         `gorm:"size:4;not null;uniqueIndex:idx_queue_asof_code_side,priority:3" json:"side"`
	TriggerPrice float64            `gorm:"type:decimal(15,4);not null" json:"trigger_price"`
	TriggerRule  types.TriggerRule  `gorm:"size:2;not null" json:"trigger_rule"`
	WebhookURL   string             `gorm:"type:text" json:"webhook_url"`
	Payload      string             `gorm:"column:payload_json;type:text" json:"payload_json"` // opaque order body
	Status       types.IntentStatus `gorm:"size:10;not null;default:PENDING;index" json:"status"`
	AttemptCount int                `gorm:"not null;default:0" json:"attempt_count"`
	LastAttempt  *time.Time         `gorm:"column:last_attempt_at" json:"last_attempt_at,omitempty"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
	LastError    string             `gorm:"type:text" json:"last_error,omitempty"`
	ResponseText string             `gorm:"type:text" json:"response_text,omitempty"`
	CreatedAt    time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for QueueIntent
func (QueueIntent) TableName() string {
	return "autotrade_queue"
}

// DispatchEvent is one immutable audit record per dispatch attempt outcome.
// Events are never mutated; the retention purge leaves them in place.
type DispatchEvent struct {
	ID           int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	Ts           time.Time          `gorm:"index;not null" json:"ts"`
	CycleID      string             `gorm:"size:36;index" json:"cycle_id"`
	AsofDate     string             `gorm:"size:10;not null" json:"asof_date"`
	Code         string             `gorm:"size:16;index;not null" json:"code"`
	Side         types.Side         `gorm:"size:4;not null" json:"side"`
	Status       types.IntentStatus `gorm:"size:10;not null" json:"status"`
	HTTPStatus   *int               `json:"http_status,omitempty"`
	WebhookURL   string             `gorm:"type:text" json:"webhook_url"`
	Payload      string             `gorm:"column:payload_json;type:text" json:"payload_json"`
	ResponseText string             `gorm:"type:text" json:"response_text,omitempty"`
	ErrorText    string             `gorm:"type:text" json:"error_text,omitempty"`
}

// TableName specifies the table name for DispatchEvent
func (DispatchEvent) TableName() string {
	return "autotrade_events"
}

// DailyPrice is one daily market bar. Owned by the data collectors; the
// worker only reads it.
type DailyPrice struct {
	Code      string   `gorm:"primaryKey;size:16" json:"code"`
	Date      string   `gorm:"primaryKey;size:10" json:"date"`
	Close     *float64 `gorm:"type:decimal(15,4)" json:"close,omitempty"`
	Amount    *float64 `gorm:"type:decimal(20,2)" json:"amount,omitempty"`
	MA25      *float64 `gorm:"column:ma25;type:decimal(15,4)" json:"ma25,omitempty"`
	Disparity *float64 `gorm:"type:decimal(10,4)" json:"disparity,omitempty"`
}

// TableName specifies the table name for DailyPrice
func (DailyPrice) TableName() string {
	return "daily_price"
}

// UniverseMember is one symbol in the tradable universe with its listing
// metadata. Read-only here.
type UniverseMember struct {
	Code         string `gorm:"primaryKey;size:16" json:"code"`
	Name         string `gorm:"size:120" json:"name"`
	Market       string `gorm:"size:20" json:"market"`
	GroupName    string `gorm:"size:40" json:"group_name"`
	ExchangeCode string `gorm:"column:excd;size:8" json:"excd"`
}

// TableName specifies the table name for UniverseMember
func (UniverseMember) TableName() string {
	return "universe_members"
}

// SectorMap assigns a sector/industry classification to a symbol. Read-only
// here; sector caps fall back to the universe group when unclassified.
type SectorMap struct {
	Code         string `gorm:"primaryKey;size:16" json:"code"`
	SectorName   string `gorm:"size:80" json:"sector_name"`
	IndustryName string `gorm:"size:80" json:"industry_name"`
}

// TableName specifies the table name for SectorMap
func (SectorMap) TableName() string {
	return "sector_map"
}

// PositionState is one currently held position, maintained by the broker
// sync jobs. The selector seeds sector counters from it.
type PositionState struct {
	Code     string   `gorm:"primaryKey;size:16" json:"code"`
	Quantity *float64 `gorm:"type:decimal(20,4)" json:"quantity,omitempty"`
}

// TableName specifies the table name for PositionState
func (PositionState) TableName() string {
	return "position_state"
}
