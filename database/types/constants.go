package types

// Storage limits and lifecycle reason strings shared by the repositories.
const (
	// MaxStoredResponseLen caps webhook response and error text persisted on
	// intents and events. Broker error pages can be arbitrarily large.
	MaxStoredResponseLen = 8000

	// ExpiredReason is written to last_error when an intent is expired and
	// carries no earlier error text.
	ExpiredReason = "expired_past_asof"

	// CancelReasonMissingSelection marks BUY intents cancelled because their
	// code fell out of the managed selection.
	CancelReasonMissingSelection = "cancelled_missing_selection"

	// CancelReasonSellQueueDisabled marks SELL intents cancelled because
	// sell-queue generation was switched off.
	CancelReasonSellQueueDisabled = "sell_queue_disabled"

	// DefaultPurgeRetentionDays keeps terminal intents around for a week of
	// audit before the retention purge deletes them.
	DefaultPurgeRetentionDays = 7

	// DateLayout is the wire/date-column format used across the market and
	// autotrade tables.
	DateLayout = "2006-01-02"
)
