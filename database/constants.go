package database

import (
	"time"

	"autotrade-worker/database/types"
)

// Re-exported so callers outside the repository subpackages keep one import.
const (
	MaxStoredResponseLen          = types.MaxStoredResponseLen
	ExpiredReason                 = types.ExpiredReason
	CancelReasonMissingSelection  = types.CancelReasonMissingSelection
	CancelReasonSellQueueDisabled = types.CancelReasonSellQueueDisabled
	DefaultPurgeRetentionDays     = types.DefaultPurgeRetentionDays
	DateLayout                    = types.DateLayout
)

// Connection pool sizing for the worker. The cycle is sequential, so the
// pool stays small; headroom covers concurrent worker instances sharing one
// database.
const (
	MaxOpenConns    = 10
	MaxIdleConns    = 5
	ConnMaxLifetime = 5 * time.Minute
	ConnMaxIdleTime = 2 * time.Minute
)
