// Package types holds shared enums and plain data structs used across the
// database repositories and the worker. Status lifecycles are closed enums
// with explicit transition checks so every mutation site can validate the
// move it is about to make.
package types

import "time"

// ListType classifies a watchlist row.
type ListType string

const (
	ListSelected ListType = "SELECTED" // managed by selection sync
	ListExit     ListType = "EXIT"     // operator-set, sell side only
)

// Valid reports whether lt is a known list type.
func (lt ListType) Valid() bool {
	return lt == ListSelected || lt == ListExit
}

// Side is the order direction of a queued intent.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// AllowsDispatch reports whether an intent of the given side may be sent for
// a watchlist row of the given list type. SELECTED rows only buy, EXIT rows
// only sell.
func AllowsDispatch(lt ListType, s Side) bool {
	switch s {
	case SideBuy:
		return lt == ListSelected
	case SideSell:
		return lt == ListExit
	}
	return false
}

// TriggerRule is the price comparison that arms an intent.
type TriggerRule string

const (
	TriggerAtOrBelow TriggerRule = "<=" // buy entries
	TriggerAtOrAbove TriggerRule = ">=" // sell targets
)

// Met reports whether the live price satisfies the rule against the trigger
// price. Unknown rules never fire.
func (r TriggerRule) Met(price, triggerPrice float64) bool {
	switch r {
	case TriggerAtOrBelow:
		return price <= triggerPrice
	case TriggerAtOrAbove:
		return price >= triggerPrice
	}
	return false
}

// IntentStatus is the lifecycle state of a queued intent.
type IntentStatus string

const (
	IntentPending   IntentStatus = "PENDING"
	IntentSending   IntentStatus = "SENDING"
	IntentSent      IntentStatus = "SENT"
	IntentError     IntentStatus = "ERROR"
	IntentSkipped   IntentStatus = "SKIPPED"
	IntentCancelled IntentStatus = "CANCELLED"
	IntentExpired   IntentStatus = "EXPIRED"
)

// Valid reports whether s is a known intent status.
func (s IntentStatus) Valid() bool {
	switch s {
	case IntentPending, IntentSending, IntentSent, IntentError,
		IntentSkipped, IntentCancelled, IntentExpired:
		return true
	}
	return false
}

// Terminal reports whether no further automated transition exists from s.
func (s IntentStatus) Terminal() bool {
	switch s {
	case IntentSent, IntentCancelled, IntentExpired:
		return true
	}
	return false
}

// intentTransitions is the closed transition graph. SENDING is the claimed
// state; ERROR rows have no automatic retry path (recovery is cancellation
// or manual intervention).
var intentTransitions = map[IntentStatus][]IntentStatus{
	IntentPending: {IntentSending, IntentSkipped, IntentCancelled, IntentExpired},
	IntentSending: {IntentSent, IntentError},
	IntentError:   {IntentCancelled, IntentExpired},
	IntentSkipped: {IntentCancelled, IntentExpired},
}

// CanTransitionTo reports whether s -> next is a legal lifecycle move.
func (s IntentStatus) CanTransitionTo(next IntentStatus) bool {
	for _, allowed := range intentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CancellableStatuses are the states cross-cancel and expiry act on.
func CancellableStatuses() []IntentStatus {
	return []IntentStatus{IntentPending, IntentError, IntentSkipped}
}

// PurgeableStatuses are the terminal states the retention purge deletes.
func PurgeableStatuses() []IntentStatus {
	return []IntentStatus{IntentExpired, IntentCancelled}
}

// MarketRow is one latest-per-symbol market snapshot consumed by the
// selection funnel. ClosePrev3 is the close three bars back (zero when
// unavailable).
type MarketRow struct {
	Code       string  `gorm:"column:code" json:"code"`
	Market     string  `gorm:"column:market" json:"market"`
	GroupName  string  `gorm:"column:group_name" json:"group_name"`
	Sector     string  `gorm:"column:sector" json:"sector"`
	Amount     float64 `gorm:"column:amount" json:"amount"`
	Disparity  float64 `gorm:"column:disparity" json:"disparity"`
	MA25       float64 `gorm:"column:ma25" json:"ma25"`
	MA25Prev   float64 `gorm:"column:ma25_prev" json:"ma25_prev"`
	Close      float64 `gorm:"column:close" json:"close"`
	ClosePrev3 float64 `gorm:"column:close_prev3" json:"close_prev3"`
}

// Ret3 is the 3-bar return, zero when the older close is missing.
func (r MarketRow) Ret3() float64 {
	if r.ClosePrev3 <= 0 {
		return 0
	}
	return r.Close/r.ClosePrev3 - 1.0
}

// SelectionCandidate is an ephemeral funnel survivor. Recomputed every sync,
// never persisted.
type SelectionCandidate struct {
	Code   string  `json:"code"`
	Sector string  `json:"sector"`
	Amount float64 `json:"amount"`
	Score  float64 `json:"score"`
}

// Quote is a live price observation from one of the quote sources.
type Quote struct {
	Code   string    `json:"code"`
	Price  *float64  `json:"price"`
	Asof   time.Time `json:"asof"`
	Source string    `json:"source"`
}
