package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    IntentStatus
		to      IntentStatus
		allowed bool
	}{
		{"pending to sending", IntentPending, IntentSending, true},
		{"pending to cancelled", IntentPending, IntentCancelled, true},
		{"pending to expired", IntentPending, IntentExpired, true},
		{"pending to skipped", IntentPending, IntentSkipped, true},
		{"pending straight to sent", IntentPending, IntentSent, false},
		{"sending to sent", IntentSending, IntentSent, true},
		{"sending to error", IntentSending, IntentError, true},
		{"sending back to pending", IntentSending, IntentPending, false},
		{"error has no retry path", IntentError, IntentSending, false},
		{"error to cancelled", IntentError, IntentCancelled, true},
		{"error to expired", IntentError, IntentExpired, true},
		{"skipped to expired", IntentSkipped, IntentExpired, true},
		{"sent is terminal", IntentSent, IntentCancelled, false},
		{"cancelled is terminal", IntentCancelled, IntentPending, false},
		{"expired is terminal", IntentExpired, IntentPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestIntentStatusTerminal(t *testing.T) {
	assert.True(t, IntentSent.Terminal())
	assert.True(t, IntentCancelled.Terminal())
	assert.True(t, IntentExpired.Terminal())
	assert.False(t, IntentPending.Terminal())
	assert.False(t, IntentSending.Terminal())
	assert.False(t, IntentError.Terminal())
	assert.False(t, IntentSkipped.Terminal())
}

func TestTriggerRuleMet(t *testing.T) {
	tests := []struct {
		name    string
		rule    TriggerRule
		price   float64
		trigger float64
		met     bool
	}{
		{"buy fires below trigger", TriggerAtOrBelow, 99.5, 100, true},
		{"buy fires exactly at trigger", TriggerAtOrBelow, 100, 100, true},
		{"buy holds above trigger", TriggerAtOrBelow, 100.5, 100, false},
		{"sell fires above trigger", TriggerAtOrAbove, 101, 100, true},
		{"sell fires exactly at trigger", TriggerAtOrAbove, 100, 100, true},
		{"sell holds below trigger", TriggerAtOrAbove, 99.9, 100, false},
		{"unknown rule never fires", TriggerRule("=="), 100, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.met, tt.rule.Met(tt.price, tt.trigger))
		})
	}
}

func TestAllowsDispatch(t *testing.T) {
	assert.True(t, AllowsDispatch(ListSelected, SideBuy))
	assert.True(t, AllowsDispatch(ListExit, SideSell))
	assert.False(t, AllowsDispatch(ListSelected, SideSell))
	assert.False(t, AllowsDispatch(ListExit, SideBuy))
	assert.False(t, AllowsDispatch(ListType("OTHER"), SideBuy))
}

func TestRet3(t *testing.T) {
	row := MarketRow{Close: 110, ClosePrev3: 100}
	assert.InDelta(t, 0.10, row.Ret3(), 1e-9)

	// Missing history yields zero, not a division blowup.
	row = MarketRow{Close: 110, ClosePrev3: 0}
	assert.Zero(t, row.Ret3())
}
