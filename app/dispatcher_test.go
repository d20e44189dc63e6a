package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrade-worker/config"
	"autotrade-worker/database/queue"
	"autotrade-worker/database/types"
)

type fakeQueue struct {
	mu         sync.Mutex
	candidates []queue.DispatchCandidate
	statuses   map[int64]types.IntentStatus
	claims     int
	results    []queue.Result
}

func newFakeQueue(candidates ...queue.DispatchCandidate) *fakeQueue {
	statuses := make(map[int64]types.IntentStatus, len(candidates))
	for _, c := range candidates {
		statuses[c.ID] = types.IntentPending
	}
	return &fakeQueue{candidates: candidates, statuses: statuses}
}

func (f *fakeQueue) DispatchCandidates() ([]queue.DispatchCandidate, error) {
	return f.candidates, nil
}

// Claim mirrors the conditional UPDATE: only a PENDING row can be claimed.
func (f *fakeQueue) Claim(id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	if f.statuses[id] != types.IntentPending {
		return false, nil
	}
	f.statuses[id] = types.IntentSending
	return true, nil
}

func (f *fakeQueue) MarkResult(id int64, res queue.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = res.Status
	f.results = append(f.results, res)
	return nil
}

type fakeQuotes struct {
	prices map[string]float64
}

func (f *fakeQuotes) Fetch(ctx context.Context, codes []string) map[string]types.Quote {
	quotes := make(map[string]types.Quote, len(codes))
	for _, code := range codes {
		quote := types.Quote{Code: code, Asof: time.Now()}
		if price, ok := f.prices[code]; ok {
			p := price
			quote.Price = &p
			quote.Source = "test"
		}
		quotes[code] = quote
	}
	return quotes
}

func buyCandidate(id int64, code string, trigger float64, url string) queue.DispatchCandidate {
	return queue.DispatchCandidate{
		ID:           id,
		AsofDate:     "2026-08-24",
		Code:         code,
		Side:         types.SideBuy,
		TriggerPrice: trigger,
		TriggerRule:  types.TriggerAtOrBelow,
		WebhookURL:   url,
		Payload:      `{"type":"limit"}`,
		Status:       types.IntentPending,
		ListType:     types.ListSelected,
	}
}

func testDispatcher(q DispatchQueue, quotes QuoteFetcher, send bool) *Dispatcher {
	cfg := config.AutotradeConfig{SendEnabled: send}
	return NewDispatcher(q, quotes, nil, cfg, zerolog.Nop())
}

func TestDispatcherTriggerBoundaries(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	tests := []struct {
		name  string
		price float64
		fires bool
	}{
		{"below trigger fires", 99.5, true},
		{"at trigger fires", 100, true},
		{"above trigger holds", 100.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQueue(buyCandidate(1, "AAPL", 100, relay.URL))
			quotes := &fakeQuotes{prices: map[string]float64{"AAPL": tt.price}}

			stats, err := testDispatcher(q, quotes, true).Dispatch(context.Background(), "cycle-1")
			require.NoError(t, err)

			if tt.fires {
				assert.Equal(t, 1, stats.Triggered)
				assert.Equal(t, 1, stats.Sent)
				require.Len(t, q.results, 1)
				assert.Equal(t, types.IntentSent, q.results[0].Status)
				assert.Equal(t, "cycle-1", q.results[0].CycleID)
			} else {
				assert.Zero(t, stats.Triggered)
				assert.Zero(t, q.claims)
			}
		})
	}
}

func TestDispatcherLegalityGate(t *testing.T) {
	// A SELL intent under a SELECTED row must never dispatch.
	c := buyCandidate(1, "AAPL", 100, "http://unused")
	c.Side = types.SideSell
	c.TriggerRule = types.TriggerAtOrAbove

	q := newFakeQueue(c)
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 500}}

	stats, err := testDispatcher(q, quotes, true).Dispatch(context.Background(), "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Illegal)
	assert.Zero(t, q.claims)
	assert.Empty(t, q.results)
}

func TestDispatcherDryRunNeverClaims(t *testing.T) {
	q := newFakeQueue(buyCandidate(1, "AAPL", 100, "http://unused"))
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 95}}

	stats, err := testDispatcher(q, quotes, false).Dispatch(context.Background(), "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Triggered)
	assert.Equal(t, 1, stats.DryRun)
	assert.Zero(t, q.claims)
	assert.Empty(t, q.results)
}

func TestDispatcherMissingQuoteSkips(t *testing.T) {
	q := newFakeQueue(buyCandidate(1, "AAPL", 100, "http://unused"))
	quotes := &fakeQuotes{prices: map[string]float64{}}

	stats, err := testDispatcher(q, quotes, true).Dispatch(context.Background(), "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NoQuote)
	assert.Zero(t, stats.Triggered)
}

func TestDispatcherRelayErrorMarksError(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rejected", http.StatusBadGateway)
	}))
	defer relay.Close()

	q := newFakeQueue(buyCandidate(1, "AAPL", 100, relay.URL))
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 95}}

	stats, err := testDispatcher(q, quotes, true).Dispatch(context.Background(), "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errored)

	require.Len(t, q.results, 1)
	result := q.results[0]
	assert.Equal(t, types.IntentError, result.Status)
	require.NotNil(t, result.HTTPStatus)
	assert.Equal(t, http.StatusBadGateway, *result.HTTPStatus)
	assert.Contains(t, result.ErrorText, "502")
}

func TestDispatcherLostClaimSkipsDelivery(t *testing.T) {
	var hits int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	q := newFakeQueue(buyCandidate(1, "AAPL", 100, relay.URL))
	// Another worker already claimed the intent.
	q.statuses[1] = types.IntentSending
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 95}}

	stats, err := testDispatcher(q, quotes, true).Dispatch(context.Background(), "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LostClaim)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestDispatcherConcurrentWorkersSendOnce(t *testing.T) {
	var hits int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	q := newFakeQueue(buyCandidate(1, "AAPL", 100, relay.URL))
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 95}}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := testDispatcher(q, quotes, true).Dispatch(context.Background(), "cycle-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Both workers evaluated the trigger, exactly one won the claim.
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	require.Len(t, q.results, 1)
	assert.Equal(t, types.IntentSent, q.results[0].Status)
}
