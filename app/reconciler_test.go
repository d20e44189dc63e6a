package app

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrade-worker/config"
	models "autotrade-worker/database/models_pkg"
	"autotrade-worker/database/types"
)

type fakeWatchlist struct {
	entries      map[string]*models.WatchlistEntry
	upserts      []*models.WatchlistEntry
	disabledKeep []string
	disabledN    int64
}

func newFakeWatchlist() *fakeWatchlist {
	return &fakeWatchlist{entries: map[string]*models.WatchlistEntry{}}
}

func (f *fakeWatchlist) Get(code string) (*models.WatchlistEntry, error) {
	return f.entries[code], nil
}

func (f *fakeWatchlist) Upsert(entry *models.WatchlistEntry) error {
	f.upserts = append(f.upserts, entry)
	f.entries[entry.Code] = entry
	return nil
}

func (f *fakeWatchlist) DisableSelectedExcept(keep []string) (int64, error) {
	f.disabledKeep = keep
	return f.disabledN, nil
}

type fakeMarketMeta struct {
	date    string
	members map[string]*models.UniverseMember
}

func (f *fakeMarketMeta) LatestMarketDate() (string, error) { return f.date, nil }
func (f *fakeMarketMeta) LookupMember(code string) (*models.UniverseMember, error) {
	return f.members[code], nil
}

type fakeSelector struct {
	candidates []types.SelectionCandidate
	err        error
	calls      int
}

func (f *fakeSelector) Select(params *config.StrategyParams, limit int) ([]types.SelectionCandidate, error) {
	f.calls++
	return f.candidates, f.err
}

func testReconciler(wl *fakeWatchlist, market *fakeMarketMeta, sel *fakeSelector) *Reconciler {
	cfg := config.AutotradeConfig{
		SyncEnabled:  true,
		SyncInterval: 5 * time.Minute,
	}
	r := NewReconciler(wl, market, sel, cfg, zerolog.Nop())
	r.loadStrategy = func(string) (*config.StrategyParams, error) {
		return &config.StrategyParams{Type: config.StrategyMeanReversion, MaxPositions: 5}, nil
	}
	return r
}

func TestReconcilerSyncSelectsAndDisables(t *testing.T) {
	wl := newFakeWatchlist()
	market := &fakeMarketMeta{
		date: "2026-08-24",
		members: map[string]*models.UniverseMember{
			"AAPL": {Code: "AAPL", Name: "Apple", Market: "NASDAQ", ExchangeCode: "NAS"},
		},
	}
	sel := &fakeSelector{candidates: []types.SelectionCandidate{
		{Code: "AAPL", Sector: "Tech"},
		{Code: "MSFT", Sector: "Tech"},
	}}
	wl.disabledN = 3

	r := testReconciler(wl, market, sel)
	result, err := r.Sync(time.Now())
	require.NoError(t, err)

	assert.True(t, result.Ran)
	assert.Equal(t, 2, result.Upserted)
	assert.Equal(t, int64(3), result.Disabled)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, wl.disabledKeep)
	assert.True(t, result.Managed["AAPL"])
	assert.True(t, result.Managed["MSFT"])

	// Universe metadata rides along on the upsert.
	require.NotNil(t, wl.entries["AAPL"])
	assert.Equal(t, "Apple", wl.entries["AAPL"].Name)
	assert.Equal(t, "NAS", wl.entries["AAPL"].ExchangeCode)
	assert.Equal(t, types.ListSelected, wl.entries["AAPL"].ListType)
	assert.True(t, wl.entries["AAPL"].Enabled)
}

func TestReconcilerNeverFlipsExitRows(t *testing.T) {
	wl := newFakeWatchlist()
	wl.entries["AAPL"] = &models.WatchlistEntry{
		Code: "AAPL", ListType: types.ListExit, Enabled: true,
	}
	market := &fakeMarketMeta{date: "2026-08-24"}
	sel := &fakeSelector{candidates: []types.SelectionCandidate{{Code: "AAPL"}}}

	r := testReconciler(wl, market, sel)
	result, err := r.Sync(time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.SkippedExit)
	assert.Empty(t, wl.upserts)
	assert.False(t, result.Managed["AAPL"])
	// The exit row stays exactly as the operator left it.
	assert.Equal(t, types.ListExit, wl.entries["AAPL"].ListType)
}

func TestReconcilerReclaimsDisabledExitRows(t *testing.T) {
	wl := newFakeWatchlist()
	wl.entries["AAPL"] = &models.WatchlistEntry{
		Code: "AAPL", ListType: types.ListExit, Enabled: false,
	}
	market := &fakeMarketMeta{date: "2026-08-24"}
	sel := &fakeSelector{candidates: []types.SelectionCandidate{{Code: "AAPL"}}}

	r := testReconciler(wl, market, sel)
	result, err := r.Sync(time.Now())
	require.NoError(t, err)

	// Only a live EXIT row is an operator override; a disabled one goes
	// back under selection management.
	assert.Zero(t, result.SkippedExit)
	assert.Equal(t, 1, result.Upserted)
	assert.True(t, result.Managed["AAPL"])
	assert.Equal(t, types.ListSelected, wl.entries["AAPL"].ListType)
	assert.True(t, wl.entries["AAPL"].Enabled)
}

func TestReconcilerAbortsOnStrategyError(t *testing.T) {
	wl := newFakeWatchlist()
	market := &fakeMarketMeta{date: "2026-08-24"}
	sel := &fakeSelector{}

	r := testReconciler(wl, market, sel)
	r.loadStrategy = func(string) (*config.StrategyParams, error) {
		return nil, errors.New("bad yaml")
	}

	_, err := r.Sync(time.Now())
	require.Error(t, err)
	assert.Empty(t, wl.upserts)
	assert.Nil(t, wl.disabledKeep)
	assert.Zero(t, sel.calls)
}

func TestReconcilerIntervalSkip(t *testing.T) {
	wl := newFakeWatchlist()
	market := &fakeMarketMeta{date: "2026-08-24"}
	sel := &fakeSelector{}

	r := testReconciler(wl, market, sel)
	now := time.Now()

	result, err := r.Sync(now)
	require.NoError(t, err)
	assert.True(t, result.Ran)

	// Within the interval and no new market date: nothing happens.
	result, err = r.Sync(now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, result.Ran)
	assert.Equal(t, 1, sel.calls)

	// A new market date forces a run even inside the interval.
	market.date = "2026-08-25"
	result, err = r.Sync(now.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.True(t, result.Ran)
	assert.Equal(t, 2, sel.calls)
}

func TestReconcilerSyncDisabled(t *testing.T) {
	wl := newFakeWatchlist()
	r := testReconciler(wl, &fakeMarketMeta{date: "2026-08-24"}, &fakeSelector{})
	r.cfg.SyncEnabled = false

	result, err := r.Sync(time.Now())
	require.NoError(t, err)
	assert.False(t, result.Ran)
	assert.Empty(t, wl.upserts)
}
