package app

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"autotrade-worker/config"
	"autotrade-worker/database/types"
)

// MarketReader is the market data the selection funnel needs.
type MarketReader interface {
	LatestRows() ([]types.MarketRow, error)
	HeldSectorCounts() (map[string]int, error)
}

// Selector runs the deterministic selection funnel: liquidity floor and
// rank cut, per-group signal gate, optional trend filter, scoring, then a
// sector-capped greedy take seeded from currently held positions.
type Selector struct {
	market MarketReader
	log    zerolog.Logger
}

// NewSelector creates a selector over the given market reader.
func NewSelector(market MarketReader, logger zerolog.Logger) *Selector {
	return &Selector{
		market: market,
		log:    logger.With().Str("component", "selector").Logger(),
	}
}

// Select returns at most limit candidates in final rank order. limit <= 0
// falls back to the strategy's max positions; the effective pick count is
// never below one and never above max positions.
func (s *Selector) Select(params *config.StrategyParams, limit int) ([]types.SelectionCandidate, error) {
	rows, err := s.market.LatestRows()
	if err != nil {
		return nil, err
	}

	held, err := s.market.HeldSectorCounts()
	if err != nil {
		return nil, err
	}

	survivors := s.funnel(params, rows)
	s.rank(params, survivors)

	maxPick := limit
	if maxPick <= 0 {
		maxPick = params.MaxPositions
	}
	if maxPick > params.MaxPositions {
		maxPick = params.MaxPositions
	}
	if maxPick < 1 {
		maxPick = 1
	}

	picked := s.takeWithSectorCap(params, survivors, held, maxPick)
	s.log.Debug().
		Int("universe", len(rows)).
		Int("survivors", len(survivors)).
		Int("picked", len(picked)).
		Msg("selection funnel complete")
	return picked, nil
}

// funnel applies the liquidity floor, the liquidity rank cut and the signal
// gates. Rows arrive ordered by amount descending, so the rank cut is a
// plain break.
func (s *Selector) funnel(params *config.StrategyParams, rows []types.MarketRow) []types.SelectionCandidate {
	var survivors []types.SelectionCandidate
	rank := 0

	for _, row := range rows {
		if row.Amount < params.MinAmount {
			continue
		}
		rank++
		if params.LiquidityRank > 0 && rank > params.LiquidityRank {
			break
		}

		if !s.signalGate(params, row) {
			continue
		}
		if params.TrendMA25Rising && row.MA25 <= row.MA25Prev {
			continue
		}

		survivors = append(survivors, types.SelectionCandidate{
			Code:   row.Code,
			Sector: row.Sector,
			Amount: row.Amount,
			Score:  score(params, row),
		})
	}
	return survivors
}

// signalGate applies the per-group disparity threshold. Mean reversion buys
// dips (disparity at or below the threshold), trend following buys strength
// (disparity at or above it, with a non-negative 3-bar return).
func (s *Selector) signalGate(params *config.StrategyParams, row types.MarketRow) bool {
	threshold := params.Threshold(row.GroupName)
	switch params.Type {
	case config.StrategyMeanReversion:
		return row.Disparity <= threshold
	case config.StrategyTrendFollow:
		return row.Disparity >= threshold && row.Ret3() >= 0
	}
	return false
}

// score combines the signal strength with a small liquidity tiebreaker. The
// sign flips between strategies: trend following rewards positive disparity
// and momentum, mean reversion rewards the opposite.
func score(params *config.StrategyParams, row types.MarketRow) float64 {
	sign := 1.0
	if params.Type == config.StrategyMeanReversion {
		sign = -1.0
	}
	amount := row.Amount
	if amount < 0 {
		amount = 0
	}
	return sign*row.Disparity + 0.8*sign*row.Ret3() + 0.05*math.Log1p(amount)
}

// rank orders survivors by the configured mode. The sort is stable so equal
// keys preserve the incoming amount order, keeping selection deterministic.
func (s *Selector) rank(params *config.StrategyParams, survivors []types.SelectionCandidate) {
	if params.RankMode == config.RankByAmount {
		sort.SliceStable(survivors, func(i, j int) bool {
			return survivors[i].Amount > survivors[j].Amount
		})
		return
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Score > survivors[j].Score
	})
}

// takeWithSectorCap walks the ranked survivors and takes up to maxPick,
// skipping any candidate whose sector is already at the cap. Counters are
// seeded from held positions so held + new never exceeds the cap together.
func (s *Selector) takeWithSectorCap(params *config.StrategyParams, survivors []types.SelectionCandidate, held map[string]int, maxPick int) []types.SelectionCandidate {
	counts := make(map[string]int, len(held))
	for sector, n := range held {
		counts[sector] = n
	}

	picked := make([]types.SelectionCandidate, 0, maxPick)
	for _, candidate := range survivors {
		if len(picked) >= maxPick {
			break
		}
		if params.MaxPerSector > 0 && counts[candidate.Sector] >= params.MaxPerSector {
			continue
		}
		picked = append(picked, candidate)
		counts[candidate.Sector]++
	}
	return picked
}
