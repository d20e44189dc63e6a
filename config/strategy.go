package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy types understood by the selection funnel.
const (
	StrategyMeanReversion = "mean_reversion"
	StrategyTrendFollow   = "trend_follow"
)

// Rank modes for ordering funnel survivors.
const (
	RankByScore  = "score"
	RankByAmount = "amount"
)

// StrategyParams are the operator-tuned selection parameters, kept in a
// YAML file next to the deployment so they can change without a rebuild.
type StrategyParams struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Liquidity funnel
	MinAmount     float64 `yaml:"min_amount"`
	LiquidityRank int     `yaml:"liquidity_rank"`

	// Signal thresholds per index group
	BuyNasdaq float64 `yaml:"buy_nasdaq"`
	BuySP500  float64 `yaml:"buy_sp500"`

	// Portfolio shape
	MaxPositions int `yaml:"max_positions"`
	MaxPerSector int `yaml:"max_per_sector"`

	// Ordering and filters
	RankMode        string `yaml:"rank_mode"`
	TrendMA25Rising bool   `yaml:"trend_ma25_rising"`
}

// LoadStrategy reads and validates the strategy parameter file. The file is
// re-read every sync so edits take effect without a restart.
func LoadStrategy(path string) (*StrategyParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadStrategy: %w", err)
	}

	var params StrategyParams
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("LoadStrategy: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("LoadStrategy: %w", err)
	}
	return &params, nil
}

// Validate checks the parameter combination and fills usable defaults.
func (p *StrategyParams) Validate() error {
	switch p.Type {
	case StrategyMeanReversion, StrategyTrendFollow:
	case "":
		return fmt.Errorf("strategy type is required")
	default:
		return fmt.Errorf("unknown strategy type %q", p.Type)
	}

	switch p.RankMode {
	case "":
		p.RankMode = RankByAmount
	case RankByScore, RankByAmount:
	default:
		return fmt.Errorf("unknown rank mode %q", p.RankMode)
	}

	if p.MaxPositions < 1 {
		p.MaxPositions = 1
	}
	if p.MaxPerSector < 0 {
		p.MaxPerSector = 0
	}
	if p.LiquidityRank < 0 {
		p.LiquidityRank = 0
	}
	return nil
}

// Threshold returns the disparity threshold for a universe group. Groups
// containing "NASDAQ" use the NASDAQ threshold; everything else uses the
// S&P 500 one.
func (p *StrategyParams) Threshold(groupName string) float64 {
	if strings.Contains(strings.ToUpper(groupName), "NASDAQ") {
		return p.BuyNasdaq
	}
	return p.BuySP500
}
