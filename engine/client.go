// Package engine is the HTTP client for the recommendation engine that
// produces trading plans. The engine is an external service; this client
// only shapes the request and validates the response envelope.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"autotrade-worker/helpers"
)

const requestTimeout = 30 * time.Second

// Client calls the recommendation engine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewClient creates an engine client for the given base URL.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		log:        logger.With().Str("component", "engine").Logger(),
	}
}

// Recommendation is one engine-produced plan for a symbol.
type Recommendation struct {
	OK          bool
	AsofDate    string
	EntryPrice  *float64
	TargetPrice *float64
	StopPrice   *float64
	Confidence  *float64
	Status      string
	Err         string
	Raw         []byte
}

type recommendRequest struct {
	Code         string `json:"code"`
	Optimize     string `json:"optimize,omitempty"`
	LookbackBars int    `json:"lookback_bars,omitempty"`
}

type recommendResponse struct {
	OK       bool `json:"ok"`
	Snapshot struct {
		Date string `json:"date"`
	} `json:"snapshot"`
	Plan struct {
		EntryPrice  *float64 `json:"entry_price"`
		TargetPrice *float64 `json:"target_price"`
		StopPrice   *float64 `json:"stop_price"`
	} `json:"plan"`
	Confidence *float64 `json:"confidence"`
	Status     string   `json:"status"`
	Error      string   `json:"error"`
}

// Recommend asks the engine for a plan for one symbol. A non-OK engine
// answer comes back as a Recommendation with OK=false and Err set, not as
// a Go error; Go errors are reserved for transport failures.
func (c *Client) Recommend(ctx context.Context, code, optimize string, lookbackBars int) (*Recommendation, error) {
	payload, err := json.Marshal(recommendRequest{
		Code:         helpers.NormalizeCode(code),
		Optimize:     optimize,
		LookbackBars: lookbackBars,
	})
	if err != nil {
		return nil, fmt.Errorf("Recommend: %w", err)
	}

	endpoint := c.baseURL + "/recommend"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("Recommend: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Recommend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("Recommend: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Recommend: engine returned status %d", resp.StatusCode)
	}

	var parsed recommendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("Recommend: decode: %w", err)
	}

	rec := &Recommendation{
		OK:          parsed.OK,
		AsofDate:    parsed.Snapshot.Date,
		EntryPrice:  parsed.Plan.EntryPrice,
		TargetPrice: parsed.Plan.TargetPrice,
		StopPrice:   parsed.Plan.StopPrice,
		Confidence:  parsed.Confidence,
		Status:      parsed.Status,
		Err:         parsed.Error,
		Raw:         body,
	}
	if !rec.OK && rec.Err == "" {
		rec.Err = "engine returned ok=false"
	}
	return rec, nil
}
