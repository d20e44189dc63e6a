// Package pricefeed fetches live quotes for trigger evaluation.
//
// US tickers go to stooq first and fall back to the Yahoo chart endpoint;
// numeric (KR) codes go to the broker quote endpoint in batches. A missing
// quote is represented by a nil price, never a zero, so the dispatcher can
// tell "no data" apart from a real price.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"autotrade-worker/cache"
	"autotrade-worker/database/types"
	"autotrade-worker/helpers"
)

const (
	defaultStooqURL = "https://stooq.com/q/l/"
	defaultYahooURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

	connectTimeout = 4 * time.Second
	requestTimeout = 8 * time.Second

	// Broker quote endpoint batch limit.
	brokerBatchSize = 30
)

// Client fetches quotes from the external price sources.
type Client struct {
	httpClient *http.Client
	cache      *cache.QuoteCache
	limiter    *rate.Limiter
	log        zerolog.Logger

	stooqURL  string
	yahooURL  string
	brokerURL string
}

// NewClient creates a price feed client. quoteCache may be nil; brokerURL
// may be empty when no KR symbols are traded.
func NewClient(quoteCache *cache.QuoteCache, brokerURL string, logger zerolog.Logger) *Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		cache:     quoteCache,
		limiter:   rate.NewLimiter(rate.Limit(5), 10),
		log:       logger.With().Str("component", "pricefeed").Logger(),
		stooqURL:  defaultStooqURL,
		yahooURL:  defaultYahooURL,
		brokerURL: brokerURL,
	}
}

// Fetch resolves quotes for the given codes, one source hit per code at
// most. Codes with no obtainable price map to a Quote with a nil Price.
func (c *Client) Fetch(ctx context.Context, codes []string) map[string]types.Quote {
	quotes := make(map[string]types.Quote, len(codes))
	var numeric []string

	for _, raw := range codes {
		code := helpers.NormalizeCode(raw)
		if code == "" {
			continue
		}
		if _, done := quotes[code]; done {
			continue
		}

		if c.cache != nil {
			if cached, ok := c.cache.Get(ctx, code); ok {
				quotes[code] = *cached
				continue
			}
		}

		if helpers.IsNumericCode(code) {
			numeric = append(numeric, code)
			continue
		}

		quotes[code] = c.fetchUS(ctx, code)
	}

	for _, quote := range c.fetchBroker(ctx, numeric) {
		quotes[quote.Code] = quote
	}

	if c.cache != nil {
		for _, quote := range quotes {
			if quote.Price != nil {
				c.cache.Put(ctx, quote)
			}
		}
	}
	return quotes
}

// fetchUS tries stooq, then the Yahoo chart endpoint.
func (c *Client) fetchUS(ctx context.Context, code string) types.Quote {
	if price, err := c.fetchStooq(ctx, code); err == nil && price != nil {
		return types.Quote{Code: code, Price: price, Asof: time.Now().UTC(), Source: "stooq"}
	} else if err != nil {
		c.log.Debug().Err(err).Str("code", code).Msg("stooq fetch failed")
	}

	price, err := c.fetchYahoo(ctx, code)
	if err != nil {
		c.log.Warn().Err(err).Str("code", code).Msg("no quote source available")
		return types.Quote{Code: code, Asof: time.Now().UTC()}
	}
	return types.Quote{Code: code, Price: price, Asof: time.Now().UTC(), Source: "yahoo"}
}

// fetchStooq parses the stooq one-line CSV snapshot. The close sits in the
// seventh column; "N/D" marks a symbol stooq has no data for.
func (c *Client) fetchStooq(ctx context.Context, code string) (*float64, error) {
	endpoint := fmt.Sprintf("%s?s=%s.us&i=1", c.stooqURL, strings.ToLower(code))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("fetchStooq: short response for %s", code)
	}
	parts := strings.Split(lines[1], ",")
	if len(parts) < 7 {
		return nil, fmt.Errorf("fetchStooq: malformed row for %s", code)
	}
	raw := strings.TrimSpace(parts[6])
	if raw == "" || strings.EqualFold(raw, "N/D") {
		return nil, nil
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("fetchStooq: parse close for %s: %w", code, err)
	}
	return &price, nil
}

// yahooChartResponse is the subset of the Yahoo chart payload we read.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// fetchYahoo takes the last non-nil intraday close, falling back to the
// meta regular market price.
func (c *Client) fetchYahoo(ctx context.Context, code string) (*float64, error) {
	endpoint := fmt.Sprintf("%s%s?interval=1m&range=1d", c.yahooURL, url.PathEscape(code))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var parsed yahooChartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("fetchYahoo: decode for %s: %w", code, err)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("fetchYahoo: empty result for %s", code)
	}
	result := parsed.Chart.Result[0]

	for _, quote := range result.Indicators.Quote {
		for i := len(quote.Close) - 1; i >= 0; i-- {
			if quote.Close[i] != nil {
				return quote.Close[i], nil
			}
		}
	}
	if result.Meta.RegularMarketPrice != nil {
		return result.Meta.RegularMarketPrice, nil
	}
	return nil, nil
}

// brokerQuoteResponse is the broker batch quote payload. Field names vary
// between broker API versions, so both spellings are tried per field.
type brokerQuoteResponse struct {
	Output []map[string]string `json:"output"`
}

// fetchBroker resolves numeric codes through the broker quote endpoint in
// batches. Codes absent from the response map to a nil-price quote.
func (c *Client) fetchBroker(ctx context.Context, codes []string) []types.Quote {
	quotes := make([]types.Quote, 0, len(codes))
	if len(codes) == 0 {
		return quotes
	}
	if c.brokerURL == "" {
		c.log.Warn().Int("codes", len(codes)).Msg("numeric codes requested but no broker quote URL configured")
		for _, code := range codes {
			quotes = append(quotes, types.Quote{Code: code, Asof: time.Now().UTC()})
		}
		return quotes
	}

	for start := 0; start < len(codes); start += brokerBatchSize {
		end := start + brokerBatchSize
		if end > len(codes) {
			end = len(codes)
		}
		batch := codes[start:end]

		padded := make([]string, 0, len(batch))
		for _, code := range batch {
			padded = append(padded, helpers.ZeroPad6(code))
		}
		endpoint := fmt.Sprintf("%s?codes=%s", c.brokerURL, url.QueryEscape(strings.Join(padded, ",")))

		found := make(map[string]*float64, len(batch))
		body, err := c.get(ctx, endpoint)
		if err != nil {
			c.log.Warn().Err(err).Int("batch", len(batch)).Msg("broker quote fetch failed")
		} else {
			var parsed brokerQuoteResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				c.log.Warn().Err(err).Msg("broker quote decode failed")
			} else {
				for _, item := range parsed.Output {
					code := firstNonEmpty(item, "iscd", "stck_shrn_iscd", "code")
					raw := firstNonEmpty(item, "prpr", "stck_prpr", "price")
					if code == "" || raw == "" {
						continue
					}
					if price, err := strconv.ParseFloat(raw, 64); err == nil {
						found[helpers.ZeroPad6(code)] = &price
					}
				}
			}
		}

		now := time.Now().UTC()
		for _, code := range batch {
			quote := types.Quote{Code: code, Asof: now}
			if price := found[helpers.ZeroPad6(code)]; price != nil {
				quote.Price = price
				quote.Source = "broker"
			}
			quotes = append(quotes, quote)
		}
	}
	return quotes
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "autotrade-worker/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(m[key]); v != "" {
			return v
		}
	}
	return ""
}
