// Package orders builds the webhook order payloads. The receiving relay is
// field-sensitive: every value is a string, unused numeric fields carry the
// literal "NaN", and prices are truncated (not rounded) to one decimal.
package orders

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"autotrade-worker/database/types"
	"autotrade-worker/helpers"
)

// Exchange labels understood by the order relay.
const (
	ExchangeKRX    = "KRX"
	ExchangeNASDAQ = "NASDAQ"
	ExchangeNYSE   = "NYSE"
)

// InferExchange maps a symbol's exchange code and market hints to a relay
// exchange label. Numeric codes are KRX listings; unknown US venues default
// to NASDAQ.
func InferExchange(code, exchangeCode, market string) string {
	if helpers.IsNumericCode(code) {
		return ExchangeKRX
	}

	hint := strings.ToUpper(strings.TrimSpace(exchangeCode))
	if hint == "" {
		hint = strings.ToUpper(strings.TrimSpace(market))
	}
	switch {
	case strings.Contains(hint, "NAS"):
		return ExchangeNASDAQ
	case strings.Contains(hint, "NYS"):
		return ExchangeNYSE
	case strings.Contains(hint, "AMS"), strings.Contains(hint, "AMEX"):
		return ExchangeNYSE
	}
	return ExchangeNASDAQ
}

// InferQuoteCurrency returns the settlement currency for a symbol.
func InferQuoteCurrency(code string) string {
	if helpers.IsNumericCode(code) {
		return "KRW"
	}
	return "USD"
}

// FormatPrice1dp truncates toward zero to one decimal place. Truncation,
// not rounding: a buy trigger formatted upward could place a limit above
// the price that armed it.
func FormatPrice1dp(v float64) string {
	truncated := math.Trunc(v*10) / 10
	return strconv.FormatFloat(truncated, 'f', 1, 64)
}

// BuildLimitOrder builds the relay payload for a limit order. amount is the
// share quantity; orderName is a human label shown in the relay UI.
func BuildLimitOrder(code string, side types.Side, price float64, amount int, exchangeCode, market, orderName, password, kisNumber string) (string, error) {
	if !side.Valid() {
		return "", fmt.Errorf("BuildLimitOrder: invalid side %q", side)
	}
	if amount < 1 {
		return "", fmt.Errorf("BuildLimitOrder: amount must be positive, got %d", amount)
	}

	code = helpers.NormalizeCode(code)
	payload := map[string]string{
		"password":   password,
		"exchange":   InferExchange(code, exchangeCode, market),
		"base":       code,
		"quote":      InferQuoteCurrency(code),
		"side":       strings.ToLower(string(side)),
		"type":       "limit",
		"amount":     strconv.Itoa(amount),
		"price":      FormatPrice1dp(price),
		"percent":    "NaN",
		"order_name": orderName,
		"kis_number": kisNumber,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("BuildLimitOrder: %w", err)
	}
	return string(body), nil
}

// BuildMarketSellAll builds the relay payload that liquidates the whole
// position at market.
func BuildMarketSellAll(code, exchangeCode, market, orderName, password, kisNumber string) (string, error) {
	code = helpers.NormalizeCode(code)
	payload := map[string]string{
		"password":   password,
		"exchange":   InferExchange(code, exchangeCode, market),
		"base":       code,
		"quote":      InferQuoteCurrency(code),
		"side":       "sell",
		"type":       "market",
		"amount":     "NaN",
		"price":      "NaN",
		"percent":    "100",
		"order_name": orderName,
		"kis_number": kisNumber,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("BuildMarketSellAll: %w", err)
	}
	return string(body), nil
}
