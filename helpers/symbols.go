package helpers

import "strings"

// NormalizeCode canonicalizes a symbol code for use as a lookup key.
// Codes are stored uppercase without surrounding whitespace.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsNumericCode reports whether the code is all digits (KR listed symbols).
// Non-numeric codes are treated as US tickers.
func IsNumericCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ZeroPad6 left-pads a numeric code to the 6-digit form the broker
// quote endpoint expects.
func ZeroPad6(code string) string {
	code = strings.TrimSpace(code)
	for len(code) < 6 {
		code = "0" + code
	}
	return code
}
