package utils

import "strings"

// indexAliases maps common index nicknames to their Yahoo Finance symbols.
var indexAliases = map[string]string{
	"SPX":       "^GSPC",
	"S&P500":    "^GSPC",
	"S&P 500":   "^GSPC",
	"DOW":       "^DJI",
	"DJIA":      "^DJI",
	"NASDAQ":    "^IXIC",
	"NIFTY":     "^NSEI",
	"NIFTY50":   "^NSEI",
	"NIFTY 50":  "^NSEI",
	"BANKNIFTY": "^NSEBANK",
	"SENSEX":    "^BSESN",
	"FTSE":      "^FTSE",
	"DAX":       "^GDAXI",
	"NIKKEI":    "^N225",
}

// NormalizeTicker trims, uppercases and strips a leading "$" from a
// user-supplied ticker. Exchange suffixes such as ".NS" or ".BO" are kept.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	return strings.TrimPrefix(ticker, "$")
}

// ToYahooSymbol converts a ticker to the symbol Yahoo Finance expects,
// resolving index nicknames.
func ToYahooSymbol(ticker string) string {
	ticker = NormalizeTicker(ticker)
	if sym, ok := indexAliases[ticker]; ok {
		return sym
	}
	return ticker
}

// IsIndex reports whether the ticker resolves to a market index.
func IsIndex(ticker string) bool {
	return strings.HasPrefix(ToYahooSymbol(ticker), "^")
}
