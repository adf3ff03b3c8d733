package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// WinRateTable maps an entry price bucket (two decimals, e.g. "0.87") to the
// historical probability that a position entered at that price resolved in
// the money. Buckets without data fall back to the price itself, i.e. the
// market-implied probability, which never produces positive edge on its own.
type WinRateTable struct {
	rates map[string]decimal.Decimal
}

// defaultWinRates comes from backtests of hourly up/down series entries.
// High-priced entries historically finish in the money slightly more often
// than the price implies, which is the whole edge this strategy trades.
var defaultWinRates = map[string]float64{
	"0.80": 0.842,
	"0.81": 0.851,
	"0.82": 0.859,
	"0.83": 0.868,
	"0.84": 0.876,
	"0.85": 0.888,
	"0.86": 0.897,
	"0.87": 0.905,
	"0.88": 0.914,
	"0.89": 0.923,
	"0.90": 0.933,
	"0.91": 0.941,
	"0.92": 0.950,
	"0.93": 0.957,
	"0.94": 0.964,
	"0.95": 0.971,
	"0.96": 0.977,
	"0.97": 0.983,
	"0.98": 0.988,
	"0.99": 0.993,
}

// NewWinRateTable builds the default table with per-bucket overrides applied
// on top. Override keys must be two-decimal price strings.
func NewWinRateTable(overrides map[string]float64) *WinRateTable {
	rates := make(map[string]decimal.Decimal, len(defaultWinRates)+len(overrides))
	for bucket, rate := range defaultWinRates {
		rates[bucket] = decimal.NewFromFloat(rate)
	}
	for bucket, rate := range overrides {
		rates[bucket] = decimal.NewFromFloat(rate)
	}
	return &WinRateTable{rates: rates}
}

// Lookup returns the win rate for a price, bucketed to two decimals.
func (t *WinRateTable) Lookup(price decimal.Decimal) decimal.Decimal {
	if t != nil {
		bucket := fmt.Sprintf("%.2f", price.InexactFloat64())
		if rate, ok := t.rates[bucket]; ok {
			return rate
		}
	}
	return price
}
