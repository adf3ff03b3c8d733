package gate

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"updownbot/internal/strategy"
)

// SwingSource answers short-horizon spot swing queries. ok is false when not
// enough samples exist for the window.
type SwingSource interface {
	SwingPct(symbol string, window time.Duration) (float64, bool)
}

// VolatilityGate blocks entries when the underlying looks too jumpy for a
// near-certain outcome bet. The hour check is cheap and static; the deep
// checks need live data and fail open, since a blind feed should degrade the
// bot to its static rules rather than halt it.
type VolatilityGate struct {
	VolatileHoursUTC []int
	SwingWindow      time.Duration
	MaxSwingPct      float64
	MaxSpreadBps     int64
	DeepChecks       bool

	Swings SwingSource
	Logger *zap.Logger
}

// Check returns (true, nil) when the entry may proceed, and (false, reasons)
// when the gate blocks it.
func (g *VolatilityGate) Check(now time.Time, spotSymbol string, quote strategy.Quote, side string) (bool, []string) {
	if g == nil {
		return true, nil
	}
	var reasons []string

	hour := now.UTC().Hour()
	for _, volatile := range g.VolatileHoursUTC {
		if hour == volatile {
			reasons = append(reasons, fmt.Sprintf("volatile hour %02d UTC", hour))
			break
		}
	}

	if g.DeepChecks {
		if g.Swings != nil && spotSymbol != "" && g.MaxSwingPct > 0 {
			swing, ok := g.Swings.SwingPct(spotSymbol, g.SwingWindow)
			if !ok {
				if g.Logger != nil {
					g.Logger.Debug("swing data unavailable, check skipped",
						zap.String("symbol", spotSymbol))
				}
			} else if swing > g.MaxSwingPct {
				reasons = append(reasons, fmt.Sprintf("spot swing %.3f%% over %.3f%%", swing, g.MaxSwingPct))
			}
		}
		if g.MaxSpreadBps > 0 {
			spread := quote.SpreadBps(side)
			if spread < 0 {
				if g.Logger != nil {
					g.Logger.Debug("one-sided book, spread check skipped",
						zap.String("market_id", quote.MarketID), zap.String("side", side))
				}
			} else if spread > g.MaxSpreadBps {
				reasons = append(reasons, fmt.Sprintf("spread %dbps over %dbps", spread, g.MaxSpreadBps))
			}
		}
	}

	return len(reasons) == 0, reasons
}
