package gate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updownbot/internal/strategy"
)

func at(minute int) time.Time {
	return time.Date(2026, 3, 14, 10, minute, 0, 0, time.UTC)
}

func TestWindowBounds(t *testing.T) {
	w := Window{StartMinute: 45, EndMinute: 59}
	cases := []struct {
		minute int
		want   bool
	}{
		{0, false},
		{44, false},
		{45, true},
		{52, true},
		{59, true},
	}
	for _, c := range cases {
		if got := w.InWindow(at(c.minute)); got != c.want {
			t.Fatalf("InWindow(:%02d) = %v, want %v", c.minute, got, c.want)
		}
	}
}

func TestWindowMinutesUntil(t *testing.T) {
	w := Window{StartMinute: 45, EndMinute: 59}
	if got := w.MinutesUntil(at(40)); got != 5 {
		t.Fatalf("MinutesUntil(:40) = %d, want 5", got)
	}
	if got := w.MinutesUntil(at(50)); got != 0 {
		t.Fatalf("MinutesUntil(:50) = %d, want 0", got)
	}
}

type fixedSwing struct {
	pct float64
	ok  bool
}

func (f fixedSwing) SwingPct(string, time.Duration) (float64, bool) { return f.pct, f.ok }

func twoSidedQuote() strategy.Quote {
	return strategy.Quote{
		MarketID: "m1",
		UpAsk:    decimal.RequireFromString("0.90"),
		UpBid:    decimal.RequireFromString("0.89"),
	}
}

func TestVolatilityGateVolatileHour(t *testing.T) {
	g := &VolatilityGate{VolatileHoursUTC: []int{10}}
	ok, reasons := g.Check(at(50), "BTCUSDT", twoSidedQuote(), strategy.SideUp)
	if ok {
		t.Fatal("volatile hour should block")
	}
	if len(reasons) != 1 {
		t.Fatalf("reasons = %v, want one", reasons)
	}
}

func TestVolatilityGateSwingBlocks(t *testing.T) {
	g := &VolatilityGate{
		DeepChecks:  true,
		MaxSwingPct: 0.5,
		SwingWindow: time.Minute,
		Swings:      fixedSwing{pct: 0.8, ok: true},
	}
	ok, reasons := g.Check(at(50), "BTCUSDT", twoSidedQuote(), strategy.SideUp)
	if ok {
		t.Fatalf("swing over limit should block, reasons=%v", reasons)
	}
}

func TestVolatilityGateFailsOpenWithoutData(t *testing.T) {
	g := &VolatilityGate{
		DeepChecks:   true,
		MaxSwingPct:  0.5,
		SwingWindow:  time.Minute,
		Swings:       fixedSwing{ok: false},
		MaxSpreadBps: 200,
	}
	// No swing samples and a one-sided book: both deep checks must skip.
	quote := strategy.Quote{MarketID: "m1", UpAsk: decimal.RequireFromString("0.90")}
	ok, reasons := g.Check(at(50), "BTCUSDT", quote, strategy.SideUp)
	if !ok {
		t.Fatalf("missing data should fail open, reasons=%v", reasons)
	}
}

func TestVolatilityGateSpreadBlocks(t *testing.T) {
	g := &VolatilityGate{DeepChecks: true, MaxSpreadBps: 50}
	// 0.89 bid / 0.90 ask is ~111bps of the ask.
	ok, _ := g.Check(at(50), "", twoSidedQuote(), strategy.SideUp)
	if ok {
		t.Fatal("wide spread should block")
	}
}

func TestVolatilityGateQuietConditionsPass(t *testing.T) {
	g := &VolatilityGate{
		VolatileHoursUTC: []int{14, 15},
		DeepChecks:       true,
		MaxSwingPct:      0.5,
		SwingWindow:      time.Minute,
		Swings:           fixedSwing{pct: 0.1, ok: true},
		MaxSpreadBps:     200,
	}
	ok, reasons := g.Check(at(50), "BTCUSDT", twoSidedQuote(), strategy.SideUp)
	if !ok {
		t.Fatalf("quiet conditions should pass, reasons=%v", reasons)
	}
}
