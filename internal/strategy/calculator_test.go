package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testParams() EvaluateParams {
	return EvaluateParams{
		AssetID:  "btc",
		MinPrice: dec("0.85"),
		MaxPrice: dec("0.98"),
		BetSize:  dec("50"),
	}
}

func TestEvaluatePicksSideInBand(t *testing.T) {
	calc := &Calculator{WinRates: NewWinRateTable(nil)}
	quote := Quote{
		MarketID:    "m1",
		UpTokenID:   "tok-up",
		DownTokenID: "tok-down",
		UpAsk:       dec("0.90"),
		DownAsk:     dec("0.12"),
	}
	opp := calc.Evaluate(quote, testParams())
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if opp.Side != SideUp {
		t.Fatalf("side = %q, want %q", opp.Side, SideUp)
	}
	if opp.TokenID != "tok-up" {
		t.Fatalf("token = %q, want tok-up", opp.TokenID)
	}
	if opp.Price.Cmp(dec("0.90")) != 0 {
		t.Fatalf("price = %s, want 0.90", opp.Price)
	}
	if opp.WinRate.Cmp(dec("0.933")) != 0 {
		t.Fatalf("win rate = %s, want 0.933", opp.WinRate)
	}
}

func TestEvaluateComputesShareSize(t *testing.T) {
	calc := &Calculator{WinRates: NewWinRateTable(nil)}
	quote := Quote{MarketID: "m1", UpTokenID: "u", DownTokenID: "d", UpAsk: dec("0.92")}
	opp := calc.Evaluate(quote, EvaluateParams{
		AssetID:  "btc",
		MinPrice: dec("0.90"),
		MaxPrice: dec("0.94"),
		BetSize:  dec("90"),
	})
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	// 90 / 0.92 = 97.826...
	if got := opp.SizeShares.Round(1); got.Cmp(dec("97.8")) != 0 {
		t.Fatalf("size shares = %s, want 97.8", got)
	}
}

func TestEvaluateRejectsOutOfBand(t *testing.T) {
	calc := &Calculator{WinRates: NewWinRateTable(nil)}
	for _, ask := range []string{"0.84", "0.99", "0.50"} {
		quote := Quote{MarketID: "m1", UpTokenID: "u", DownTokenID: "d", UpAsk: dec(ask)}
		if opp := calc.Evaluate(quote, testParams()); opp != nil {
			t.Fatalf("ask %s should not qualify, got side %s", ask, opp.Side)
		}
	}
}

func TestEvaluateAcceptsInBandWithoutTableEdge(t *testing.T) {
	// Override the 0.90 bucket so its win rate equals the price. The band
	// decides entry; the table only informs the expected value.
	calc := &Calculator{WinRates: NewWinRateTable(map[string]float64{"0.90": 0.90})}
	quote := Quote{MarketID: "m1", UpTokenID: "u", DownTokenID: "d", UpAsk: dec("0.90")}
	opp := calc.Evaluate(quote, testParams())
	if opp == nil {
		t.Fatal("in-band price must qualify regardless of table edge")
	}
	if !opp.Edge.IsZero() {
		t.Fatalf("edge = %s, want 0", opp.Edge)
	}
}

func TestEvaluateSkipsEmptyBook(t *testing.T) {
	calc := &Calculator{WinRates: NewWinRateTable(nil)}
	quote := Quote{MarketID: "m1", UpTokenID: "u", DownTokenID: "d"}
	if opp := calc.Evaluate(quote, testParams()); opp != nil {
		t.Fatal("empty book should not qualify")
	}
}

func TestEvaluateSideOrderIsStable(t *testing.T) {
	calc := &Calculator{WinRates: NewWinRateTable(nil)}
	quote := Quote{
		MarketID:    "m1",
		UpTokenID:   "u",
		DownTokenID: "d",
		UpAsk:       dec("0.90"),
		DownAsk:     dec("0.86"),
	}
	// Both sides in band only happens on a badly skewed book; the first
	// discovered side wins, every time.
	for i := 0; i < 3; i++ {
		opp := calc.Evaluate(quote, testParams())
		if opp == nil {
			t.Fatal("expected an opportunity")
		}
		if opp.Side != SideUp {
			t.Fatalf("side = %q, want %q (first discovered)", opp.Side, SideUp)
		}
	}
}

func TestWinRateLookupFallsBackToPrice(t *testing.T) {
	table := NewWinRateTable(nil)
	price := dec("0.42")
	if got := table.Lookup(price); got.Cmp(price) != 0 {
		t.Fatalf("fallback = %s, want %s", got, price)
	}
}
