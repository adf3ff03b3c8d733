package executor

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundOrderBasics(t *testing.T) {
	price, shares, cost, err := RoundOrder(dec("0.874"), dec("50"))
	if err != nil {
		t.Fatal(err)
	}
	if price.Cmp(dec("0.87")) != 0 {
		t.Fatalf("price = %s, want 0.87", price)
	}
	// 50 / 0.87 = 57.47, floored to 57 whole shares.
	if shares.Cmp(dec("57")) != 0 {
		t.Fatalf("shares = %s, want 57", shares)
	}
	if cost.Cmp(dec("49.59")) != 0 {
		t.Fatalf("cost = %s, want 49.59", cost)
	}
	if !cost.Equal(cost.Round(2)) {
		t.Fatalf("cost %s has more than two decimals", cost)
	}
}

func TestRoundOrderWholeShares(t *testing.T) {
	_, shares, _, err := RoundOrder(dec("0.90"), dec("10"))
	if err != nil {
		t.Fatal(err)
	}
	if !shares.Equal(shares.Floor()) {
		t.Fatalf("shares %s not whole", shares)
	}
	if shares.Cmp(dec("11")) != 0 {
		t.Fatalf("shares = %s, want 11", shares)
	}
}

func TestRoundOrderTooSmall(t *testing.T) {
	_, _, _, err := RoundOrder(dec("0.95"), dec("0.50"))
	if !errors.Is(err, ErrOrderTooSmall) {
		t.Fatalf("err = %v, want ErrOrderTooSmall", err)
	}
}

func TestRoundOrderClampsPrice(t *testing.T) {
	price, _, _, err := RoundOrder(dec("1.03"), dec("50"))
	if err != nil {
		t.Fatal(err)
	}
	if price.Cmp(dec("0.99")) != 0 {
		t.Fatalf("price = %s, want clamp to 0.99", price)
	}
}

func TestRoundOrderCostNeverExceedsSpend(t *testing.T) {
	for _, c := range []struct{ price, spend string }{
		{"0.87", "50"},
		{"0.913", "25"},
		{"0.99", "100"},
		{"0.85", "1"},
	} {
		price, shares, cost, err := RoundOrder(dec(c.price), dec(c.spend))
		if err != nil {
			t.Fatalf("price %s spend %s: %v", c.price, c.spend, err)
		}
		if cost.GreaterThan(dec(c.spend)) {
			t.Fatalf("price %s spend %s: cost %s exceeds spend", c.price, c.spend, cost)
		}
		if !price.Mul(shares).Equal(cost) {
			t.Fatalf("cost %s != price*shares", cost)
		}
	}
}
