package executor

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrOrderTooSmall means the spend does not buy a single whole share at the
// rounded price.
var ErrOrderTooSmall = errors.New("order too small: fewer than one share")

var (
	maxPrice = decimal.RequireFromString("0.99")
	minPrice = decimal.RequireFromString("0.01")
)

// RoundOrder normalizes an order to what the exchange accepts: price at two
// decimals, a whole number of shares, and a notional that lands on a cent.
// Shares are floored so the cost never exceeds the requested spend. With an
// integral share count and a two-decimal price the notional is always exact,
// but the final guard trims a share if that ever stops holding.
func RoundOrder(price, spend decimal.Decimal) (roundedPrice, shares, cost decimal.Decimal, err error) {
	roundedPrice = price.Round(2)
	if roundedPrice.GreaterThan(maxPrice) {
		roundedPrice = maxPrice
	}
	if roundedPrice.LessThan(minPrice) {
		roundedPrice = minPrice
	}
	shares = spend.Div(roundedPrice).Floor()
	for shares.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		cost = roundedPrice.Mul(shares)
		if cost.Equal(cost.Round(2)) {
			break
		}
		shares = shares.Sub(decimal.NewFromInt(1))
	}
	if shares.LessThan(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, decimal.Decimal{}, decimal.Decimal{}, ErrOrderTooSmall
	}
	return roundedPrice, shares, cost, nil
}
