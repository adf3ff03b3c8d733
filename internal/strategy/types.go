package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side of a binary market.
const (
	SideUp   = "up"
	SideDown = "down"
)

// Quote is one market snapshot the scanner hands to the calculator. Prices
// are best-of-book per outcome token, zero when that side of the book was
// empty at fetch time.
type Quote struct {
	MarketID    string
	ConditionID string
	Question    string
	Slug        string

	UpTokenID   string
	DownTokenID string

	UpAsk   decimal.Decimal
	UpBid   decimal.Decimal
	DownAsk decimal.Decimal
	DownBid decimal.Decimal

	NegRisk   bool
	EndTime   time.Time
	FetchedAt time.Time
}

// Ask returns the best ask for the given side.
func (q Quote) Ask(side string) decimal.Decimal {
	if side == SideDown {
		return q.DownAsk
	}
	return q.UpAsk
}

// TokenID returns the outcome token for the given side.
func (q Quote) TokenID(side string) string {
	if side == SideDown {
		return q.DownTokenID
	}
	return q.UpTokenID
}

// SpreadBps is the bid/ask spread of a side in basis points of the ask.
// Returns -1 when either side of the book is missing.
func (q Quote) SpreadBps(side string) int64 {
	ask := q.Ask(side)
	bid := q.UpBid
	if side == SideDown {
		bid = q.DownBid
	}
	if ask.IsZero() || bid.IsZero() {
		return -1
	}
	return ask.Sub(bid).Div(ask).Mul(decimal.NewFromInt(10000)).IntPart()
}

// Opportunity is a quote the calculator accepted, with the side and sizing
// chosen. It carries everything the executor needs to place the order.
// SizeShares is the raw bet divided by price; the executor applies exchange
// rounding on top of it.
type Opportunity struct {
	Quote Quote

	Side       string
	TokenID    string
	Price      decimal.Decimal
	BetSize    decimal.Decimal
	SizeShares decimal.Decimal
	WinRate    decimal.Decimal
	Edge       decimal.Decimal

	AssetID string
}
