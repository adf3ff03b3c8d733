package strategy

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Calculator decides whether a quote is worth entering. It holds no market
// state of its own, so a single instance serves every asset.
type Calculator struct {
	WinRates *WinRateTable
	Logger   *zap.Logger
}

// EvaluateParams are the per-asset bounds applied to a quote.
type EvaluateParams struct {
	AssetID  string
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
	BetSize  decimal.Decimal
}

// Evaluate returns an opportunity when one side's ask falls inside the
// configured price band. Sides are checked in a fixed up-then-down order and
// the first qualifying side wins; both sides qualifying at once takes a
// badly skewed book, and the fixed order keeps repeated evaluations of the
// same quote deterministic. Returns nil when nothing qualifies.
func (c *Calculator) Evaluate(quote Quote, params EvaluateParams) *Opportunity {
	if c == nil {
		return nil
	}
	for _, side := range []string{SideUp, SideDown} {
		if opp := c.evaluateSide(quote, side, params); opp != nil {
			return opp
		}
	}
	return nil
}

func (c *Calculator) evaluateSide(quote Quote, side string, params EvaluateParams) *Opportunity {
	ask := quote.Ask(side)
	if ask.IsZero() {
		return nil
	}
	tokenID := quote.TokenID(side)
	if tokenID == "" {
		return nil
	}
	if ask.LessThan(params.MinPrice) || ask.GreaterThan(params.MaxPrice) {
		return nil
	}
	winRate := c.WinRates.Lookup(ask)
	edge := winRate.Sub(ask)
	if c.Logger != nil && edge.LessThanOrEqual(decimal.Zero) {
		c.Logger.Debug("side in band without table edge",
			zap.String("market_id", quote.MarketID),
			zap.String("side", side),
			zap.String("ask", ask.String()),
			zap.String("win_rate", winRate.String()))
	}
	return &Opportunity{
		Quote:      quote,
		Side:       side,
		TokenID:    tokenID,
		Price:      ask,
		BetSize:    params.BetSize,
		SizeShares: params.BetSize.Div(ask),
		WinRate:    winRate,
		Edge:       edge,
		AssetID:    params.AssetID,
	}
}
