package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"updownbot/internal/client/polymarket/clob"
	"updownbot/internal/models"
	"updownbot/internal/repository"
	"updownbot/internal/strategy"
)

// ErrDuplicateTrade means an open trade already exists for the market.
var ErrDuplicateTrade = errors.New("open trade already exists for market")

// OrderClient is the slice of the exchange client the executor needs.
type OrderClient interface {
	ReadOnly() bool
	SubmitOrder(ctx context.Context, args clob.SubmitOrderArgs) (*clob.OrderAck, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// BookSource fetches the live order book at submission time.
type BookSource interface {
	GetBook(ctx context.Context, tokenID string) (*clob.OrderBook, error)
}

var tick = decimal.RequireFromString("0.01")

// Executor turns opportunities into exchange orders and trade records.
// Without API credentials it runs in simulation: trades are recorded with
// synthetic order ids and nothing touches the exchange.
type Executor struct {
	Orders OrderClient
	Books  BookSource
	Repo   repository.Repository
	Logger *zap.Logger

	Straddle        bool
	AggressionTicks int
}

// Submit places a buy for the opportunity and persists the trade. The open
// trade check runs again here, immediately before submission, because the
// scan that produced the opportunity may be stale by the time it executes.
func (e *Executor) Submit(ctx context.Context, opp *strategy.Opportunity) (*models.Trade, error) {
	if e == nil || e.Repo == nil || opp == nil {
		return nil, fmt.Errorf("executor is not configured")
	}
	existing, err := e.Repo.FindOpenTradeByMarket(ctx, opp.Quote.MarketID)
	if err != nil {
		return nil, fmt.Errorf("check open trade: %w", err)
	}
	if existing != nil {
		return existing, ErrDuplicateTrade
	}

	// Price off the book as it stands now, not the scan-time ask; the quote
	// may have moved between evaluation and submission.
	limit := e.marketablePrice(e.liveAsk(ctx, opp.TokenID, opp.Price))
	price, shares, cost, err := RoundOrder(limit, opp.BetSize)
	if err != nil {
		return nil, err
	}

	trade := &models.Trade{
		ID:          uuid.NewString(),
		AssetID:     opp.AssetID,
		MarketID:    opp.Quote.MarketID,
		ConditionID: opp.Quote.ConditionID,
		Question:    opp.Quote.Question,
		Side:        opp.Side,
		TokenID:     opp.TokenID,
		Price:       price,
		Size:        shares,
		Status:      models.TradeStatusPending,
		NegRisk:     opp.Quote.NegRisk,
		Simulated:   e.simulated(),
	}
	if err := e.Repo.InsertTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	ack, err := e.placeBuy(ctx, trade, price, shares)
	if err != nil {
		trade.Status = models.TradeStatusFailed
		trade.FailureReason = err.Error()
		if uerr := e.Repo.UpdateTrade(ctx, trade); uerr != nil && e.Logger != nil {
			e.Logger.Error("persist failed trade", zap.String("trade_id", trade.ID), zap.Error(uerr))
		}
		return trade, err
	}
	trade.OrderID = ack.OrderID
	trade.Status = models.TradeStatusOpen

	if e.Straddle {
		if err := e.placeHedge(ctx, trade, opp); err != nil {
			// Straddle is all or nothing: unwind the primary leg.
			if trade.OrderID != "" && e.Orders != nil && !e.Orders.ReadOnly() {
				if cerr := e.Orders.CancelOrder(ctx, trade.OrderID); cerr != nil && e.Logger != nil {
					e.Logger.Error("cancel primary after hedge failure",
						zap.String("order_id", trade.OrderID), zap.Error(cerr))
				}
			}
			trade.Status = models.TradeStatusCancelled
			trade.FailureReason = fmt.Sprintf("hedge leg failed: %v", err)
		}
	}

	if err := e.Repo.UpdateTrade(ctx, trade); err != nil {
		return trade, fmt.Errorf("update trade: %w", err)
	}
	if e.Logger != nil {
		e.Logger.Info("trade submitted",
			zap.String("trade_id", trade.ID),
			zap.String("market_id", trade.MarketID),
			zap.String("side", trade.Side),
			zap.String("price", price.String()),
			zap.String("shares", shares.String()),
			zap.String("cost", cost.String()),
			zap.Bool("simulated", trade.Simulated))
	}
	return trade, nil
}

// Sell closes an open position at a marketable price. Used by the stop-loss
// monitor; the trade record is updated but not resolved here. size is the
// remaining exchange-reported position, which can differ from the recorded
// trade size after a partial fill; zero falls back to the trade size.
func (e *Executor) Sell(ctx context.Context, trade *models.Trade, bestBid, size decimal.Decimal) error {
	if e == nil || trade == nil {
		return fmt.Errorf("executor is not configured")
	}
	if size.LessThanOrEqual(decimal.Zero) {
		size = trade.Size
	}
	limit := bestBid.Sub(tick.Mul(decimal.NewFromInt(int64(e.AggressionTicks)))).Round(2)
	if limit.LessThan(minPrice) {
		limit = minPrice
	}
	if e.simulated() {
		trade.Status = models.TradeStatusCancelled
		trade.FailureReason = "stop-loss exit (simulated)"
		return e.Repo.UpdateTrade(ctx, trade)
	}
	ack, err := e.Orders.SubmitOrder(ctx, clob.SubmitOrderArgs{
		TokenID: trade.TokenID,
		Side:    clob.SideSell,
		Price:   limit,
		Size:    size,
	})
	if err != nil {
		return fmt.Errorf("submit sell: %w", err)
	}
	if !ack.Accepted() {
		return fmt.Errorf("sell rejected: %s", ack.ErrorMsg)
	}
	trade.Status = models.TradeStatusCancelled
	trade.FailureReason = "stop-loss exit"
	return e.Repo.UpdateTrade(ctx, trade)
}

func (e *Executor) marketablePrice(bestAsk decimal.Decimal) decimal.Decimal {
	return bestAsk.Add(tick.Mul(decimal.NewFromInt(int64(e.AggressionTicks))))
}

// liveAsk re-queries the book for the current best ask. A marketable limit
// with immediate-or-cancel cannot overpay on a stale quote, so a fetch
// failure degrades to the scan-time price instead of blocking the order.
func (e *Executor) liveAsk(ctx context.Context, tokenID string, fallback decimal.Decimal) decimal.Decimal {
	if e.Books == nil {
		return fallback
	}
	book, err := e.Books.GetBook(ctx, tokenID)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("live book fetch failed, using scan price",
				zap.String("token_id", tokenID), zap.Error(err))
		}
		return fallback
	}
	ask, _, ok := book.BestAsk()
	if !ok || ask.IsZero() {
		return fallback
	}
	return ask
}

func (e *Executor) simulated() bool {
	return e.Orders == nil || e.Orders.ReadOnly()
}

func (e *Executor) placeBuy(ctx context.Context, trade *models.Trade, price, shares decimal.Decimal) (*clob.OrderAck, error) {
	if e.simulated() {
		return &clob.OrderAck{OrderID: "sim-" + uuid.NewString(), Status: "matched"}, nil
	}
	ack, err := e.Orders.SubmitOrder(ctx, clob.SubmitOrderArgs{
		TokenID: trade.TokenID,
		Side:    clob.SideBuy,
		Price:   price,
		Size:    shares,
	})
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if !ack.Accepted() {
		return nil, fmt.Errorf("order rejected: %s", ack.ErrorMsg)
	}
	return ack, nil
}

func (e *Executor) placeHedge(ctx context.Context, trade *models.Trade, opp *strategy.Opportunity) error {
	otherSide := strategy.SideDown
	if opp.Side == strategy.SideDown {
		otherSide = strategy.SideUp
	}
	hedgeToken := opp.Quote.TokenID(otherSide)
	if hedgeToken == "" {
		return fmt.Errorf("no token on %s side", otherSide)
	}
	hedgeAsk := e.liveAsk(ctx, hedgeToken, opp.Quote.Ask(otherSide))
	if hedgeAsk.IsZero() {
		return fmt.Errorf("no book on %s side", otherSide)
	}
	price, shares, _, err := RoundOrder(e.marketablePrice(hedgeAsk), opp.BetSize)
	if err != nil {
		return err
	}
	if e.simulated() {
		trade.HedgeOrderID = "sim-" + uuid.NewString()
		return nil
	}
	ack, err := e.Orders.SubmitOrder(ctx, clob.SubmitOrderArgs{
		TokenID: hedgeToken,
		Side:    clob.SideBuy,
		Price:   price,
		Size:    shares,
	})
	if err != nil {
		return err
	}
	if !ack.Accepted() {
		return fmt.Errorf("hedge rejected: %s", ack.ErrorMsg)
	}
	trade.HedgeOrderID = ack.OrderID
	return nil
}

// MarkResolved finalizes pnl for a trade once its market resolved. A winning
// share redeems for one collateral unit, so pnl is size minus cost.
func MarkResolved(trade *models.Trade, won bool, now time.Time) {
	trade.Status = models.TradeStatusResolved
	trade.ResolvedAt = &now
	cost := trade.Price.Mul(trade.Size)
	var pnl decimal.Decimal
	if won {
		pnl = trade.Size.Sub(cost)
	} else {
		pnl = cost.Neg()
	}
	trade.PnL = &pnl
}
