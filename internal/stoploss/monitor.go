package stoploss

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"updownbot/internal/client/polymarket/clob"
	"updownbot/internal/models"
	"updownbot/internal/repository"
	"updownbot/internal/service"
)

// PositionSource lists the wallet's current exchange positions.
type PositionSource interface {
	GetPositions(ctx context.Context) ([]clob.Position, error)
}

// Seller exits a position at a marketable price.
type Seller interface {
	Sell(ctx context.Context, trade *models.Trade, bestBid, size decimal.Decimal) error
}

// Switches gates the monitor at runtime.
type Switches interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

// Monitor polls open positions and exits any priced under the threshold.
// Entries sit between roughly 0.85 and 0.98, so a price under 0.70 means the
// market has turned and holding to resolution is a coin toss at best. Sells
// use the exchange-reported position size, not the recorded trade size, so a
// partially filled entry exits whatever actually remains.
type Monitor struct {
	Repo      repository.Repository
	Positions PositionSource
	Seller    Seller
	Switches  Switches
	Logger    *zap.Logger

	Threshold     decimal.Decimal
	CheckInterval time.Duration

	mu      sync.Mutex
	running bool
}

// Run checks on a fixed interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m == nil || m.Repo == nil || m.Positions == nil {
		return
	}
	interval := m.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.Switches != nil && !m.Switches.IsEnabled(ctx, service.FeatureStopLoss, true) {
				continue
			}
			if _, _, err := m.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				if m.Logger != nil {
					m.Logger.Error("stop-loss check failed", zap.Error(err))
				}
			}
		}
	}
}

// RunOnce walks the current positions once and returns how many were checked
// and how many were sold. Concurrent calls are collapsed: the second caller
// returns immediately with zero counts.
func (m *Monitor) RunOnce(ctx context.Context) (checked, sold int, err error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return 0, 0, nil
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	positions, err := m.Positions.GetPositions(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list positions: %w", err)
	}
	trades, err := m.Repo.ListOpenTrades(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list open trades: %w", err)
	}
	byToken := map[string]*models.Trade{}
	for i := range trades {
		if trades[i].Status == models.TradeStatusOpen {
			byToken[trades[i].TokenID] = &trades[i]
		}
	}

	for _, pos := range positions {
		if ctx.Err() != nil {
			return checked, sold, ctx.Err()
		}
		if pos.Resolved || pos.Size.LessThanOrEqual(decimal.Zero) {
			continue
		}
		trade, ok := byToken[pos.TokenID]
		if !ok {
			continue
		}
		checked++
		if pos.CurrentPrice.IsZero() {
			if m.Logger != nil {
				m.Logger.Warn("no live price, position kept",
					zap.String("trade_id", trade.ID), zap.String("token_id", pos.TokenID))
			}
			continue
		}
		if pos.CurrentPrice.GreaterThanOrEqual(m.Threshold) {
			continue
		}
		if m.Logger != nil {
			m.Logger.Warn("stop-loss triggered",
				zap.String("trade_id", trade.ID),
				zap.String("market_id", trade.MarketID),
				zap.String("entry", trade.Price.String()),
				zap.String("price", pos.CurrentPrice.String()),
				zap.String("size", pos.Size.String()),
				zap.String("threshold", m.Threshold.String()))
		}
		if err := m.Seller.Sell(ctx, trade, pos.CurrentPrice, pos.Size); err != nil {
			if m.Logger != nil {
				m.Logger.Error("stop-loss sell failed",
					zap.String("trade_id", trade.ID), zap.Error(err))
			}
			continue
		}
		sold++
	}
	return checked, sold, nil
}
