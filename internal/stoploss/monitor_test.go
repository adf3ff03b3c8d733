package stoploss

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"updownbot/internal/client/polymarket/clob"
	"updownbot/internal/models"
	memoryrepository "updownbot/internal/repository/memory"
)

type stubPositions struct {
	positions []clob.Position
	err       error
}

func (s *stubPositions) GetPositions(context.Context) ([]clob.Position, error) {
	return s.positions, s.err
}

type stubSeller struct {
	sold  []string
	sizes []decimal.Decimal
	err   error
}

func (s *stubSeller) Sell(_ context.Context, trade *models.Trade, _ decimal.Decimal, size decimal.Decimal) error {
	if s.err != nil {
		return s.err
	}
	s.sold = append(s.sold, trade.ID)
	s.sizes = append(s.sizes, size)
	return nil
}

func openTrade(id, tokenID, price string) *models.Trade {
	return &models.Trade{
		ID:      id,
		AssetID: "btc",
		TokenID: tokenID,
		Price:   decimal.RequireFromString(price),
		Size:    decimal.RequireFromString("50"),
		Status:  models.TradeStatusOpen,
	}
}

func position(tokenID, size, price string) clob.Position {
	return clob.Position{
		TokenID:      tokenID,
		Size:         decimal.RequireFromString(size),
		CurrentPrice: decimal.RequireFromString(price),
	}
}

func TestRunOnceSellsUnderThreshold(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepository.New()
	_ = repo.InsertTrade(ctx, openTrade("t-1", "tok-1", "0.90")) // price collapsed
	_ = repo.InsertTrade(ctx, openTrade("t-2", "tok-2", "0.88")) // price healthy

	seller := &stubSeller{}
	m := &Monitor{
		Repo: repo,
		Positions: &stubPositions{positions: []clob.Position{
			position("tok-1", "40", "0.55"), // partial fill left 40 of 50
			position("tok-2", "50", "0.91"),
		}},
		Seller:    seller,
		Threshold: decimal.RequireFromString("0.70"),
	}
	checked, sold, err := m.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if checked != 2 || sold != 1 {
		t.Fatalf("checked=%d sold=%d, want 2/1", checked, sold)
	}
	if len(seller.sold) != 1 || seller.sold[0] != "t-1" {
		t.Fatalf("sold = %v, want [t-1]", seller.sold)
	}
	if seller.sizes[0].Cmp(decimal.RequireFromString("40")) != 0 {
		t.Fatalf("sell size = %s, want the position's remaining 40", seller.sizes[0])
	}
}

func TestRunOnceFailsWhenPositionsUnavailable(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepository.New()
	_ = repo.InsertTrade(ctx, openTrade("t-1", "tok-1", "0.90"))

	m := &Monitor{
		Repo:      repo,
		Positions: &stubPositions{err: errors.New("timeout")},
		Seller:    &stubSeller{},
		Threshold: decimal.RequireFromString("0.70"),
	}
	if _, _, err := m.RunOnce(ctx); err == nil {
		t.Fatal("positions fetch failure must surface, not sell blind")
	}
}

func TestRunOnceKeepsPositionWithoutLivePrice(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepository.New()
	_ = repo.InsertTrade(ctx, openTrade("t-1", "tok-1", "0.90"))

	seller := &stubSeller{}
	m := &Monitor{
		Repo:      repo,
		Positions: &stubPositions{positions: []clob.Position{position("tok-1", "50", "0")}},
		Seller:    seller,
		Threshold: decimal.RequireFromString("0.70"),
	}
	checked, sold, err := m.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if checked != 1 || sold != 0 {
		t.Fatalf("checked=%d sold=%d, want 1/0", checked, sold)
	}
}

func TestRunOnceIgnoresResolvedAndUnknownPositions(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepository.New()
	_ = repo.InsertTrade(ctx, openTrade("t-1", "tok-1", "0.90"))

	resolved := position("tok-1", "50", "0.10")
	resolved.Resolved = true
	seller := &stubSeller{}
	m := &Monitor{
		Repo: repo,
		Positions: &stubPositions{positions: []clob.Position{
			resolved,
			position("tok-untracked", "10", "0.05"), // no matching trade
		}},
		Seller:    seller,
		Threshold: decimal.RequireFromString("0.70"),
	}
	checked, sold, err := m.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if checked != 0 || sold != 0 {
		t.Fatalf("checked=%d sold=%d, want 0/0", checked, sold)
	}
}

func TestRunOnceSkipsPendingTrades(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepository.New()
	pending := openTrade("t-1", "tok-1", "0.90")
	pending.Status = models.TradeStatusPending
	_ = repo.InsertTrade(ctx, pending)

	m := &Monitor{
		Repo:      repo,
		Positions: &stubPositions{positions: []clob.Position{position("tok-1", "50", "0.10")}},
		Seller:    &stubSeller{},
		Threshold: decimal.RequireFromString("0.70"),
	}
	checked, sold, err := m.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if checked != 0 || sold != 0 {
		t.Fatalf("pending trades must not be exited, checked=%d sold=%d", checked, sold)
	}
}
