package settlement

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updownbot/internal/client/polymarket/gamma"
	"updownbot/internal/models"
	"updownbot/internal/repository"
	memoryrepository "updownbot/internal/repository/memory"
)

type stubAssets struct {
	assets []models.AssetSetting
	err    error
}

func (s *stubAssets) ListAutoClaim(context.Context) ([]models.AssetSetting, error) {
	return s.assets, s.err
}

type stubMarkets struct {
	markets map[string][]gamma.Market
	err     error
}

func (s *stubMarkets) ListResolvedMarkets(_ context.Context, seriesSlug string, _ int) ([]gamma.Market, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.markets[seriesSlug], nil
}

type stubRedeemer struct {
	errs    map[string]error
	calls   []string
	amounts map[string][]*big.Int
}

func (s *stubRedeemer) Redeem(_ context.Context, conditionID string, _ bool, amounts []*big.Int) (string, error) {
	s.calls = append(s.calls, conditionID)
	if s.amounts == nil {
		s.amounts = map[string][]*big.Int{}
	}
	s.amounts[conditionID] = amounts
	if err, ok := s.errs[conditionID]; ok {
		return "", err
	}
	return "0xtx", nil
}

func btcSeries() *stubAssets {
	return &stubAssets{assets: []models.AssetSetting{
		{AssetID: "btc", SeriesSlug: "bitcoin-up-or-down", AutoClaim: true},
	}}
}

func fastClaimer(repo repository.Repository, markets *stubMarkets, redeemer *stubRedeemer) *Claimer {
	return &Claimer{
		Assets:       btcSeries(),
		Markets:      markets,
		Redeemer:     redeemer,
		Repo:         repo,
		SuccessDelay: time.Millisecond,
		SkipDelay:    time.Millisecond,
	}
}

func resolvedMarket(id, conditionID, winner string) gamma.Market {
	m := gamma.Market{
		ID:          id,
		ConditionID: conditionID,
		Slug:        "bitcoin-up-or-down-" + id,
		Closed:      true,
		UpTokenID:   "tok-up-" + id,
		DownTokenID: "tok-down-" + id,
	}
	switch winner {
	case "up":
		m.UpPrice = decimal.NewFromInt(1)
	case "down":
		m.DownPrice = decimal.NewFromInt(1)
	}
	return m
}

func marketStub(markets ...gamma.Market) *stubMarkets {
	return &stubMarkets{markets: map[string][]gamma.Market{"bitcoin-up-or-down": markets}}
}

func TestClaimAllCounts(t *testing.T) {
	repo := memoryrepository.New()
	markets := marketStub(
		resolvedMarket("a", "0xaaa", "up"),
		resolvedMarket("b", "0xbbb", "up"),
		resolvedMarket("c", "0xccc", "up"),
		resolvedMarket("d", "0xddd", "down"),
	)
	redeemer := &stubRedeemer{errs: map[string]error{
		"0xbbb": errors.New("execution reverted: nothing to redeem"),
		"0xccc": errors.New("rpc: connection refused"),
	}}
	c := fastClaimer(repo, markets, redeemer)

	result, err := c.ClaimAll(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if result.Attempted != 4 || result.Success != 2 || result.Skipped != 1 || result.Failed != 1 {
		t.Fatalf("counts = %+v", result)
	}

	records, _ := repo.ListClaimRecords(context.Background(), repository.ListClaimRecordsParams{})
	if len(records) != 1 {
		t.Fatalf("claim records = %d, want 1", len(records))
	}
	if records[0].Success != 2 || records[0].Skipped != 1 || records[0].Failed != 1 {
		t.Fatalf("record counts = %+v", records[0])
	}
}

func TestClaimAllAttemptsMarketsWithoutKnownPosition(t *testing.T) {
	// No trade, no position anywhere: the sweep still attempts every
	// resolved market and lets the contract answer.
	repo := memoryrepository.New()
	markets := marketStub(resolvedMarket("a", "0xaaa", "up"))
	redeemer := &stubRedeemer{errs: map[string]error{
		"0xaaa": errors.New("execution reverted: nothing to redeem"),
	}}
	c := fastClaimer(repo, markets, redeemer)

	result, err := c.ClaimAll(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(redeemer.calls) != 1 || redeemer.calls[0] != "0xaaa" {
		t.Fatalf("redeem calls = %v, want one unconditional attempt", redeemer.calls)
	}
	if result.Attempted != 1 || result.Skipped != 1 || result.Failed != 0 {
		t.Fatalf("counts = %+v", result)
	}
}

func TestClaimAllAlreadyRedeemedIsSkip(t *testing.T) {
	repo := memoryrepository.New()
	markets := marketStub(resolvedMarket("a", "0xaaa", "up"))
	redeemer := &stubRedeemer{errs: map[string]error{
		"0xaaa": errors.New("already redeemed"),
	}}
	c := fastClaimer(repo, markets, redeemer)

	result, err := c.ClaimAll(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 1 || result.Failed != 0 {
		t.Fatalf("skip classification wrong: %+v", result)
	}
}

func TestClaimAllReceiptTimeoutIsOptimisticSuccess(t *testing.T) {
	repo := memoryrepository.New()
	markets := marketStub(resolvedMarket("a", "0xaaa", "up"))
	redeemer := &stubRedeemer{errs: map[string]error{"0xaaa": ErrReceiptTimeout}}
	c := fastClaimer(repo, markets, redeemer)

	result, err := c.ClaimAll(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != 1 || result.Failed != 0 {
		t.Fatalf("timeout should count as success: %+v", result)
	}
}

func TestClaimAllDedupesConditions(t *testing.T) {
	repo := memoryrepository.New()
	markets := marketStub(
		resolvedMarket("a", "0xaaa", "up"),
		resolvedMarket("a2", "0xaaa", "up"),
	)
	redeemer := &stubRedeemer{}
	c := fastClaimer(repo, markets, redeemer)

	result, err := c.ClaimAll(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if result.Attempted != 1 || len(redeemer.calls) != 1 {
		t.Fatalf("condition redeemed twice: %+v calls=%v", result, redeemer.calls)
	}
}

func TestClaimAllBuildsExactAmounts(t *testing.T) {
	repo := memoryrepository.New()
	ctx := context.Background()
	trade := &models.Trade{
		ID: "t-1", MarketID: "m-a", ConditionID: "0xaaa", TokenID: "tok-up-a",
		Price:  decimal.RequireFromString("0.90"),
		Size:   decimal.RequireFromString("55.123456"),
		Status: models.TradeStatusOpen,
	}
	if err := repo.InsertTrade(ctx, trade); err != nil {
		t.Fatal(err)
	}
	markets := marketStub(resolvedMarket("a", "0xaaa", "up"))
	redeemer := &stubRedeemer{}
	c := fastClaimer(repo, markets, redeemer)

	if _, err := c.ClaimAll(ctx, 7); err != nil {
		t.Fatal(err)
	}
	amounts := redeemer.amounts["0xaaa"]
	if len(amounts) != 1 || amounts[0].Cmp(big.NewInt(55_123_456)) != 0 {
		t.Fatalf("amounts = %v, want exactly 55123456", amounts)
	}
}

func TestClaimAllResolvesTrades(t *testing.T) {
	repo := memoryrepository.New()
	ctx := context.Background()

	winner := &models.Trade{
		ID: "t-win", MarketID: "m-a", ConditionID: "0xaaa", TokenID: "tok-up-a",
		Price: decimal.RequireFromString("0.90"), Size: decimal.RequireFromString("55"),
		Status: models.TradeStatusOpen,
	}
	loser := &models.Trade{
		ID: "t-lose", MarketID: "m-a", ConditionID: "0xaaa", TokenID: "tok-down-a",
		Price: decimal.RequireFromString("0.10"), Size: decimal.RequireFromString("20"),
		Status: models.TradeStatusOpen,
	}
	if err := repo.InsertTrade(ctx, winner); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertTrade(ctx, loser); err != nil {
		t.Fatal(err)
	}

	markets := marketStub(resolvedMarket("a", "0xaaa", "up"))
	c := fastClaimer(repo, markets, &stubRedeemer{})

	if _, err := c.ClaimAll(ctx, 7); err != nil {
		t.Fatal(err)
	}

	won, _ := repo.GetTradeByID(ctx, "t-win")
	if won.Status != models.TradeStatusResolved {
		t.Fatalf("winner status = %s", won.Status)
	}
	// 55 shares at 0.90 cost 49.50, redeem for 55: pnl 5.50.
	if won.PnL == nil || won.PnL.Cmp(decimal.RequireFromString("5.5")) != 0 {
		t.Fatalf("winner pnl = %v", won.PnL)
	}
	lost, _ := repo.GetTradeByID(ctx, "t-lose")
	if lost.Status != models.TradeStatusResolved {
		t.Fatalf("loser status = %s", lost.Status)
	}
	if lost.PnL == nil || lost.PnL.Cmp(decimal.RequireFromString("-2")) != 0 {
		t.Fatalf("loser pnl = %v", lost.PnL)
	}
}
