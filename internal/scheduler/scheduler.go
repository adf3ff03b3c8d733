package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"updownbot/internal/client/polymarket/clob"
	"updownbot/internal/client/polymarket/gamma"
	"updownbot/internal/executor"
	"updownbot/internal/gate"
	"updownbot/internal/models"
	"updownbot/internal/repository"
	"updownbot/internal/service"
	"updownbot/internal/strategy"
)

// MarketLister finds tradeable markets for a series.
type MarketLister interface {
	ListOpenMarkets(ctx context.Context, seriesSlug string, horizon time.Duration) ([]gamma.Market, error)
}

// BookSource fetches order books.
type BookSource interface {
	GetBook(ctx context.Context, tokenID string) (*clob.OrderBook, error)
}

// TradeSubmitter executes an opportunity.
type TradeSubmitter interface {
	Submit(ctx context.Context, opp *strategy.Opportunity) (*models.Trade, error)
}

// Switches gates scanning and execution at runtime.
type Switches interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

// ScanSummary is what one pass over all enabled assets produced.
type ScanSummary struct {
	MarketsSeen    int
	Opportunities  int
	TradesExecuted int
	Forced         bool
	Skipped        bool
	Notes          []string
}

// Scheduler drives the scan-decide-execute loop. One pass walks every
// configured asset sequentially, refreshes the quote snapshot for each
// market, and only then lets the gates and the enabled flag decide whether
// anything gets executed. The snapshot refresh is unconditional so the
// operator surface shows live prices even for disabled assets and while the
// gates hold trading closed.
type Scheduler struct {
	Assets   *service.AssetSettingsService
	Markets  MarketLister
	Books    BookSource
	Calc     *strategy.Calculator
	Window   gate.Window
	VolGate  *gate.VolatilityGate
	Exec     TradeSubmitter
	Repo     repository.Repository
	Switches Switches
	Logger   *zap.Logger

	ScanInterval     time.Duration
	MinFetchInterval time.Duration
	Horizon          time.Duration

	// Now is replaceable for deterministic window checks.
	Now func() time.Time

	mu        sync.Mutex
	running   bool
	lastFetch time.Time
	snapshots map[string]strategy.Quote
}

// Run scans on a fixed interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s == nil || s.Repo == nil {
		return
	}
	interval := s.ScanInterval
	if interval <= 0 {
		interval = 20 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Switches != nil && !s.Switches.IsEnabled(ctx, service.FeatureScheduler, true) {
				continue
			}
			if _, err := s.RunOnce(ctx, false, ""); err != nil && !errors.Is(err, context.Canceled) {
				if s.Logger != nil {
					s.Logger.Error("scan failed", zap.Error(err))
				}
			}
		}
	}
}

// ForceScan runs one pass immediately, bypassing the fetch throttle and the
// per-asset enabled flag. assetID narrows the pass to one asset; empty means
// all. It is synchronous so the HTTP caller gets the real summary back.
func (s *Scheduler) ForceScan(ctx context.Context, assetID string) (*ScanSummary, error) {
	return s.RunOnce(ctx, true, assetID)
}

// RunOnce performs one full scan. Concurrent calls collapse: the second
// caller gets a skipped summary. A scan record is written even when parts
// of the pass failed.
func (s *Scheduler) RunOnce(ctx context.Context, forced bool, assetID string) (*ScanSummary, error) {
	now := s.now()
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return &ScanSummary{Skipped: true, Notes: []string{"scan already in progress"}}, nil
	}
	if !forced && s.MinFetchInterval > 0 && now.Sub(s.lastFetch) < s.MinFetchInterval {
		s.mu.Unlock()
		return &ScanSummary{Skipped: true, Notes: []string{"inside min fetch interval"}}, nil
	}
	s.running = true
	s.lastFetch = now
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	summary := &ScanSummary{Forced: forced}
	assets, err := s.Assets.List(ctx)
	if err != nil {
		summary.Notes = append(summary.Notes, "list assets: "+err.Error())
		s.persist(ctx, summary)
		return summary, fmt.Errorf("list assets: %w", err)
	}
	if assetID != "" {
		assets = filterAsset(assets, assetID)
		if len(assets) == 0 {
			summary.Notes = append(summary.Notes, "unknown asset: "+assetID)
		}
	}

	tradingOpen := s.tradingOpen(ctx, now, summary)
	for _, asset := range assets {
		if ctx.Err() != nil {
			break
		}
		// Disabled assets still get their snapshot refresh; a forced scan
		// overrides the flag for execution too.
		executable := tradingOpen && (asset.Enabled || forced)
		if !asset.Enabled && !forced {
			summary.Notes = append(summary.Notes, asset.AssetID+": disabled, execution skipped")
		}
		s.scanAsset(ctx, asset, now, executable, summary)
	}

	s.persist(ctx, summary)
	return summary, nil
}

func filterAsset(assets []models.AssetSetting, assetID string) []models.AssetSetting {
	for _, asset := range assets {
		if asset.AssetID == assetID {
			return []models.AssetSetting{asset}
		}
	}
	return nil
}

// tradingOpen evaluates the pass-wide gates: the feature switch and the
// trading window. Per-market volatility checks happen later.
func (s *Scheduler) tradingOpen(ctx context.Context, now time.Time, summary *ScanSummary) bool {
	if s.Switches != nil && !s.Switches.IsEnabled(ctx, service.FeatureTradingEnabled, false) {
		summary.Notes = append(summary.Notes, "trading switch off")
		return false
	}
	if !s.Window.InWindow(now) {
		summary.Notes = append(summary.Notes,
			fmt.Sprintf("outside trading window, %d min until open", s.Window.MinutesUntil(now)))
		return false
	}
	return true
}

func (s *Scheduler) scanAsset(ctx context.Context, asset models.AssetSetting, now time.Time, executable bool, summary *ScanSummary) {
	markets, err := s.Markets.ListOpenMarkets(ctx, asset.SeriesSlug, s.Horizon)
	if err != nil {
		summary.Notes = append(summary.Notes, asset.AssetID+": list markets: "+err.Error())
		return
	}
	for _, market := range markets {
		if ctx.Err() != nil {
			return
		}
		summary.MarketsSeen++
		quote, err := s.buildQuote(ctx, market, now)
		if err != nil {
			summary.Notes = append(summary.Notes, asset.AssetID+"/"+market.ID+": "+err.Error())
			continue
		}
		s.storeSnapshot(quote)

		opp := s.Calc.Evaluate(quote, strategy.EvaluateParams{
			AssetID:  asset.AssetID,
			MinPrice: asset.MinPrice,
			MaxPrice: asset.MaxPrice,
			BetSize:  asset.BetSize,
		})
		if opp == nil {
			continue
		}
		summary.Opportunities++
		if !executable {
			continue
		}
		if s.VolGate != nil {
			ok, reasons := s.VolGate.Check(now, asset.SpotSymbol, quote, opp.Side)
			if !ok {
				for _, reason := range reasons {
					summary.Notes = append(summary.Notes, asset.AssetID+"/"+market.ID+": "+reason)
				}
				continue
			}
		}
		s.execute(ctx, opp, summary)
	}
}

func (s *Scheduler) execute(ctx context.Context, opp *strategy.Opportunity, summary *ScanSummary) {
	trade, err := s.Exec.Submit(ctx, opp)
	if errors.Is(err, executor.ErrDuplicateTrade) {
		summary.Notes = append(summary.Notes, opp.Quote.MarketID+": open trade exists")
		return
	}
	if err != nil {
		summary.Notes = append(summary.Notes, opp.Quote.MarketID+": "+err.Error())
		return
	}
	summary.TradesExecuted++
	if s.Logger != nil {
		s.Logger.Info("scan executed trade",
			zap.String("trade_id", trade.ID),
			zap.String("market_id", trade.MarketID),
			zap.String("side", trade.Side))
	}
}

func (s *Scheduler) buildQuote(ctx context.Context, market gamma.Market, now time.Time) (strategy.Quote, error) {
	quote := strategy.Quote{
		MarketID:    market.ID,
		ConditionID: market.ConditionID,
		Question:    market.Question,
		Slug:        market.Slug,
		UpTokenID:   market.UpTokenID,
		DownTokenID: market.DownTokenID,
		NegRisk:     market.NegRisk,
		EndTime:     market.EndTime,
		FetchedAt:   now,
	}
	upBook, err := s.Books.GetBook(ctx, market.UpTokenID)
	if err != nil {
		return quote, fmt.Errorf("up book: %w", err)
	}
	if price, _, ok := upBook.BestAsk(); ok {
		quote.UpAsk = price
	}
	if price, _, ok := upBook.BestBid(); ok {
		quote.UpBid = price
	}
	downBook, err := s.Books.GetBook(ctx, market.DownTokenID)
	if err != nil {
		return quote, fmt.Errorf("down book: %w", err)
	}
	if price, _, ok := downBook.BestAsk(); ok {
		quote.DownAsk = price
	}
	if price, _, ok := downBook.BestBid(); ok {
		quote.DownBid = price
	}
	return quote, nil
}

func (s *Scheduler) storeSnapshot(quote strategy.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshots == nil {
		s.snapshots = map[string]strategy.Quote{}
	}
	s.snapshots[quote.MarketID] = quote
}

// Snapshots returns the latest quote per market, newest fetch first.
func (s *Scheduler) Snapshots() []strategy.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]strategy.Quote, 0, len(s.snapshots))
	for _, quote := range s.snapshots {
		out = append(out, quote)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FetchedAt.After(out[j].FetchedAt) })
	return out
}

func (s *Scheduler) persist(ctx context.Context, summary *ScanSummary) {
	if s.Repo == nil || summary.Skipped {
		return
	}
	details, _ := json.Marshal(map[string]any{"notes": summary.Notes})
	record := &models.ScanRecord{
		MarketsSeen:    summary.MarketsSeen,
		Opportunities:  summary.Opportunities,
		TradesExecuted: summary.TradesExecuted,
		Forced:         summary.Forced,
		Details:        details,
	}
	if err := s.Repo.InsertScanRecord(ctx, record); err != nil && s.Logger != nil {
		s.Logger.Error("persist scan record", zap.Error(err))
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
