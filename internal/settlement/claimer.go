package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"updownbot/internal/client/polymarket/gamma"
	"updownbot/internal/executor"
	"updownbot/internal/models"
	"updownbot/internal/repository"
)

// Outcome token amounts are 6-decimal fixed point on chain.
var decimalMillion = decimal.NewFromInt(1_000_000)

// ResolvedMarketLister enumerates a series' recently resolved markets.
type ResolvedMarketLister interface {
	ListResolvedMarkets(ctx context.Context, seriesSlug string, sinceDays int) ([]gamma.Market, error)
}

// AssetSource lists the assets whose series the sweep covers.
type AssetSource interface {
	ListAutoClaim(ctx context.Context) ([]models.AssetSetting, error)
}

// ConditionRedeemer settles one resolved condition on chain.
type ConditionRedeemer interface {
	Redeem(ctx context.Context, conditionID string, negRisk bool, amounts []*big.Int) (string, error)
}

// SweepResult summarizes one auto-claim pass.
type SweepResult struct {
	LookbackDays int
	Attempted    int
	Success      int
	Skipped      int
	Failed       int
	Notes        []string
}

// skipMarkers are error fragments that mean the condition needs no action,
// either because nothing was held there or because something else (the UI, a
// previous sweep) already redeemed it. These count as skipped, never as
// failures.
var skipMarkers = []string{
	"already redeemed",
	"nothing to redeem",
	"no balance",
	"not redeemable",
	"result for position is not determined",
}

// Claimer sweeps the resolved markets of every auto-claim series and tries
// to redeem each one. It deliberately does not pre-filter by held positions:
// position data is inconsistent across data sources, so the contract is the
// arbiter and a "nothing to redeem" revert is the normal outcome for markets
// we never traded. It paces itself between attempts so a large backlog does
// not hammer the RPC endpoint.
type Claimer struct {
	Assets   AssetSource
	Markets  ResolvedMarketLister
	Redeemer ConditionRedeemer
	Repo     repository.Repository
	Logger   *zap.Logger

	SuccessDelay time.Duration
	SkipDelay    time.Duration
}

// ClaimAll attempts redemption against every resolved market inside the
// lookback window and persists a ClaimRecord. Returns the sweep summary even
// when some attempts failed; the error is non-nil only when the sweep could
// not run at all.
func (c *Claimer) ClaimAll(ctx context.Context, lookbackDays int) (*SweepResult, error) {
	if c == nil || c.Markets == nil || c.Assets == nil {
		return nil, fmt.Errorf("claimer is not configured")
	}
	result := &SweepResult{LookbackDays: lookbackDays}

	assets, err := c.Assets.ListAutoClaim(ctx)
	if err != nil {
		return nil, fmt.Errorf("list auto-claim assets: %w", err)
	}

	seen := map[string]bool{}
	for _, asset := range assets {
		if ctx.Err() != nil {
			break
		}
		slug := strings.TrimSpace(asset.SeriesSlug)
		if slug == "" || seen["series:"+slug] {
			continue
		}
		seen["series:"+slug] = true

		markets, err := c.Markets.ListResolvedMarkets(ctx, slug, lookbackDays)
		if err != nil {
			// One series failing must not starve the others.
			result.Notes = append(result.Notes, slug+": list resolved markets: "+err.Error())
			continue
		}
		for _, market := range markets {
			if ctx.Err() != nil {
				break
			}
			if market.ConditionID == "" || seen[market.ConditionID] {
				continue
			}
			seen[market.ConditionID] = true
			result.Attempted++

			outcome := c.claimCondition(ctx, market)
			switch outcome.kind {
			case claimSuccess:
				result.Success++
				c.resolveTrades(ctx, market, lookbackDays)
				c.pause(ctx, c.SuccessDelay, 3*time.Second)
			case claimSkipped:
				result.Skipped++
				result.Notes = append(result.Notes, outcome.note)
				// An "already redeemed" skip still means the market settled.
				c.resolveTrades(ctx, market, lookbackDays)
				c.pause(ctx, c.SkipDelay, 500*time.Millisecond)
			case claimFailed:
				result.Failed++
				result.Notes = append(result.Notes, outcome.note)
				c.pause(ctx, c.SkipDelay, 500*time.Millisecond)
			}
		}
	}

	c.persist(ctx, result)
	return result, nil
}

type claimKind int

const (
	claimSuccess claimKind = iota
	claimSkipped
	claimFailed
)

type claimOutcome struct {
	kind claimKind
	note string
}

func (c *Claimer) claimCondition(ctx context.Context, market gamma.Market) claimOutcome {
	if c.Redeemer == nil {
		return claimOutcome{kind: claimSkipped, note: market.ConditionID + ": no redeemer configured"}
	}

	txHash, err := c.Redeemer.Redeem(ctx, market.ConditionID, market.NegRisk, c.redeemAmounts(ctx, market.ConditionID))
	if err == nil {
		if c.Logger != nil {
			c.Logger.Info("market redeemed",
				zap.String("condition_id", market.ConditionID),
				zap.String("slug", market.Slug),
				zap.String("tx", txHash))
		}
		return claimOutcome{kind: claimSuccess}
	}
	if errors.Is(err, ErrReceiptTimeout) {
		// The tx was sent; treat it as landed and let the next sweep verify.
		if c.Logger != nil {
			c.Logger.Warn("redeem unconfirmed, assuming it lands",
				zap.String("condition_id", market.ConditionID), zap.String("tx", txHash))
		}
		return claimOutcome{kind: claimSuccess}
	}
	if isSkippable(err) {
		return claimOutcome{kind: claimSkipped, note: market.ConditionID + ": " + err.Error()}
	}
	if c.Logger != nil {
		c.Logger.Error("redeem failed",
			zap.String("condition_id", market.ConditionID), zap.Error(err))
	}
	return claimOutcome{kind: claimFailed, note: market.ConditionID + ": " + err.Error()}
}

// redeemAmounts builds the adapter amounts from our own trade records. The
// CTF path ignores amounts and redeems the full balance; the neg-risk
// adapter wants explicit 6-decimal units, and our books are the only source
// that survives a flaky positions API.
func (c *Claimer) redeemAmounts(ctx context.Context, conditionID string) []*big.Int {
	if c.Repo == nil {
		return nil
	}
	trades, err := c.Repo.ListOpenTrades(ctx)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("list open trades for amounts", zap.Error(err))
		}
		return nil
	}
	var amounts []*big.Int
	for i := range trades {
		if trades[i].ConditionID != conditionID {
			continue
		}
		amounts = append(amounts, trades[i].Size.Mul(decimalMillion).BigInt())
	}
	return amounts
}

// resolveTrades finalizes pnl on open trades whose market settled. The
// winner comes from the resolved market's outcome prices; while they have
// not collapsed to 1/0 yet, trades stay open for the next sweep.
func (c *Claimer) resolveTrades(ctx context.Context, market gamma.Market, lookbackDays int) {
	if c.Repo == nil {
		return
	}
	winner := market.WinnerTokenID()
	if winner == "" {
		return
	}
	trades, err := c.Repo.ListOpenTrades(ctx)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Error("list open trades", zap.Error(err))
		}
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -lookbackDays)
	now := time.Now().UTC()
	for i := range trades {
		trade := trades[i]
		if trade.ConditionID != market.ConditionID {
			continue
		}
		if lookbackDays > 0 && trade.CreatedAt.Before(cutoff) {
			continue
		}
		executor.MarkResolved(&trade, trade.TokenID == winner, now)
		if err := c.Repo.UpdateTrade(ctx, &trade); err != nil && c.Logger != nil {
			c.Logger.Error("persist resolved trade",
				zap.String("trade_id", trade.ID), zap.Error(err))
		}
	}
}

func (c *Claimer) persist(ctx context.Context, result *SweepResult) {
	if c.Repo == nil {
		return
	}
	details, _ := json.Marshal(map[string]any{"notes": result.Notes})
	record := &models.ClaimRecord{
		LookbackDays: result.LookbackDays,
		Attempted:    result.Attempted,
		Success:      result.Success,
		Skipped:      result.Skipped,
		Failed:       result.Failed,
		Details:      details,
	}
	if err := c.Repo.InsertClaimRecord(ctx, record); err != nil && c.Logger != nil {
		c.Logger.Error("persist claim record", zap.Error(err))
	}
}

func (c *Claimer) pause(ctx context.Context, configured, fallback time.Duration) {
	d := configured
	if d <= 0 {
		d = fallback
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func isSkippable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range skipMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
