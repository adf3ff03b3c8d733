package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"updownbot/internal/scheduler"
	"updownbot/internal/service"
	"updownbot/internal/settlement"
	"updownbot/internal/strategy"
)

// Scanner is the scheduler surface the operator endpoints need.
type Scanner interface {
	ForceScan(ctx context.Context, assetID string) (*scheduler.ScanSummary, error)
	Snapshots() []strategy.Quote
}

// StopLossRunner triggers one stop-loss pass.
type StopLossRunner interface {
	RunOnce(ctx context.Context) (checked, sold int, err error)
}

// ClaimRunner triggers one claim sweep.
type ClaimRunner interface {
	ClaimAll(ctx context.Context, lookbackDays int) (*settlement.SweepResult, error)
}

type TradingHandler struct {
	Scanner  Scanner
	StopLoss StopLossRunner
	Claimer  ClaimRunner
	Settings *service.SystemSettingsService

	ClaimLookbackDays int
}

func (h *TradingHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1")
	g.POST("/scan", h.forceScan)
	g.GET("/quotes", h.quotes)
	g.POST("/emergency-stop", h.emergencyStop)
	g.POST("/stoploss/run", h.runStopLoss)
	g.POST("/claims/run", h.runClaims)
}

// forceScan runs a synchronous scan so the caller sees the real outcome,
// not just an acknowledgement. An optional asset_id narrows the scan to one
// asset and overrides its disabled flag.
func (h *TradingHandler) forceScan(c *gin.Context) {
	if h.Scanner == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	summary, err := h.Scanner.ForceScan(c.Request.Context(), c.Query("asset_id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}

func (h *TradingHandler) quotes(c *gin.Context) {
	if h.Scanner == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	Ok(c, h.Scanner.Snapshots(), nil)
}

// emergencyStop flips the trading switch off. Scanning keeps running so the
// operator still sees quotes; only execution stops.
func (h *TradingHandler) emergencyStop(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings unavailable", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), service.FeatureTradingEnabled, false); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"trading_enabled": false}, nil)
}

func (h *TradingHandler) runStopLoss(c *gin.Context) {
	if h.StopLoss == nil {
		Error(c, http.StatusInternalServerError, "stop-loss unavailable", nil)
		return
	}
	checked, sold, err := h.StopLoss.RunOnce(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"checked": checked, "sold": sold}, nil)
}

func (h *TradingHandler) runClaims(c *gin.Context) {
	if h.Claimer == nil {
		Error(c, http.StatusInternalServerError, "claimer unavailable", nil)
		return
	}
	days := intQuery(c, "lookback_days", h.ClaimLookbackDays)
	result, err := h.Claimer.ClaimAll(c.Request.Context(), days)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}
