package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"updownbot/internal/models"
	"updownbot/internal/repository"
	"updownbot/internal/service"
)

type AssetsHandler struct {
	Repo   repository.Repository
	Assets *service.AssetSettingsService
}

func (h *AssetsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/assets")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.put)
}

func (h *AssetsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListAssetSettings(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *AssetsHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	item, err := h.Repo.GetAssetSetting(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "asset not found", nil)
		return
	}
	Ok(c, item, nil)
}

type putAssetRequest struct {
	SeriesSlug *string  `json:"series_slug"`
	SpotSymbol *string  `json:"spot_symbol"`
	Enabled    *bool    `json:"enabled"`
	BetSize    *float64 `json:"bet_size"`
	MinPrice   *float64 `json:"min_price"`
	MaxPrice   *float64 `json:"max_price"`
	AutoClaim  *bool    `json:"auto_claim"`
}

func (h *AssetsHandler) put(c *gin.Context) {
	if h.Repo == nil || h.Assets == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid asset id", nil)
		return
	}
	var req putAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Repo.GetAssetSetting(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		item = &models.AssetSetting{AssetID: id}
	}
	if req.SeriesSlug != nil {
		item.SeriesSlug = strings.TrimSpace(*req.SeriesSlug)
	}
	if req.SpotSymbol != nil {
		item.SpotSymbol = strings.TrimSpace(*req.SpotSymbol)
	}
	if req.Enabled != nil {
		item.Enabled = *req.Enabled
	}
	if req.BetSize != nil {
		item.BetSize = decimal.NewFromFloat(*req.BetSize)
	}
	if req.MinPrice != nil {
		item.MinPrice = decimal.NewFromFloat(*req.MinPrice)
	}
	if req.MaxPrice != nil {
		item.MaxPrice = decimal.NewFromFloat(*req.MaxPrice)
	}
	if req.AutoClaim != nil {
		item.AutoClaim = *req.AutoClaim
	}
	if err := h.Assets.Update(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}
