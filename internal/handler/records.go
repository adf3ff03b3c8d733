package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"updownbot/internal/repository"
)

// RecordsHandler exposes the trade, scan, and claim history.
type RecordsHandler struct {
	Repo repository.Repository
}

func (h *RecordsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1")
	g.GET("/trades", h.listTrades)
	g.GET("/trades/open", h.listOpenTrades)
	g.GET("/trades/:id", h.getTrade)
	g.GET("/scans", h.listScans)
	g.GET("/claims", h.listClaims)
}

func (h *RecordsHandler) listTrades(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListTradesParams{
		Limit:    limit,
		Offset:   offset,
		AssetID:  strQueryPtr(c, "asset_id"),
		MarketID: strQueryPtr(c, "market_id"),
		Status:   strQueryPtr(c, "status"),
		Since:    sinceQueryPtr(c, "since"),
		OrderBy:  "created_at",
		Asc:      boolPtr(false),
	}
	items, err := h.Repo.ListTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *RecordsHandler) listOpenTrades(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListOpenTrades(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *RecordsHandler) getTrade(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetTradeByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "trade not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *RecordsHandler) listScans(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListScanRecords(c.Request.Context(), repository.ListScanRecordsParams{
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
		Since:  sinceQueryPtr(c, "since"),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *RecordsHandler) listClaims(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListClaimRecords(c.Request.Context(), repository.ListClaimRecordsParams{
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
		Since:  sinceQueryPtr(c, "since"),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
