package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"updownbot/internal/models"
	"updownbot/internal/repository"
	"updownbot/internal/service"
)

type SystemSettingsHandler struct {
	Repo     repository.Repository
	Settings *service.SystemSettingsService
}

func (h *SystemSettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/settings")
	g.GET("", h.list)
	g.GET("/export", h.export)
	g.POST("/import", h.importSettings)
	g.GET("/switches", h.listSwitches)
	g.PUT("/switches/:name", h.putSwitch)
}

func (h *SystemSettingsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), repository.ListSystemSettingsParams{
		Limit:   intQuery(c, "limit", 200),
		Offset:  intQuery(c, "offset", 0),
		Prefix:  strQueryPtr(c, "prefix"),
		OrderBy: "key",
		Asc:     boolPtr(true),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

// export dumps every stored setting so an operator can snapshot the runtime
// state before an upgrade.
func (h *SystemSettingsHandler) export(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), repository.ListSystemSettingsParams{
		OrderBy: "key",
		Asc:     boolPtr(true),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

type importSettingRequest struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description"`
}

func (h *SystemSettingsHandler) importSettings(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req []importSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body, expected a settings array", nil)
		return
	}
	applied := 0
	for _, entry := range req {
		key := strings.TrimSpace(entry.Key)
		if key == "" || len(entry.Value) == 0 {
			continue
		}
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(entry.Value),
			Description: strings.TrimSpace(entry.Description),
			UpdatedAt:   time.Now().UTC(),
		}
		if err := h.Repo.UpsertSystemSetting(c.Request.Context(), item); err != nil {
			Error(c, http.StatusBadGateway, err.Error(), map[string]any{"applied": applied})
			return
		}
		applied++
	}
	Ok(c, gin.H{"applied": applied}, nil)
}

func (h *SystemSettingsHandler) listSwitches(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings unavailable", nil)
		return
	}
	out := map[string]bool{}
	for key, fallback := range service.DefaultFeatureSwitches() {
		out[key] = h.Settings.IsEnabled(c.Request.Context(), key, fallback)
	}
	Ok(c, out, nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *SystemSettingsHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if !strings.HasPrefix(name, "feature.") {
		name = "feature." + name
	}
	if _, known := service.DefaultFeatureSwitches()[name]; !known {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		Error(c, http.StatusBadRequest, "invalid body, expected {\"enabled\": bool}", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), name, *req.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"key": name, "enabled": *req.Enabled}, nil)
}
