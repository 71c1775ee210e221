package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// Dashboard handles GET /api/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	summary, err := h.dashboard.Summary(c.Request.Context(), h.caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, summary)
}

// DashboardHistory handles GET /api/dashboard/history?months=12
func (h *Handler) DashboardHistory(c *gin.Context) {
	months := 0
	if v := c.Query("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.fail(c, registry.NewValidationError("MONTHS_INVALID", "Nombre de mois invalide"))
			return
		}
		months = n
	}

	history, err := h.dashboard.History(c.Request.Context(), months)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, history)
}

// Health handles GET /health. The cache is optional: its failure degrades
// the report without failing the probe.
func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	store := h.repo.Health(ctx)
	components := gin.H{"database": store}
	status := http.StatusOK
	overall := "healthy"

	if store.Status != "healthy" {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	if h.cache != nil {
		ch := h.cache.Health(ctx)
		components["cache"] = ch
		if ch.Status != "healthy" && overall == "healthy" {
			overall = "degraded"
		}
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"timestamp":  time.Now().UTC(),
		"components": components,
	})
}
