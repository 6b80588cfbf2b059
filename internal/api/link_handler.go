package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/elrs-feeder/internal/link"
)

// Status GET /api/status
func (h *Handler) Status(c *gin.Context) {
	ls := h.ctrl.Status()
	resp := gin.H{
		"link":             ls,
		"link_stats_fresh": h.ctrl.LinkStatsFresh(h.now()),
	}
	if es, err := h.ctrl.EngineStatus(c.Request.Context()); err == nil {
		resp["discovery"] = es
	}
	c.JSON(http.StatusOK, resp)
}

// Telemetry GET /api/telemetry
func (h *Handler) Telemetry(c *gin.Context) {
	snap := h.store.Snapshot()
	resp := gin.H{"state": snap}
	if age, ok := h.store.TelemetryAge(h.now()); ok {
		resp["telemetry_age_ms"] = age.Milliseconds()
	}
	c.JSON(http.StatusOK, resp)
}

type reconnectRequest struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

// Reconnect POST /api/link/reconnect，可选 {"port": "...", "baud": 921600}
func (h *Handler) Reconnect(c *gin.Context) {
	var req reconnectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	var open link.Opener
	if req.Port != "" || req.Baud > 0 {
		if h.openerOf == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "changing port is not supported"})
			return
		}
		open = h.openerOf(req.Port, req.Baud)
	}
	h.logger.Info("reconnect requested", zap.String("port", req.Port), zap.Int("baud", req.Baud))
	if err := h.ctrl.Reconnect(c.Request.Context(), open); err != nil {
		h.fail(c, "reconnect", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link": h.ctrl.Status()})
}

// ResetTx POST /api/link/reset-tx
func (h *Handler) ResetTx(c *gin.Context) {
	if err := h.ctrl.ResetTxDisconnected(c.Request.Context()); err != nil {
		h.fail(c, "reset_tx", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Events GET /api/events?n=100
func (h *Handler) Events(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event history disabled"})
		return
	}
	n := int64(100)
	if v := c.Query("n"); v != "" {
		if vv, err := strconv.ParseInt(v, 10, 64); err == nil && vv > 0 {
			n = vv
		}
	}
	events, err := h.history.History(c.Request.Context(), n)
	if err != nil {
		h.logger.Warn("event history read failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
