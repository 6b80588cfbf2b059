package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListDevices GET /api/devices
func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.ctrl.Devices(c.Request.Context())
	if err != nil {
		h.fail(c, "devices", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// GetDevice GET /api/devices/:addr
func (h *Handler) GetDevice(c *gin.Context) {
	addr, ok := parseByte(c, "addr")
	if !ok {
		return
	}
	dev, found, err := h.ctrl.Device(c.Request.Context(), addr)
	if err != nil {
		h.fail(c, "device", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("device 0x%02X not discovered", addr)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": dev})
}

// ReloadDevice POST /api/devices/:addr/reload
func (h *Handler) ReloadDevice(c *gin.Context) {
	addr, ok := parseByte(c, "addr")
	if !ok {
		return
	}
	if err := h.ctrl.RequestDeviceReload(c.Request.Context(), addr); err != nil {
		h.fail(c, "reload", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// ReadField POST /api/devices/:addr/fields/:fid/read
func (h *Handler) ReadField(c *gin.Context) {
	addr, ok := parseByte(c, "addr")
	if !ok {
		return
	}
	fid, ok := parseByte(c, "fid")
	if !ok {
		return
	}
	if err := h.ctrl.RequestParameterRead(c.Request.Context(), addr, fid); err != nil {
		h.fail(c, "read", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

type writeRequest struct {
	Value *float64 `json:"value"`
}

// WriteField PUT /api/devices/:addr/fields/:fid  {"value": 2}
func (h *Handler) WriteField(c *gin.Context) {
	addr, ok := parseByte(c, "addr")
	if !ok {
		return
	}
	fid, ok := parseByte(c, "fid")
	if !ok {
		return
	}
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"value\": <number>}"})
		return
	}
	ctx := c.Request.Context()
	if err := h.ctrl.WriteParameter(ctx, addr, fid, *req.Value); err != nil {
		h.fail(c, "write", err)
		return
	}
	resp := gin.H{"status": "pending"}
	if pw, found, err := h.ctrl.PendingWrite(ctx, fid); err == nil && found {
		resp["pending"] = pw
	}
	c.JSON(http.StatusAccepted, resp)
}
