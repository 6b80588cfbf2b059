package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/taoyao-code/elrs-feeder/internal/mixer"
)

const yamlContentType = "application/yaml"

type inputRequest struct {
	Axes     []float64 `json:"axes"`
	Buttons  []int     `json:"buttons"`
	Channels []int     `json:"channels"`
}

// Input POST /api/input
// {"axes": [...], "buttons": [...]} 经混控后送入链路；{"channels": [...]} 为直接的 µs 值
func (h *Handler) Input(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out := req.Channels
	if len(out) == 0 {
		out = h.table.Compute(req.Axes, req.Buttons)
		h.metrics.MixerTick()
	}
	h.ctrl.SendChannels(out)
	c.JSON(http.StatusOK, gin.H{"channels": out})
}

func wantsYAML(c *gin.Context) bool {
	if c.Query("format") == "yaml" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "yaml")
}

// GetChannels GET /api/channels，?format=yaml 返回 YAML
func (h *Handler) GetChannels(c *gin.Context) {
	rows := h.table.Rows()
	if wantsYAML(c) {
		data, err := mixer.EncodeRows(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, yamlContentType, data)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": rows, "last": h.table.Last()})
}

// PutChannels PUT /api/channels，JSON 或 YAML（Content-Type 含 yaml）
func (h *Handler) PutChannels(c *gin.Context) {
	var (
		rows []mixer.RowConfig
		err  error
	)
	if strings.Contains(c.ContentType(), "yaml") {
		var body []byte
		if body, err = c.GetRawData(); err == nil {
			rows, err = mixer.DecodeRows(body)
		}
	} else {
		var doc struct {
			Channels []mixer.RowConfig `json:"channels" binding:"required"`
		}
		err = c.ShouldBindBodyWith(&doc, binding.JSON)
		rows = doc.Channels
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.table.Replace(rows); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Info("channel configuration replaced", zap.Int("rows", len(rows)))
	c.JSON(http.StatusOK, gin.H{"channels": h.table.Rows()})
}

type detectRequest struct {
	BaseAxes    []float64 `json:"base_axes"`
	BaseButtons []int     `json:"base_buttons"`
	Axes        []float64 `json:"axes"`
	Buttons     []int     `json:"buttons"`
}

// DetectMapping POST /api/channels/detect 对比基线与当前采样，返回新映射的来源
func (h *Handler) DetectMapping(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	src, idx, ok := mixer.DetectMapping(req.BaseAxes, req.BaseButtons, req.Axes, req.Buttons)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"detected": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detected": true, "src": src, "idx": idx})
}
