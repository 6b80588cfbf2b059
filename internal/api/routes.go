package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/elrs-feeder/internal/api/middleware"
)

// RouteConfig 路由级别的中间件配置
type RouteConfig struct {
	Auth       middleware.AuthConfig
	InputRate  float64
	InputBurst int
	CORS       bool
}

// RegisterRoutes 注册控制 API 路由
func RegisterRoutes(r *gin.Engine, h *Handler, cfg RouteConfig, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api := r.Group("/api")
	if cfg.CORS {
		api.Use(middleware.CORS())
	}
	if cfg.Auth.Enabled {
		api.Use(middleware.APIKeyAuth(cfg.Auth, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(cfg.Auth.APIKeys)))
	}

	// 链路
	api.GET("/status", h.Status)
	api.GET("/telemetry", h.Telemetry)
	api.GET("/events", h.Events)
	api.POST("/link/reconnect", h.Reconnect)
	api.POST("/link/reset-tx", h.ResetTx)

	// 设备参数
	api.GET("/devices", h.ListDevices)
	api.GET("/devices/:addr", h.GetDevice)
	api.POST("/devices/:addr/reload", h.ReloadDevice)
	api.POST("/devices/:addr/fields/:fid/read", h.ReadField)
	api.PUT("/devices/:addr/fields/:fid", h.WriteField)

	// 通道与输入
	api.GET("/channels", h.GetChannels)
	api.PUT("/channels", h.PutChannels)
	api.POST("/channels/detect", h.DetectMapping)
	api.POST("/input", middleware.RateLimit(cfg.InputRate, cfg.InputBurst), h.Input)

	logger.Info("control routes registered", zap.Int("endpoints", 14))
}
