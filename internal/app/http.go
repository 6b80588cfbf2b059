package app

import (
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/elrs-feeder/internal/config"
	"github.com/taoyao-code/elrs-feeder/internal/httpserver"
)

// NewHTTPServer 根据配置创建 HTTP 服务器
func NewHTTPServer(cfg cfgpkg.HTTPConfig, metrics cfgpkg.MetricsConfig, metricsHandler http.Handler, readyFn func() bool, logger *zap.Logger) *httpserver.Server {
	if !metrics.Enable {
		metricsHandler = nil
	}
	return httpserver.New(cfg, metrics.Path, metricsHandler, readyFn, logger)
}
