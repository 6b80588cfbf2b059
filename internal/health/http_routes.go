package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHTTPRoutes 注册健康检查路由
//
//	GET /health/ready  串口是否已连接（与 /readyz 同一规则）
//	GET /health        各检查项详情；串口断开返回 503，降级仍返回 200
func RegisterHTTPRoutes(r *gin.Engine, aggregator *Aggregator) {
	r.GET("/health/ready", func(c *gin.Context) {
		if !aggregator.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ready": true})
	})

	r.GET("/health", func(c *gin.Context) {
		report := aggregator.CheckAll(c.Request.Context())
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	})
}
