package app

import (
	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/elrs-feeder/internal/health"
	redisstorage "github.com/taoyao-code/elrs-feeder/internal/storage/redis"
)

// NewHealthAggregator 创建健康检查聚合器，初始只包含链路检查；ready 与 /readyz 共用
func NewHealthAggregator(probe health.LinkProbe, ready func() bool) *health.Aggregator {
	return health.NewAggregator(ready, health.NewLinkChecker(probe))
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// AddRedisChecker 添加Redis检查器到聚合器
func AddRedisChecker(aggregator *health.Aggregator, redisClient *redisstorage.Client) {
	if redisClient != nil {
		aggregator.AddChecker(health.NewRedisChecker(redisClient))
	}
}
