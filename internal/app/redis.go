package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/elrs-feeder/internal/config"
	"github.com/taoyao-code/elrs-feeder/internal/event"
	redisstorage "github.com/taoyao-code/elrs-feeder/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端；未启用时返回 nil
func NewRedisClient(ctx context.Context, cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// NewRedisSink 事件发布到 Redis（PUBLISH + 历史列表）
func NewRedisSink(client *redisstorage.Client, cfg cfgpkg.RedisConfig, logger *zap.Logger) *event.RedisSink {
	return event.NewRedisSink(client, cfg.KeyPrefix, cfg.HistoryLen, logger)
}
