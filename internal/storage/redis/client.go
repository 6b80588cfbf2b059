// Package redis 封装 go-redis 客户端，供事件输出与健康检查使用
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/taoyao-code/elrs-feeder/internal/config"
)

// ErrDisabled 配置中未启用 Redis
var ErrDisabled = errors.New("redis is not enabled")

// Client Redis客户端封装
type Client struct {
	*redis.Client
}

// Options 将配置转换为 go-redis 选项
func Options(cfg cfgpkg.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// NewClient 创建Redis客户端并测试连接
func NewClient(ctx context.Context, cfg cfgpkg.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	rdb := redis.NewClient(Options(cfg))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: rdb}, nil
}

// Close 关闭Redis连接
func (c *Client) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Stats 获取连接池统计
func (c *Client) Stats() *redis.PoolStats {
	return c.PoolStats()
}
