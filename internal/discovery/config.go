// Package discovery 负责设备发现与 LUA 参数的分块读取/写入
package discovery

import "time"

// Config 发现与参数读取的时间与上限配置
type Config struct {
	PingInterval      time.Duration
	SettleDelay       time.Duration
	FieldTimeout      time.Duration
	MaxChunks         int
	MaxRetries        int
	MaxReadAttempts   int
	PendingWriteTTL   time.Duration
	DiscoveryCooldown time.Duration
}

// DefaultConfig 与 ELRS LUA 脚本一致的默认值
func DefaultConfig() Config {
	return Config{
		PingInterval:      time.Second,
		SettleDelay:       500 * time.Millisecond,
		FieldTimeout:      100 * time.Millisecond,
		MaxChunks:         30,
		MaxRetries:        3,
		MaxReadAttempts:   50,
		PendingWriteTTL:   5 * time.Second,
		DiscoveryCooldown: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.FieldTimeout <= 0 {
		c.FieldTimeout = d.FieldTimeout
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = d.MaxChunks
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.MaxReadAttempts <= 0 {
		c.MaxReadAttempts = d.MaxReadAttempts
	}
	if c.PendingWriteTTL <= 0 {
		c.PendingWriteTTL = d.PendingWriteTTL
	}
	if c.DiscoveryCooldown <= 0 {
		c.DiscoveryCooldown = d.DiscoveryCooldown
	}
	return c
}
