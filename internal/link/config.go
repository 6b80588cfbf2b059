// Package link 串口链路：接收解帧、定时发送通道帧、单槽命令与设备发现
package link

import (
	"time"

	"github.com/taoyao-code/elrs-feeder/internal/discovery"
)

// Config 链路配置
type Config struct {
	SendInterval       time.Duration // 默认 4ms（250Hz），可被定时同步帧调整
	InputStaleAfter    time.Duration // 超过该时长无通道输入则停发通道帧
	TxHeartbeatTimeout time.Duration // 超过该时长无定时同步视为 TX 断开
	TxResetCooldown    time.Duration // TX 断开后重置发现状态的最小间隔
	LinkStatsTimeout   time.Duration // 链路统计过期阈值（健康检查）
	ReconnectBackoff   time.Duration
	EventBuffer        int
	CommandBuffer      int
	ReadBufferSize     int
	Discovery          discovery.Config
}

func DefaultConfig() Config {
	return Config{
		SendInterval:       4 * time.Millisecond,
		InputStaleAfter:    time.Second,
		TxHeartbeatTimeout: 2 * time.Second,
		TxResetCooldown:    time.Second,
		LinkStatsTimeout:   5 * time.Second,
		ReconnectBackoff:   500 * time.Millisecond,
		EventBuffer:        1024,
		CommandBuffer:      64,
		ReadBufferSize:     256,
		Discovery:          discovery.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SendInterval <= 0 {
		c.SendInterval = d.SendInterval
	}
	if c.InputStaleAfter <= 0 {
		c.InputStaleAfter = d.InputStaleAfter
	}
	if c.TxHeartbeatTimeout <= 0 {
		c.TxHeartbeatTimeout = d.TxHeartbeatTimeout
	}
	if c.TxResetCooldown <= 0 {
		c.TxResetCooldown = d.TxResetCooldown
	}
	if c.LinkStatsTimeout <= 0 {
		c.LinkStatsTimeout = d.LinkStatsTimeout
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = d.ReconnectBackoff
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	if c.CommandBuffer <= 0 {
		c.CommandBuffer = d.CommandBuffer
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	return c
}
