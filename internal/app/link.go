package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/elrs-feeder/internal/config"
	"github.com/taoyao-code/elrs-feeder/internal/discovery"
	"github.com/taoyao-code/elrs-feeder/internal/link"
	"github.com/taoyao-code/elrs-feeder/internal/metrics"
	"github.com/taoyao-code/elrs-feeder/internal/serialport"
)

// LinkConfig 将配置文件中的 link/discovery 段转换为链路配置
func LinkConfig(cfg *cfgpkg.Config) link.Config {
	lc := link.DefaultConfig()
	lc.SendInterval = cfg.Link.SendInterval
	lc.InputStaleAfter = cfg.Link.InputStaleAfter
	lc.TxHeartbeatTimeout = cfg.Link.TxHeartbeatTimeout
	lc.TxResetCooldown = cfg.Link.TxResetCooldown
	lc.LinkStatsTimeout = cfg.Link.LinkStatsTimeout
	lc.ReconnectBackoff = cfg.Link.ReconnectBackoff
	lc.EventBuffer = cfg.Link.EventBuffer
	lc.CommandBuffer = cfg.Link.CommandBuffer
	lc.Discovery = discovery.Config{
		PingInterval:      cfg.Discovery.PingInterval,
		SettleDelay:       cfg.Discovery.SettleDelay,
		FieldTimeout:      cfg.Discovery.FieldTimeout,
		MaxChunks:         cfg.Discovery.MaxChunks,
		MaxRetries:        cfg.Discovery.MaxRetries,
		MaxReadAttempts:   cfg.Discovery.MaxReadAttempts,
		PendingWriteTTL:   cfg.Discovery.PendingWriteTTL,
		DiscoveryCooldown: cfg.Discovery.DiscoveryCooldown,
	}
	return lc
}

// SerialOpener 按端口与波特率构造链路使用的串口打开函数；空值沿用配置文件
func SerialOpener(base cfgpkg.SerialConfig) func(port string, baud int) link.Opener {
	return func(port string, baud int) link.Opener {
		sc := serialport.DefaultConfig(base.Port)
		if base.Baud > 0 {
			sc.Baud = base.Baud
		}
		if base.ReadTimeout > 0 {
			sc.ReadTimeout = base.ReadTimeout
		}
		if port != "" {
			sc.Device = port
		}
		if baud > 0 {
			sc.Baud = baud
		}
		open := serialport.Opener(sc)
		return func(ctx context.Context) (link.Transport, error) {
			return open(ctx)
		}
	}
}

// NewLink 创建串口链路
func NewLink(cfg *cfgpkg.Config, m *metrics.LinkMetrics, logger *zap.Logger) *link.Link {
	open := SerialOpener(cfg.Serial)("", 0)
	return link.New(LinkConfig(cfg), open,
		link.WithLogger(logger.With(zap.String("component", "link"))),
		link.WithMetrics(m),
	)
}
