// Package health 汇总串口链路与可选 Redis 的健康状态
package health

import (
	"context"
	"time"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"  // 通道帧仍在发送，但遥测/发现/事件输出受影响
	StatusUnhealthy Status = "unhealthy" // 串口不可用，无法发送通道帧
)

// rank 用于取最差状态
func (s Status) rank() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// CheckResult 单项检查结果
type CheckResult struct {
	Status  Status                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Latency time.Duration          `json:"latency"`
}

// Checker 健康检查器接口
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// LinkReady 就绪规则：串口已连接。/readyz 与 /health/ready 共用
func LinkReady(probe LinkProbe) func() bool {
	return func() bool { return probe.Status().Connected }
}
