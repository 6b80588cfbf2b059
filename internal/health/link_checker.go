package health

import (
	"context"
	"time"

	"github.com/taoyao-code/elrs-feeder/internal/link"
)

// LinkProbe 链路状态来源
type LinkProbe interface {
	Status() link.Status
	LinkStatsFresh(now time.Time) bool
}

// LinkChecker 串口链路健康检查器
type LinkChecker struct {
	probe LinkProbe
	now   func() time.Time
}

// NewLinkChecker 创建链路健康检查器
func NewLinkChecker(probe LinkProbe) *LinkChecker {
	return &LinkChecker{probe: probe, now: time.Now}
}

// Name 返回检查器名称
func (c *LinkChecker) Name() string {
	return "link"
}

// Check 串口断开为不健康；发射端无心跳或遥测超时为降级
func (c *LinkChecker) Check(ctx context.Context) CheckResult {
	start := c.now()
	st := c.probe.Status()

	details := map[string]interface{}{
		"connected":        st.Connected,
		"tx_connected":     st.TxConnected,
		"session":          st.Session,
		"send_interval_us": st.SendIntervalUS,
		"events_dropped":   st.EventsDropped,
		"resync_bytes":     st.ResyncBytes,
	}
	if st.LastError != "" {
		details["last_error"] = st.LastError
	}

	status := StatusHealthy
	message := "ok"
	switch {
	case !st.Connected:
		status = StatusUnhealthy
		message = "serial port not connected"
	case !st.TxConnected:
		status = StatusDegraded
		message = "no timing sync from transmitter"
	case !c.probe.LinkStatsFresh(start):
		status = StatusDegraded
		message = "link statistics stale"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: c.now().Sub(start),
	}
}
