package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
	delay  time.Duration
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return CheckResult{Status: StatusDegraded, Message: ctx.Err().Error()}
		}
	}
	return CheckResult{Status: m.status, Message: "mock", Latency: time.Millisecond}
}

func TestAggregator_OverallStatus(t *testing.T) {
	cases := []struct {
		name string
		link Status
		rds  Status
		want Status
	}{
		{"全部健康", StatusHealthy, StatusHealthy, StatusHealthy},
		{"Redis 降级", StatusHealthy, StatusDegraded, StatusDegraded},
		{"串口断开", StatusUnhealthy, StatusDegraded, StatusUnhealthy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := NewAggregator(nil, &mockChecker{name: "link", status: tc.link}, &mockChecker{name: "redis", status: tc.rds})
			report := agg.CheckAll(context.Background())
			assert.Equal(t, tc.want, report.Status)
			assert.Len(t, report.Checks, 2)
			assert.True(t, report.Ready)
		})
	}
}

func TestAggregator_ReadyFollowsRule(t *testing.T) {
	connected := false
	agg := NewAggregator(func() bool { return connected }, &mockChecker{name: "link", status: StatusDegraded})
	assert.False(t, agg.Ready())
	assert.False(t, agg.CheckAll(context.Background()).Ready)

	connected = true
	assert.True(t, agg.Ready())
}

func TestAggregator_AddCheckerAndTimeout(t *testing.T) {
	agg := NewAggregator(nil, &mockChecker{name: "link", status: StatusHealthy})
	agg.timeout = 20 * time.Millisecond
	agg.AddChecker(&mockChecker{name: "redis", status: StatusHealthy, delay: time.Second})

	start := time.Now()
	report := agg.CheckAll(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Len(t, report.Checks, 2)
	assert.Equal(t, StatusDegraded, report.Checks["redis"].Status)
	assert.Equal(t, StatusDegraded, report.Status)
}
