package health

import (
	"context"
	"sync"
	"time"
)

// defaultCheckTimeout 单次汇总的超时；Redis 不可达时不拖住 HTTP 请求
const defaultCheckTimeout = 2 * time.Second

// Report /health 的响应体
type Report struct {
	Status    Status                 `json:"status"`
	Ready     bool                   `json:"ready"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Aggregator 并发执行各检查器并给出总体状态
type Aggregator struct {
	mu       sync.RWMutex
	checkers []Checker
	ready    func() bool
	timeout  time.Duration
	now      func() time.Time
}

// NewAggregator 创建聚合器；ready 为就绪规则（nil 表示始终就绪）
func NewAggregator(ready func() bool, checkers ...Checker) *Aggregator {
	return &Aggregator{
		checkers: checkers,
		ready:    ready,
		timeout:  defaultCheckTimeout,
		now:      time.Now,
	}
}

// AddChecker 添加检查器（Redis 连接成功后追加）
func (a *Aggregator) AddChecker(checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, checker)
}

// Ready 是否可以服务：与 /readyz 相同的规则
func (a *Aggregator) Ready() bool {
	return a.ready == nil || a.ready()
}

// CheckAll 并发执行所有检查，总体状态取最差的一项
func (a *Aggregator) CheckAll(ctx context.Context) Report {
	a.mu.RLock()
	checkers := append([]Checker(nil), a.checkers...)
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make(map[string]CheckResult, len(checkers))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			res := c.Check(ctx)
			mu.Lock()
			results[c.Name()] = res
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	overall := StatusHealthy
	for _, r := range results {
		if r.Status.rank() > overall.rank() {
			overall = r.Status
		}
	}
	return Report{
		Status:    overall,
		Ready:     a.Ready(),
		Timestamp: a.now(),
		Checks:    results,
	}
}
