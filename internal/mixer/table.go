package mixer

import (
	"fmt"
	"sync"
)

// Table 持有当前通道配置与混控状态，可被 API 并发读写
type Table struct {
	mu    sync.RWMutex
	rows  []RowConfig
	mixer *Mixer
}

// NewTable 以给定行创建；rows 为空时使用 DefaultRows
func NewTable(rows []RowConfig, opts ...Option) *Table {
	if len(rows) == 0 {
		rows = DefaultRows()
	}
	t := &Table{mixer: New(opts...)}
	t.rows = normalizeAll(rows)
	return t
}

func normalizeAll(rows []RowConfig) []RowConfig {
	out := make([]RowConfig, len(rows))
	for i, r := range rows {
		out[i] = r.Normalize()
	}
	return out
}

// Rows 当前配置副本
func (t *Table) Rows() []RowConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]RowConfig(nil), t.rows...)
}

// Replace 校验后整体替换配置，并清空 toggle/rotary 状态
func (t *Table) Replace(rows []RowConfig) error {
	if len(rows) == 0 || len(rows) > 16 {
		return fmt.Errorf("channel rows: need 1..16 rows, got %d", len(rows))
	}
	next := normalizeAll(rows)
	for i, r := range next {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("channel row %d: %w", i, err)
		}
	}
	t.mu.Lock()
	t.rows = next
	t.mu.Unlock()
	t.mixer.Reset()
	return nil
}

// Compute 用当前配置计算一次输出
func (t *Table) Compute(axes []float64, buttons []int) []int {
	t.mu.RLock()
	rows := t.rows
	t.mu.RUnlock()
	return t.mixer.Compute(rows, axes, buttons)
}

// Last 最近一次输出
func (t *Table) Last() []int {
	return t.mixer.Last()
}
