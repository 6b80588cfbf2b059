package mixer

import (
	"sync"
	"time"

	"github.com/taoyao-code/elrs-feeder/internal/protocol/crsf"
)

// rowState 单个通道的运行时状态，仅由 Mixer 持有
type rowState struct {
	synced bool
	src    Source
	index  int

	btnLast     int
	toggleOn    bool
	activatedAt time.Time
	rotaryIdx   int

	multiLast  map[int]int
	multiValue int
	multiInit  bool
}

// Option Mixer 配置项
type Option func(*Mixer)

// WithNow 注入时钟（测试使用）
func WithNow(fn func() time.Time) Option {
	return func(m *Mixer) {
		if fn != nil {
			m.now = fn
		}
	}
}

// Mixer 每次 Compute 以最新的轴/按键采样重新计算全部通道
type Mixer struct {
	mu     sync.Mutex
	states []rowState
	last   []int
	now    func() time.Time
}

// New 创建 Mixer
func New(opts ...Option) *Mixer {
	m := &Mixer{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reset 清空全部运行时状态（配置整体替换时调用）
func (m *Mixer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = nil
	m.last = nil
}

// Last 最近一次 Compute 的输出副本
func (m *Mixer) Last() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.last...)
}

// Compute 计算每一行的输出值（µs），并在最后执行 toggle 分组仲裁
func (m *Mixer) Compute(rows []RowConfig, axes []float64, buttons []int) []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.states) != len(rows) {
		states := make([]rowState, len(rows))
		copy(states, m.states)
		m.states = states
	}
	now := m.now()
	cfgs := make([]RowConfig, len(rows))
	out := make([]int, len(rows))
	for i := range rows {
		cfgs[i] = rows[i].Normalize()
		out[i] = m.computeRow(&m.states[i], cfgs[i], axes, buttons, now)
	}
	m.arbitrate(cfgs, out)
	m.last = append(m.last[:0], out...)
	return out
}

func buttonAt(buttons []int, idx int) int {
	if idx >= 0 && idx < len(buttons) && buttons[idx] != 0 {
		return 1
	}
	return 0
}

func axisAt(axes []float64, idx int) float64 {
	if idx >= 0 && idx < len(axes) {
		return axes[idx]
	}
	return 0
}

func (m *Mixer) computeRow(st *rowState, cfg RowConfig, axes []float64, buttons []int, now time.Time) int {
	// 来源或索引变化时重新同步基线，避免产生虚假边沿
	if !st.synced || st.src != cfg.Src || st.index != cfg.Index {
		st.btnLast = buttonAt(buttons, cfg.Index)
		st.multiLast = nil
		st.synced = true
		st.src = cfg.Src
		st.index = cfg.Index
	}
	if !cfg.isToggle() {
		st.toggleOn = false
	}

	switch cfg.Src {
	case SourceAxis:
		return MapAxis(axisAt(axes, cfg.Index), cfg.Invert, cfg.Min, cfg.Center, cfg.Max, cfg.Expo)
	case SourceButton:
		return m.computeButton(st, cfg, buttons, now)
	case SourceMulti:
		return computeMulti(st, cfg, buttons)
	default:
		return cfg.Min
	}
}

func (m *Mixer) computeButton(st *rowState, cfg RowConfig, buttons []int, now time.Time) int {
	v := buttonAt(buttons, cfg.Index)
	rising := st.btnLast == 0 && v == 1
	st.btnLast = v

	switch {
	case cfg.Rotary:
		stops := cfg.RotaryStops
		if stops <= 1 {
			return cfg.Min
		}
		if rising {
			st.rotaryIdx = (st.rotaryIdx + 1) % stops
		}
		if st.rotaryIdx >= stops {
			st.rotaryIdx = 0
		}
		step := float64(cfg.Max-cfg.Min) / float64(stops-1)
		return int(float64(cfg.Min) + float64(st.rotaryIdx)*step)
	case cfg.Toggle:
		if rising {
			st.toggleOn = !st.toggleOn
			if st.toggleOn {
				st.activatedAt = now
			}
		}
		if st.toggleOn != cfg.Invert {
			return cfg.Max
		}
		return cfg.Min
	default:
		if (v == 1) != cfg.Invert {
			return cfg.Max
		}
		return cfg.Min
	}
}

// computeMulti 多按键：最后按下的按键决定输出；同一 tick 多个边沿时取按键号最大者
func computeMulti(st *rowState, cfg RowConfig, buttons []int) int {
	if !st.multiInit {
		st.multiValue = cfg.Min
		if cfg.DefaultButton != nil {
			for _, mb := range cfg.MultiButtons {
				if mb.Button == *cfg.DefaultButton {
					st.multiValue = mb.Value
					break
				}
			}
		}
		st.multiInit = true
	}
	if st.multiLast == nil {
		st.multiLast = make(map[int]int, len(cfg.MultiButtons))
	}

	pressed := -1
	for _, mb := range cfg.MultiButtons {
		cur := buttonAt(buttons, mb.Button)
		last, seen := st.multiLast[mb.Button]
		if !seen {
			last = cur
		}
		if last == 0 && cur == 1 && mb.Button > pressed {
			pressed = mb.Button
			st.multiValue = mb.Value
		}
		st.multiLast[mb.Button] = cur
	}
	return st.multiValue
}

// arbitrate 同一分组内最多保留一个 toggle 处于开启状态：最近开启者胜出，
// 时间相同取行号最小者；其余关闭并输出各自的 min
func (m *Mixer) arbitrate(cfgs []RowConfig, out []int) {
	winners := make(map[int]int)
	for i, cfg := range cfgs {
		if cfg.ToggleGroup == nil || !cfg.isToggle() || !m.states[i].toggleOn {
			continue
		}
		g := *cfg.ToggleGroup
		w, ok := winners[g]
		if !ok || m.states[i].activatedAt.After(m.states[w].activatedAt) {
			winners[g] = i
		}
	}
	for i, cfg := range cfgs {
		if cfg.ToggleGroup == nil || !cfg.isToggle() || !m.states[i].toggleOn {
			continue
		}
		if winners[*cfg.ToggleGroup] == i {
			continue
		}
		m.states[i].toggleOn = false
		out[i] = cfg.Min
	}
}

// ToChannels 将行输出转换为 16 路通道缓冲；缺失行为中位 1500，超出范围限幅
func ToChannels(outputs []int) [crsf.ChannelCount]uint16 {
	var ch [crsf.ChannelCount]uint16
	for i := range ch {
		v := crsf.ChannelMidUS
		if i < len(outputs) {
			v = max(crsf.ChannelMinUS, min(crsf.ChannelMaxUS, outputs[i]))
		}
		ch[i] = uint16(v)
	}
	return ch
}
