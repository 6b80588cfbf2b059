// Package mixer 将摇杆轴/按键采样转换为 16 路通道输出
package mixer

import (
	"fmt"
	"strings"
)

// Source 通道输入来源
type Source string

const (
	SourceNone   Source = "none"
	SourceAxis   Source = "axis"
	SourceButton Source = "button"
	SourceMulti  Source = "multi"
)

// 通道配置默认值与限制
const (
	DefaultMin         = 1000
	DefaultCenter      = 1500
	DefaultMax         = 2000
	DefaultRotaryStops = 3
	MinRotaryStops     = 3
	MaxRotaryStops     = 6
	MaxToggleGroup     = 7
	MinExpo            = 1.0
	MaxExpo            = 5.0
	MaxInputIndex      = 63
)

var defaultNames = []string{"Ail", "Elev", "Thr", "Rudd", "Arm", "Mode"}

// MultiButton 多按键模式中单个按键对应的输出值
type MultiButton struct {
	Button int `mapstructure:"button" yaml:"button" json:"button"`
	Value  int `mapstructure:"value" yaml:"value" json:"value"`
}

// RowConfig 单个通道的配置（由外部配置层持有，每次计算只读）
type RowConfig struct {
	Name          string        `mapstructure:"name" yaml:"name" json:"name"`
	Src           Source        `mapstructure:"src" yaml:"src" json:"src"`
	Index         int           `mapstructure:"idx" yaml:"idx" json:"idx"`
	Invert        bool          `mapstructure:"inv" yaml:"inv" json:"inv"`
	Min           int           `mapstructure:"min" yaml:"min" json:"min"`
	Center        int           `mapstructure:"center" yaml:"center" json:"center"`
	Max           int           `mapstructure:"max" yaml:"max" json:"max"`
	Expo          float64       `mapstructure:"expo" yaml:"expo" json:"expo"`
	Toggle        bool          `mapstructure:"toggle" yaml:"toggle" json:"toggle"`
	ToggleGroup   *int          `mapstructure:"toggle_group" yaml:"toggle_group,omitempty" json:"toggle_group,omitempty"`
	Rotary        bool          `mapstructure:"rotary" yaml:"rotary" json:"rotary"`
	RotaryStops   int           `mapstructure:"rotary_stops" yaml:"rotary_stops" json:"rotary_stops"`
	MultiButtons  []MultiButton `mapstructure:"multi_buttons" yaml:"multi_buttons,omitempty" json:"multi_buttons,omitempty"`
	DefaultButton *int          `mapstructure:"default_button" yaml:"default_button,omitempty" json:"default_button,omitempty"`
}

// Normalize 返回补全默认值并限幅后的副本
// 旧配置中的 "const" 等同于 none；toggle 与 rotary 同时开启时 rotary 优先
func (c RowConfig) Normalize() RowConfig {
	switch Source(strings.ToLower(strings.TrimSpace(string(c.Src)))) {
	case SourceAxis:
		c.Src = SourceAxis
	case SourceButton:
		c.Src = SourceButton
	case SourceMulti:
		c.Src = SourceMulti
	default:
		c.Src = SourceNone
	}
	if c.Min == 0 && c.Center == 0 && c.Max == 0 {
		c.Min, c.Center, c.Max = DefaultMin, DefaultCenter, DefaultMax
	}
	if c.Index < 0 {
		c.Index = 0
	}
	if c.Index > MaxInputIndex {
		c.Index = MaxInputIndex
	}
	if c.Expo < MinExpo {
		c.Expo = MinExpo
	}
	if c.Expo > MaxExpo {
		c.Expo = MaxExpo
	}
	if c.RotaryStops == 0 {
		c.RotaryStops = DefaultRotaryStops
	}
	if c.RotaryStops < MinRotaryStops {
		c.RotaryStops = MinRotaryStops
	}
	if c.RotaryStops > MaxRotaryStops {
		c.RotaryStops = MaxRotaryStops
	}
	if c.ToggleGroup != nil && (*c.ToggleGroup < 0 || *c.ToggleGroup > MaxToggleGroup) {
		c.ToggleGroup = nil
	}
	if c.Rotary {
		c.Toggle = false
	}
	return c
}

// Validate 检查明显错误的配置（供 API 写入前使用）
func (c RowConfig) Validate() error {
	if c.Min > c.Max {
		return fmt.Errorf("min %d greater than max %d", c.Min, c.Max)
	}
	if c.Center < c.Min || c.Center > c.Max {
		return fmt.Errorf("center %d outside [%d,%d]", c.Center, c.Min, c.Max)
	}
	for _, mb := range c.MultiButtons {
		if mb.Button < 0 || mb.Button > MaxInputIndex {
			return fmt.Errorf("multi button index %d out of range", mb.Button)
		}
	}
	return nil
}

// isToggle 按键来源且工作在 toggle 模式（参与分组仲裁）
func (c RowConfig) isToggle() bool {
	return c.Src == SourceButton && c.Toggle && !c.Rotary
}

// DefaultRows 16 路默认配置：全部未映射，前 6 路带常用名称
func DefaultRows() []RowConfig {
	rows := make([]RowConfig, 16)
	for i := range rows {
		name := ""
		if i < len(defaultNames) {
			name = defaultNames[i]
		}
		rows[i] = RowConfig{
			Name:        name,
			Src:         SourceNone,
			Min:         DefaultMin,
			Center:      DefaultCenter,
			Max:         DefaultMax,
			Expo:        MinExpo,
			RotaryStops: DefaultRotaryStops,
		}
	}
	return rows
}
