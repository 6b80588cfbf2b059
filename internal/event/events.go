// Package event 定义链路对外发布的事件及其分发
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taoyao-code/elrs-feeder/internal/params"
	"github.com/taoyao-code/elrs-feeder/internal/protocol/crsf"
)

// Type 事件类型
type Type string

const (
	// TypeTelemetry 链路统计
	TypeTelemetry Type = "link.telemetry"

	// TypeChannels 模块回传的通道值
	TypeChannels Type = "link.channels"

	// TypeSync 手柄定时同步
	TypeSync Type = "link.sync"

	// TypeConnection 串口连接状态变化
	TypeConnection Type = "link.connection"

	// TypeTxStatus TX 模块心跳状态变化
	TypeTxStatus Type = "link.tx_status"

	// TypeDeviceDiscovered 收到 DEVICE_INFO
	TypeDeviceDiscovered Type = "device.discovered"

	// TypeParametersLoaded 加载队列清空
	TypeParametersLoaded Type = "device.parameters_loaded"

	// TypeParametersProgress 参数加载进度
	TypeParametersProgress Type = "device.parameters_progress"

	// TypeFieldUpdated 单个字段更新
	TypeFieldUpdated Type = "device.field_updated"

	// TypeDebug 调试信息
	TypeDebug Type = "debug"
)

// Event 对外事件，按 Type 只填充对应字段
type Event struct {
	ID        string    `json:"event_id"`
	Type      Type      `json:"event_type"`
	Session   string    `json:"session,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Address   byte      `json:"address,omitempty"`

	Telemetry *crsf.LinkStatistics `json:"telemetry,omitempty"`
	Channels  []uint16             `json:"channels,omitempty"`
	Sync      *SyncData            `json:"sync,omitempty"`
	Connected *bool                `json:"connected,omitempty"`
	Device    *params.DeviceInfo   `json:"device,omitempty"`
	Field     *params.Field        `json:"field,omitempty"`
	Progress  *ProgressData        `json:"progress,omitempty"`
	Message   string               `json:"message,omitempty"`
}

// SyncData 定时同步数据（微秒）
type SyncData struct {
	IntervalUS int `json:"interval_us"`
	OffsetUS   int `json:"offset_us"`
}

// ProgressData 参数加载进度
type ProgressData struct {
	Fetched int `json:"fetched"`
	Total   int `json:"total"`
}

// New 创建事件
func New(t Type) *Event {
	return &Event{ID: uuid.NewString(), Type: t, Timestamp: time.Now()}
}

// Decode 解析 JSON 形式的事件（Redis 历史）
func Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &e, nil
}

// NewDebug 创建调试事件
func NewDebug(msg string) *Event {
	e := New(TypeDebug)
	e.Message = msg
	return e
}

// NewConnection 创建连接/TX 状态事件
func NewConnection(t Type, connected bool, msg string) *Event {
	e := New(t)
	e.Connected = &connected
	e.Message = msg
	return e
}

// Emitter 事件输出端
type Emitter interface {
	Emit(e *Event)
}

// EmitterFunc 函数适配器
type EmitterFunc func(e *Event)

func (f EmitterFunc) Emit(e *Event) {
	if f != nil {
		f(e)
	}
}

// Discard 丢弃所有事件
func Discard() Emitter {
	return EmitterFunc(func(*Event) {})
}
