package event

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Sink 事件消费端
type Sink interface {
	Name() string
	Handle(ctx context.Context, e *Event) error
}

// Channel 有界事件通道：满时丢弃并计数，发布方永不阻塞
type Channel struct {
	ch      chan *Event
	dropped atomic.Uint64
	onDrop  func(t Type)
}

// NewChannel 创建有界通道；onDrop 可为 nil
func NewChannel(size int, onDrop func(t Type)) *Channel {
	if size <= 0 {
		size = 256
	}
	return &Channel{ch: make(chan *Event, size), onDrop: onDrop}
}

// Emit 非阻塞投递
func (c *Channel) Emit(e *Event) {
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
		if c.onDrop != nil {
			c.onDrop(e.Type)
		}
	}
}

// C 消费端
func (c *Channel) C() <-chan *Event { return c.ch }

// Close 关闭通道；仅由唯一的发布方在停止发布后调用
func (c *Channel) Close() { close(c.ch) }

// Dropped 累计丢弃数
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

// Dispatcher 将事件依次分发给各 Sink
type Dispatcher struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewDispatcher(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Run 消费 src 直到 ctx 取消或 src 关闭
func (d *Dispatcher) Run(ctx context.Context, src <-chan *Event) {
	d.logger.Info("event dispatcher started", zap.Int("sinks", len(d.sinks)))
	defer d.logger.Info("event dispatcher stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-src:
			if !ok {
				return
			}
			d.Dispatch(ctx, e)
		}
	}
}

// Dispatch 同步分发单个事件；单个 Sink 失败不影响其他 Sink
func (d *Dispatcher) Dispatch(ctx context.Context, e *Event) {
	for _, s := range d.sinks {
		if err := s.Handle(ctx, e); err != nil {
			d.logger.Warn("event sink failed",
				zap.String("sink", s.Name()),
				zap.String("event_id", e.ID),
				zap.String("event_type", string(e.Type)),
				zap.Error(err))
		}
	}
}
