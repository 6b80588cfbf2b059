package link

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/elrs-feeder/internal/discovery"
	"github.com/taoyao-code/elrs-feeder/internal/event"
	"github.com/taoyao-code/elrs-feeder/internal/metrics"
	"github.com/taoyao-code/elrs-feeder/internal/protocol/crsf"
)

var (
	ErrClosed       = errors.New("link closed")
	ErrNotConnected = errors.New("serial not connected")
)

// idleBackoff 读超时（EOF 且无数据）后的让出时间
const idleBackoff = time.Millisecond

// Transport 串口字节流
type Transport = io.ReadWriteCloser

// Opener 打开传输；重连时反复调用
type Opener func(ctx context.Context) (Transport, error)

// Status 链路状态（可跨协程读取）
type Status struct {
	Connected      bool      `json:"connected"`
	TxConnected    bool      `json:"tx_connected"`
	Session        string    `json:"session,omitempty"`
	ConnectedAt    time.Time `json:"connected_at,omitempty"`
	SendIntervalUS int       `json:"send_interval_us"`
	LastLinkStats  time.Time `json:"last_link_stats,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	CommandPending bool      `json:"command_pending"`
	EventsDropped  uint64    `json:"events_dropped"`
	ResyncBytes    uint64    `json:"resync_bytes"`
}

type Option func(*Link)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Link) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(m *metrics.LinkMetrics) Option {
	return func(l *Link) { l.metrics = m }
}

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(l *Link) {
		if now != nil {
			l.now = now
		}
	}
}

type rxResult struct {
	data []byte
	err  error
}

// Link 串口链路。Run 启动唯一的工作协程，它独占传输写入、解码器与发现引擎；
// 读协程只负责阻塞读并把数据交给工作协程。
type Link struct {
	cfg     Config
	open    Opener
	logger  *zap.Logger
	metrics *metrics.LinkMetrics
	now     func() time.Time

	engine  *discovery.Engine
	decoder *crsf.StreamDecoder
	slot    commandSlot
	input   *channelBuffer
	events  *event.Channel
	calls   chan func()

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	runOnce   sync.Once

	statusMu sync.RWMutex
	status   Status

	// 以下字段仅由工作协程访问
	transport   Transport
	rx          chan rxResult
	readerStop  chan struct{}
	session     string
	ticker      *time.Ticker
	interval    time.Duration
	limiter     *rate.Limiter
	lastSync    time.Time
	txConnected bool
	lastTxReset time.Time
	resyncSeen  uint64
}

// New 创建链路；调用 Run 后开始工作
func New(cfg Config, open Opener, opts ...Option) *Link {
	l := &Link{
		cfg:     cfg.withDefaults(),
		open:    open,
		logger:  zap.NewNop(),
		now:     time.Now,
		decoder: crsf.NewStreamDecoder(),
		input:   newChannelBuffer(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.calls = make(chan func(), l.cfg.CommandBuffer)
	l.events = event.NewChannel(l.cfg.EventBuffer, func(t event.Type) {
		l.metrics.EventDropped(string(t))
	})
	l.engine = discovery.NewEngine(l.cfg.Discovery,
		discovery.CommandSenderFunc(l.offerCommand),
		discovery.WithLogger(l.logger.With(zap.String("component", "discovery"))),
		discovery.WithEmitter(event.EmitterFunc(l.emit)),
		discovery.WithObserver(discovery.ObserverFunc(l.metrics.RecordEngineOp)),
	)
	l.interval = l.cfg.SendInterval
	l.status.SendIntervalUS = int(l.interval / time.Microsecond)
	return l
}

// Run 运行工作循环直到 Close 或 ctx 取消；只能调用一次
func (l *Link) Run(ctx context.Context) error {
	started := false
	l.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("link already running")
	}
	defer close(l.done)
	defer l.events.Close()
	defer l.disconnect("link stopped", nil)

	l.limiter = rate.NewLimiter(rate.Every(l.cfg.ReconnectBackoff), 1)
	l.ticker = time.NewTicker(l.interval)
	defer l.ticker.Stop()
	l.metrics.SetSendInterval(int(l.interval / time.Microsecond))

	l.logger.Info("link started",
		zap.Duration("send_interval", l.interval),
		zap.Duration("input_stale_after", l.cfg.InputStaleAfter))

	if l.limiter.Allow() {
		l.connect(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case fn := <-l.calls:
			fn()
		case r := <-l.rx:
			l.handleRx(r)
		case <-l.ticker.C:
			l.tick(ctx, l.now())
		}
	}
}

// Close 协作式停止
func (l *Link) Close() {
	l.closeOnce.Do(func() { close(l.stop) })
}

// Done 工作循环退出后关闭
func (l *Link) Done() <-chan struct{} { return l.done }

// Events 对外事件流；Run 退出后关闭
func (l *Link) Events() <-chan *event.Event { return l.events.C() }

// SendChannels 更新通道值（微秒）；可在任意协程调用
func (l *Link) SendChannels(us []int) {
	l.input.Set(us, l.now())
}

// Status 返回链路状态副本
func (l *Link) Status() Status {
	l.statusMu.RLock()
	s := l.status
	l.statusMu.RUnlock()
	s.CommandPending = l.slot.Pending()
	s.EventsDropped = l.events.Dropped()
	return s
}

// LinkStatsFresh 链路统计是否在超时时间内到达过
func (l *Link) LinkStatsFresh(now time.Time) bool {
	s := l.Status()
	return !s.LastLinkStats.IsZero() && now.Sub(s.LastLinkStats) <= l.cfg.LinkStatsTimeout
}

func (l *Link) updateStatus(fn func(s *Status)) {
	l.statusMu.Lock()
	fn(&l.status)
	l.statusMu.Unlock()
}

// offerCommand 发现引擎的命令出口
func (l *Link) offerCommand(frame []byte) bool {
	if l.transport == nil {
		return false
	}
	if !l.slot.Offer(frame) {
		l.metrics.SlotBusy()
		return false
	}
	return true
}

func (l *Link) emit(e *event.Event) {
	e.Session = l.session
	l.events.Emit(e)
}

func (l *Link) tick(ctx context.Context, now time.Time) {
	l.checkTxHeartbeat(now)
	if l.transport == nil {
		if l.limiter.Allow() {
			l.connect(ctx)
		}
		return
	}
	l.engine.Poll(now)
	l.transmit(now)
}

// transmit 每个节拍最多写一帧：待发命令优先，否则发送通道帧
func (l *Link) transmit(now time.Time) {
	if frame := l.slot.Take(); frame != nil {
		l.write(frame, "command")
		return
	}
	values, live := l.input.Snapshot(now, l.cfg.InputStaleAfter)
	if !live {
		l.metrics.Inhibited()
		return
	}
	l.write(crsf.BuildChannels(values), "channels")
}

func (l *Link) write(frame []byte, kind string) {
	if l.transport == nil {
		return
	}
	if _, err := l.transport.Write(frame); err != nil {
		l.disconnect("serial write failed", err)
		return
	}
	l.metrics.FrameSent(kind)
}

func (l *Link) handleRx(r rxResult) {
	if r.err != nil {
		l.disconnect("serial read failed", r.err)
		return
	}
	now := l.now()
	l.metrics.AddBytesReceived(len(r.data))
	frames := l.decoder.Feed(r.data)
	if n := l.decoder.Resynced(); n != l.resyncSeen {
		l.metrics.AddResync(int(n - l.resyncSeen))
		l.resyncSeen = n
		l.updateStatus(func(s *Status) { s.ResyncBytes = n })
	}
	for i := range frames {
		l.dispatch(now, frames[i])
	}
}

func (l *Link) dispatch(now time.Time, f crsf.Frame) {
	l.metrics.FrameReceived(crsf.TypeName(f.Type))
	switch f.Type {
	case crsf.FrameTypeLinkStatistics:
		stats, err := crsf.ParseLinkStatistics(f.Payload)
		if err != nil {
			l.logger.Debug("link statistics dropped", zap.Error(err))
			break
		}
		l.updateStatus(func(s *Status) { s.LastLinkStats = now })
		ev := event.New(event.TypeTelemetry)
		ev.Telemetry = &stats
		l.emit(ev)
	case crsf.FrameTypeRCChannels:
		if len(f.Payload) < crsf.ChannelsPayloadLen {
			break
		}
		ch := crsf.DecodeChannels(f.Payload)
		ev := event.New(event.TypeChannels)
		ev.Channels = append([]uint16(nil), ch[:]...)
		l.emit(ev)
	case crsf.FrameTypeHandset:
		l.handleTimingSync(now, f.Payload)
	}

	l.engine.HandleFrame(now, f)

	if f.Type == crsf.FrameTypeDeviceInfo || f.Type == crsf.FrameTypeParameterEntry {
		loaded := 0
		for _, d := range l.engine.Devices() {
			if d.Loaded {
				loaded++
			}
		}
		l.metrics.SetDevicesLoaded(loaded)
	}
}

// handleTimingSync 按 TX 节拍调整发送间隔，并作为 TX 心跳
func (l *Link) handleTimingSync(now time.Time, payload []byte) {
	ts, err := crsf.ParseTimingSync(payload)
	if err != nil {
		return
	}
	us, ok := crsf.ClampInterval(ts.IntervalUS())
	if !ok {
		return
	}
	l.lastSync = now
	if !l.txConnected {
		l.txConnected = true
		msg := "TX connected"
		if d, ok := l.engine.Device(ts.Source); ok && d.Name != "" {
			msg = "TX: " + d.Name
		}
		l.metrics.SetTxConnected(true)
		l.updateStatus(func(s *Status) { s.TxConnected = true })
		l.logger.Info("tx heartbeat acquired", zap.Int("interval_us", us))
		l.emit(event.NewConnection(event.TypeTxStatus, true, msg))
	}
	if d := time.Duration(us) * time.Microsecond; d != l.interval {
		l.logger.Debug("send interval retuned",
			zap.Duration("from", l.interval), zap.Duration("to", d))
		l.interval = d
		if l.ticker != nil {
			l.ticker.Reset(d)
		}
		l.metrics.SetSendInterval(us)
		l.updateStatus(func(s *Status) { s.SendIntervalUS = us })
	}
	ev := event.New(event.TypeSync)
	ev.Address = ts.Source
	ev.Sync = &event.SyncData{IntervalUS: us, OffsetUS: ts.OffsetUS()}
	l.emit(ev)
}

func (l *Link) checkTxHeartbeat(now time.Time) {
	if !l.txConnected || now.Sub(l.lastSync) <= l.cfg.TxHeartbeatTimeout {
		return
	}
	l.txConnected = false
	l.metrics.SetTxConnected(false)
	l.updateStatus(func(s *Status) { s.TxConnected = false })
	l.logger.Warn("tx heartbeat lost", zap.Duration("timeout", l.cfg.TxHeartbeatTimeout))
	l.emit(event.NewConnection(event.TypeTxStatus, false, "TX disconnected"))
	if now.Sub(l.lastTxReset) > l.cfg.TxResetCooldown {
		l.engine.ResetTxDisconnected()
		l.lastTxReset = now
	}
}

func (l *Link) connect(ctx context.Context) {
	if l.open == nil {
		return
	}
	t, err := l.open(ctx)
	l.metrics.ConnectAttempt(err == nil)
	if err != nil {
		l.logger.Warn("serial open failed", zap.Error(err))
		l.updateStatus(func(s *Status) { s.LastError = err.Error() })
		return
	}
	l.transport = t
	l.session = uuid.NewString()
	l.decoder.Reset()
	l.slot.Clear()
	l.rx = make(chan rxResult, 16)
	l.readerStop = make(chan struct{})
	go l.readLoop(t, l.rx, l.readerStop)

	now := l.now()
	l.metrics.SetConnected(true)
	l.updateStatus(func(s *Status) {
		s.Connected = true
		s.Session = l.session
		s.ConnectedAt = now
		s.LastError = ""
	})
	l.logger.Info("serial connected", zap.String("session", l.session))
	l.emit(event.NewConnection(event.TypeConnection, true, "serial connected"))
}

// disconnect 关闭传输并重置发现状态；重连由节拍按退避时间触发
func (l *Link) disconnect(reason string, err error) {
	if l.transport == nil {
		return
	}
	close(l.readerStop)
	_ = l.transport.Close()
	l.transport = nil
	l.rx = nil
	l.readerStop = nil
	l.slot.Clear()
	l.engine.OnDisconnect()

	l.metrics.SetConnected(false)
	l.updateStatus(func(s *Status) {
		s.Connected = false
		s.Session = ""
		if err != nil {
			s.LastError = err.Error()
		}
	})
	fields := []zap.Field{zap.String("session", l.session), zap.String("reason", reason)}
	if err != nil {
		l.logger.Warn("serial disconnected", append(fields, zap.Error(err))...)
	} else {
		l.logger.Info("serial disconnected", fields...)
	}
	l.emit(event.NewConnection(event.TypeConnection, false, reason))
	l.session = ""
}

// readLoop 阻塞读串口；读超时（EOF 且无数据）不视为错误
func (l *Link) readLoop(t Transport, out chan<- rxResult, stop <-chan struct{}) {
	buf := make([]byte, l.cfg.ReadBufferSize)
	for {
		n, err := t.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case out <- rxResult{data: chunk}:
			case <-stop:
				return
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			select {
			case <-stop:
				return
			default:
			}
			if n == 0 {
				time.Sleep(idleBackoff)
			}
			continue
		}
		select {
		case out <- rxResult{err: err}:
		case <-stop:
		}
		return
	}
}
