package discovery

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/elrs-feeder/internal/event"
	"github.com/taoyao-code/elrs-feeder/internal/params"
	"github.com/taoyao-code/elrs-feeder/internal/protocol/crsf"
)

var (
	ErrUnknownDevice   = errors.New("unknown device")
	ErrNoParameters    = errors.New("device reports no parameters")
	ErrCommandBusy     = errors.New("command slot busy")
	ErrChunkCorruption = errors.New("chunk corruption")
	ErrMalformedEntry  = errors.New("malformed parameter entry")
)

// transmitterAddrs 按 ping 顺序排列的 TX 地址
var transmitterAddrs = [...]byte{crsf.AddressTransmitter, crsf.AddressRadio}

// readBackDelay 写入后等待模块应用再读回
const readBackDelay = 200 * time.Millisecond

func isTransmitter(addr byte) bool { return crsf.IsTransmitterAddress(addr) }

func sibling(addr byte) byte {
	if addr == crsf.AddressTransmitter {
		return crsf.AddressRadio
	}
	return crsf.AddressTransmitter
}

// CommandSender 单槽命令发送；槽位已占用时返回 false
type CommandSender interface {
	SendCommand(frame []byte) bool
}

type CommandSenderFunc func(frame []byte) bool

func (f CommandSenderFunc) SendCommand(frame []byte) bool { return f(frame) }

// Option 引擎配置项
type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		if observer != nil {
			e.observer = observer
		}
	}
}

func WithEmitter(emitter event.Emitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

// Engine 设备发现与参数状态机
// 非并发安全：只能由链路工作协程调用
type Engine struct {
	cfg      Config
	sender   CommandSender
	emitter  event.Emitter
	logger   *zap.Logger
	observer Observer

	devices       map[byte]*Device
	currentDevice byte

	// 发现
	triggered bool
	firstRx   time.Time
	awaiting  map[byte]bool
	pinged    map[byte]bool
	pingQueue []byte
	lastPing  time.Time

	// 参数加载（栈顶为切片末尾）
	loadQ              []byte
	fieldChunk         int
	fieldData          []byte
	expectChunksRemain int
	fieldDeadline      time.Time
	readAttempts       int
	retries            map[byte]int

	pending *PendingWrites
}

// NewEngine 创建引擎
func NewEngine(cfg Config, sender CommandSender, opts ...Option) *Engine {
	e := &Engine{
		cfg:                cfg.withDefaults(),
		sender:             sender,
		emitter:            event.Discard(),
		logger:             zap.NewNop(),
		observer:           NopObserver(),
		devices:            make(map[byte]*Device),
		currentDevice:      crsf.AddressTransmitter,
		awaiting:           make(map[byte]bool),
		pinged:             make(map[byte]bool),
		expectChunksRemain: -1,
		retries:            make(map[byte]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pending = NewPendingWrites(e.cfg.PendingWriteTTL, e.observer)
	return e
}

// HandleFrame 处理一个已校验的入站帧
func (e *Engine) HandleFrame(now time.Time, f crsf.Frame) {
	if e.firstRx.IsZero() {
		e.firstRx = now
		e.logger.Debug("first frame received, waiting before discovery",
			zap.Duration("settle_delay", e.cfg.SettleDelay))
	}
	if !e.triggered {
		if src, ok := f.Source(); ok && isTransmitter(src) {
			e.trigger(src, true)
		} else if isTransmitter(f.Address) {
			e.trigger(f.Address, false)
		}
	}

	switch f.Type {
	case crsf.FrameTypeDeviceInfo:
		e.handleDeviceInfo(now, f.Payload)
	case crsf.FrameTypeParameterEntry:
		if err := e.handleParameterEntry(now, f.Payload); err != nil {
			e.logger.Warn("parameter entry dropped", zap.Error(err))
		}
	}
}

// trigger 每个连接周期只触发一次：开始向两个 TX 地址 ping
func (e *Engine) trigger(src byte, lock bool) {
	e.triggered = true
	if lock {
		e.currentDevice = src
	}
	for _, addr := range transmitterAddrs {
		e.awaiting[addr] = true
	}
	e.lastPing = time.Time{}
	e.debug("discovery triggered", zap.String("src", hexAddr(src)))
}

// Poll 周期调用：发送 ping 与参数读请求
func (e *Engine) Poll(now time.Time) {
	e.pollPings(now)
	e.pollFields(now)
	if e.pending.Len() > 0 {
		e.pending.Sweep(now)
	}
}

func (e *Engine) settled(now time.Time) bool {
	return e.firstRx.IsZero() || now.Sub(e.firstRx) >= e.cfg.SettleDelay
}

func (e *Engine) pollPings(now time.Time) {
	if len(e.awaiting) == 0 || !e.settled(now) {
		return
	}
	if len(e.pingQueue) == 0 && (e.lastPing.IsZero() || now.Sub(e.lastPing) >= e.cfg.PingInterval) {
		for _, addr := range transmitterAddrs {
			if e.awaiting[addr] {
				e.pingQueue = append(e.pingQueue, addr)
			}
		}
		e.lastPing = now
	}
	// 单槽：每次最多发送一个 ping
	for len(e.pingQueue) > 0 {
		addr := e.pingQueue[0]
		if !e.awaiting[addr] {
			e.pingQueue = e.pingQueue[1:]
			continue
		}
		if !e.sender.SendCommand(crsf.BuildPing(addr)) {
			return
		}
		e.pingQueue = e.pingQueue[1:]
		e.pinged[addr] = true
		e.observer.Record("ping", "sent")
		e.logger.Debug("device ping sent", zap.String("target", hexAddr(addr)))
		return
	}
}

func (e *Engine) pollFields(now time.Time) {
	if len(e.loadQ) == 0 || now.Before(e.fieldDeadline) {
		return
	}
	dev := e.targetDevice()
	if dev == nil {
		return
	}
	fid := e.loadQ[len(e.loadQ)-1]
	if e.readAttempts >= e.cfg.MaxReadAttempts {
		e.logger.Warn("field read attempts exhausted, skipping",
			zap.Uint8("field", fid), zap.Int("attempts", e.readAttempts))
		e.abortField(dev.Address, fid, "timeout")
		return
	}
	if !e.sender.SendCommand(crsf.BuildParameterRead(dev.Address, fid, byte(e.fieldChunk))) {
		return
	}
	e.readAttempts++
	e.fieldDeadline = now.Add(e.cfg.FieldTimeout)
	e.observer.Record("param_read", "sent")
	e.logger.Debug("parameter read requested",
		zap.String("device", hexAddr(dev.Address)),
		zap.Uint8("field", fid),
		zap.Int("chunk", e.fieldChunk),
		zap.Int("queue", len(e.loadQ)))
}

// targetDevice 当前锁定的设备，否则第一个已发现的 TX
func (e *Engine) targetDevice() *Device {
	if d, ok := e.devices[e.currentDevice]; ok {
		return d
	}
	for _, addr := range transmitterAddrs {
		if d, ok := e.devices[addr]; ok {
			return d
		}
	}
	return nil
}

func (e *Engine) handleDeviceInfo(now time.Time, payload []byte) {
	info, err := params.ParseDeviceInfo(payload)
	if err != nil {
		e.observer.Record("device_info", "malformed")
		e.logger.Warn("device info parse failed", zap.Error(err))
		return
	}
	src := info.Address
	dev, existed := e.devices[src]
	changed := false
	if existed {
		changed = dev.Name != info.Name || (info.ParamCount != 0 && info.ParamCount != dev.ParamCount)
		dev.Destination = info.Destination
		dev.Name = info.Name
		dev.Serial = info.Serial
		dev.HWVersion = info.HWVersion
		dev.SWVersion = info.SWVersion
		dev.ProtocolVersion = info.ProtocolVersion
		if info.ParamCount != 0 && info.ParamCount != dev.ParamCount {
			dev.ParamCount = info.ParamCount
		}
	} else {
		dev = newDevice(info, e.cfg.DiscoveryCooldown)
		e.devices[src] = dev
	}
	e.observer.Record("device_info", "ok")
	e.logger.Info("device info received",
		zap.String("address", hexAddr(src)),
		zap.String("name", dev.Name),
		zap.String("sw", dev.SWVersion),
		zap.Int("params", dev.ParamCount))

	switch {
	case !isTransmitter(src):
		e.debug("device is not a transmitter, parameters not loaded", zap.String("address", hexAddr(src)))
	case dev.ParamCount > 0 && len(e.loadQ) == 0 && !dev.Loaded:
		e.loadQ = descendingQueue(dev.ParamCount)
		e.currentDevice = src
		e.debug("parameter load started", zap.String("address", hexAddr(src)), zap.Int("params", dev.ParamCount))
	case dev.Loaded:
		e.logger.Debug("device already loaded", zap.String("address", hexAddr(src)))
	case len(e.loadQ) > 0:
		e.logger.Debug("load queue already active", zap.Int("queue", len(e.loadQ)))
	}
	e.resetFieldState()

	emit := func() { e.emitDevice(event.TypeDeviceDiscovered, dev) }
	if (existed && changed) || dev.discoveryEmit.AllowN(now, 1) {
		emit()
	}

	delete(e.awaiting, src)
	if isTransmitter(src) {
		delete(e.awaiting, sibling(src))
	}
}

func (e *Engine) handleParameterEntry(now time.Time, payload []byte) error {
	if len(payload) < 4 {
		e.observer.Record("param_entry", "malformed")
		return fmt.Errorf("%w: %d bytes", ErrMalformedEntry, len(payload))
	}
	src, fid, chunksRemain := payload[1], payload[2], int(payload[3])
	data := payload[4:]

	// 非 TX 或非栈顶字段的响应视为过期，静默丢弃
	if !isTransmitter(src) || len(e.loadQ) == 0 || e.loadQ[len(e.loadQ)-1] != fid {
		e.observer.Record("param_entry", "stale")
		return nil
	}

	if e.fieldData != nil && chunksRemain != e.expectChunksRemain {
		e.abortField(src, fid, "chunk_mismatch")
		return fmt.Errorf("%w: field %d expected %d remaining, got %d",
			ErrChunkCorruption, fid, e.expectChunksRemain, chunksRemain)
	}

	if chunksRemain > 0 {
		if e.fieldChunk >= e.cfg.MaxChunks {
			e.abortField(src, fid, "chunk_overflow")
			return fmt.Errorf("%w: field %d exceeded %d chunks", ErrChunkCorruption, fid, e.cfg.MaxChunks)
		}
		if e.fieldData == nil {
			e.fieldData = make([]byte, 0, len(data)*(chunksRemain+1))
		}
		e.fieldData = append(e.fieldData, data...)
		e.fieldChunk++
		e.expectChunksRemain = chunksRemain - 1
		e.fieldDeadline = time.Time{}
		e.readAttempts = 0
		e.observer.Record("param_entry", "chunk")
		return nil
	}

	full := append(e.fieldData, data...)
	e.resetFieldState()

	field := params.ParseField(fid, full)
	if err := params.Validate(field); err != nil {
		if n := e.retries[fid]; n < e.cfg.MaxRetries {
			e.retries[fid] = n + 1
			if !slices.Contains(e.loadQ, fid) {
				e.loadQ = append(e.loadQ, fid)
			}
			e.observer.Record("field", "retry")
			e.logger.Warn("field validation failed, retrying",
				zap.Uint8("field", fid), zap.Int("attempt", n+1), zap.Error(err))
			return nil
		}
		e.observer.Record("field", "accepted_invalid")
		e.debug("field validation failed after retries, storing as-is",
			zap.Uint8("field", fid), zap.Error(err))
	}
	delete(e.retries, fid)

	dev := e.devices[src]
	if dev == nil {
		e.logger.Debug("parameter for unknown device", zap.String("address", hexAddr(src)))
	} else {
		dev.Fields[fid] = field
		dev.Fetched[fid] = struct{}{}
		e.observer.Record("field", "stored")
		e.emitField(dev, field, now)
		e.emitProgress(dev)
	}
	e.popIfTop(fid)
	if dev != nil {
		e.maybeLoaded(dev)
	}
	return nil
}

// abortField 放弃当前字段：计入已获取以推进进度，出栈并重置分块状态
func (e *Engine) abortField(src, fid byte, status string) {
	dev := e.devices[src]
	if dev != nil {
		dev.Fetched[fid] = struct{}{}
	}
	e.popIfTop(fid)
	e.resetFieldState()
	e.observer.Record("field", status)
	e.debug("field aborted", zap.Uint8("field", fid), zap.String("reason", status))
	if dev != nil {
		e.emitProgress(dev)
		e.maybeLoaded(dev)
	}
}

func (e *Engine) maybeLoaded(dev *Device) {
	if len(e.loadQ) > 0 {
		return
	}
	if !dev.Loaded {
		e.observer.Record("load", "complete")
		e.logger.Info("all parameters loaded",
			zap.String("address", hexAddr(dev.Address)), zap.Int("fields", len(dev.Fields)))
	}
	dev.Loaded = true
	e.emitDevice(event.TypeParametersLoaded, dev)
}

func (e *Engine) popIfTop(fid byte) {
	if n := len(e.loadQ); n > 0 && e.loadQ[n-1] == fid {
		e.loadQ = e.loadQ[:n-1]
	}
}

func (e *Engine) resetFieldState() {
	e.fieldChunk = 0
	e.fieldData = nil
	e.expectChunksRemain = -1
	e.fieldDeadline = time.Time{}
	e.readAttempts = 0
}

// queueRead 将字段移到栈顶（去重），从分块 0 重新开始
func (e *Engine) queueRead(device, fid byte, notBefore time.Time) {
	e.loadQ = slices.DeleteFunc(e.loadQ, func(id byte) bool { return id == fid })
	e.loadQ = append(e.loadQ, fid)
	e.resetFieldState()
	e.fieldDeadline = notBefore
	if isTransmitter(device) {
		e.currentDevice = device
	}
}

// RequestParameterRead 立即重读单个字段
func (e *Engine) RequestParameterRead(device, fid byte) error {
	if _, ok := e.devices[device]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, hexAddr(device))
	}
	e.queueRead(device, fid, time.Time{})
	e.observer.Record("request_read", "ok")
	return nil
}

// RequestDeviceReload 清空设备字段并重建 N..1 加载队列
func (e *Engine) RequestDeviceReload(device byte) error {
	dev, ok := e.devices[device]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, hexAddr(device))
	}
	if dev.ParamCount <= 0 {
		return fmt.Errorf("%w: %s", ErrNoParameters, hexAddr(device))
	}
	dev.reset()
	e.loadQ = descendingQueue(dev.ParamCount)
	e.resetFieldState()
	clear(e.retries)
	if isTransmitter(device) {
		e.currentDevice = device
	}
	e.observer.Record("reload", "ok")
	e.debug("device reload requested", zap.String("address", hexAddr(device)), zap.Int("params", dev.ParamCount))
	return nil
}

// WriteParameter 发送参数写入并记录待确认值；随后读回该字段
// 修改 RF Band 时同时重读 Packet Rate（可选项随频段变化）
func (e *Engine) WriteParameter(now time.Time, device, fid byte, value float64) error {
	dev, ok := e.devices[device]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, hexAddr(device))
	}
	field := dev.Fields[fid]
	raw, err := params.EncodeWriteValue(field, value)
	if err != nil {
		e.observer.Record("write", "invalid")
		return fmt.Errorf("encode field %d: %w", fid, err)
	}
	if !e.sender.SendCommand(crsf.BuildParameterWrite(device, fid, raw)) {
		e.observer.Record("write", "busy")
		return ErrCommandBusy
	}
	e.pending.Track(fid, params.ExpectedValue(field, value), now)
	e.observer.Record("write", "sent")
	e.logger.Info("parameter write sent",
		zap.String("device", hexAddr(device)),
		zap.Uint8("field", fid),
		zap.Float64("value", value))

	e.queueRead(device, fid, now.Add(readBackDelay))
	if field != nil && isRFBand(field.Name) {
		if pr := findField(dev, "packet rate"); pr != nil {
			e.queueRead(device, pr.ID, now.Add(readBackDelay))
		}
	}
	return nil
}

func isRFBand(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	return n == "rf band" || (strings.Contains(n, "rf") && strings.Contains(n, "band"))
}

func findField(dev *Device, name string) *params.Field {
	for _, f := range dev.Fields {
		if strings.ToLower(strings.TrimSpace(f.Name)) == name {
			return f
		}
	}
	return nil
}

// OnDisconnect 串口断开：重置发现与加载状态，设备保留但清空字段
func (e *Engine) OnDisconnect() {
	e.triggered = false
	e.firstRx = time.Time{}
	clear(e.awaiting)
	clear(e.pinged)
	e.pingQueue = nil
	e.lastPing = time.Time{}
	e.loadQ = nil
	e.resetFieldState()
	clear(e.retries)
	e.pending.Clear()
	for _, dev := range e.devices {
		dev.reset()
	}
	e.debug("serial disconnected, discovery state reset")
}

// ResetTxDisconnected TX 停止发送同步帧：清空设备表并重新等待两个地址
func (e *Engine) ResetTxDisconnected() {
	e.triggered = false
	e.firstRx = time.Time{}
	clear(e.awaiting)
	clear(e.pinged)
	for _, addr := range transmitterAddrs {
		e.awaiting[addr] = true
	}
	e.pingQueue = nil
	e.lastPing = time.Time{}
	e.devices = make(map[byte]*Device)
	e.currentDevice = crsf.AddressTransmitter
	e.loadQ = nil
	e.resetFieldState()
	clear(e.retries)
	e.debug("tx disconnected, discovery reset")
}

// State 某地址的发现/加载状态
func (e *Engine) State(addr byte) State {
	if dev, ok := e.devices[addr]; ok {
		if dev.Loaded {
			return StateLoaded
		}
		if t := e.targetDevice(); len(e.loadQ) > 0 && t != nil && t.Address == addr {
			return StateLoading
		}
		return StateDiscovered
	}
	if e.pinged[addr] {
		return StatePinged
	}
	return StateUnknown
}

// Devices 全部设备快照，按地址排序
func (e *Engine) Devices() []DeviceSnapshot {
	out := make([]DeviceSnapshot, 0, len(e.devices))
	for addr, dev := range e.devices {
		out = append(out, dev.snapshot(e.State(addr)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Device 单个设备快照
func (e *Engine) Device(addr byte) (DeviceSnapshot, bool) {
	dev, ok := e.devices[addr]
	if !ok {
		return DeviceSnapshot{}, false
	}
	return dev.snapshot(e.State(addr)), true
}

// PendingWrite 查询字段的待确认写入
func (e *Engine) PendingWrite(fid byte) (PendingWrite, bool) {
	return e.pending.Get(fid)
}

// Status 引擎状态摘要
type Status struct {
	Triggered     bool   `json:"triggered"`
	Awaiting      []byte `json:"awaiting"`
	CurrentDevice byte   `json:"current_device"`
	QueueLength   int    `json:"queue_length"`
	CurrentField  int    `json:"current_field"`
	Chunk         int    `json:"chunk"`
	PendingWrites int    `json:"pending_writes"`
	Devices       int    `json:"devices"`
}

func (e *Engine) Status() Status {
	s := Status{
		Triggered:     e.triggered,
		CurrentDevice: e.currentDevice,
		QueueLength:   len(e.loadQ),
		CurrentField:  -1,
		Chunk:         e.fieldChunk,
		PendingWrites: e.pending.Len(),
		Devices:       len(e.devices),
	}
	for _, addr := range transmitterAddrs {
		if e.awaiting[addr] {
			s.Awaiting = append(s.Awaiting, addr)
		}
	}
	if n := len(e.loadQ); n > 0 {
		s.CurrentField = int(e.loadQ[n-1])
	}
	return s
}

// LoadQueue 当前加载队列副本（末尾为栈顶）
func (e *Engine) LoadQueue() []byte {
	return slices.Clone(e.loadQ)
}

func (e *Engine) emitDevice(t event.Type, dev *Device) {
	ev := event.New(t)
	ev.Address = dev.Address
	info := dev.DeviceInfo
	ev.Device = &info
	e.emitter.Emit(ev)
}

func (e *Engine) emitProgress(dev *Device) {
	ev := event.New(event.TypeParametersProgress)
	ev.Address = dev.Address
	ev.Progress = &event.ProgressData{Fetched: len(dev.Fetched), Total: dev.ParamCount}
	e.emitter.Emit(ev)
}

func (e *Engine) emitField(dev *Device, field *params.Field, now time.Time) {
	ev := event.New(event.TypeFieldUpdated)
	ev.Address = dev.Address
	cp := *field
	ev.Field = &cp
	if !e.pending.Observe(field.ID, field.Value(), now) {
		ev.Message = "write pending"
	}
	e.emitter.Emit(ev)
}

func (e *Engine) debug(msg string, fields ...zap.Field) {
	e.logger.Debug(msg, fields...)
	e.emitter.Emit(event.NewDebug(msg))
}

func descendingQueue(n int) []byte {
	if n > 255 {
		n = 255
	}
	q := make([]byte, 0, n)
	for id := n; id >= 1; id-- {
		q = append(q, byte(id))
	}
	return q
}

func hexAddr(addr byte) string {
	return fmt.Sprintf("0x%02X", addr)
}
