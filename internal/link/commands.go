package link

import (
	"context"

	"github.com/taoyao-code/elrs-feeder/internal/discovery"
)

// call 在工作协程上执行 fn 并等待结果
func (l *Link) call(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	task := func() { res <- fn() }
	select {
	case l.calls <- task:
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-res:
		return err
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestParameterRead 立即重读单个字段
func (l *Link) RequestParameterRead(ctx context.Context, device, fid byte) error {
	return l.call(ctx, func() error {
		return l.engine.RequestParameterRead(device, fid)
	})
}

// RequestDeviceReload 重新加载设备全部参数
func (l *Link) RequestDeviceReload(ctx context.Context, device byte) error {
	return l.call(ctx, func() error {
		return l.engine.RequestDeviceReload(device)
	})
}

// WriteParameter 写入参数值；命令槽占用时返回 discovery.ErrCommandBusy
func (l *Link) WriteParameter(ctx context.Context, device, fid byte, value float64) error {
	return l.call(ctx, func() error {
		if l.transport == nil {
			return ErrNotConnected
		}
		return l.engine.WriteParameter(l.now(), device, fid, value)
	})
}

// Reconnect 关闭当前串口并立即重新打开；open 非 nil 时替换打开方式（如更换端口/波特率）
func (l *Link) Reconnect(ctx context.Context, open Opener) error {
	return l.call(ctx, func() error {
		if open != nil {
			l.open = open
		}
		l.disconnect("reconnect requested", nil)
		l.connect(ctx)
		if l.transport == nil {
			return ErrNotConnected
		}
		return nil
	})
}

// ResetTxDisconnected 手动重置 TX 发现状态
func (l *Link) ResetTxDisconnected(ctx context.Context) error {
	return l.call(ctx, func() error {
		l.engine.ResetTxDisconnected()
		return nil
	})
}

// Devices 已发现设备快照
func (l *Link) Devices(ctx context.Context) ([]discovery.DeviceSnapshot, error) {
	var out []discovery.DeviceSnapshot
	err := l.call(ctx, func() error {
		out = l.engine.Devices()
		return nil
	})
	return out, err
}

// Device 单个设备快照
func (l *Link) Device(ctx context.Context, addr byte) (discovery.DeviceSnapshot, bool, error) {
	var (
		snap discovery.DeviceSnapshot
		ok   bool
	)
	err := l.call(ctx, func() error {
		snap, ok = l.engine.Device(addr)
		return nil
	})
	return snap, ok, err
}

// EngineStatus 发现引擎状态
func (l *Link) EngineStatus(ctx context.Context) (discovery.Status, error) {
	var st discovery.Status
	err := l.call(ctx, func() error {
		st = l.engine.Status()
		return nil
	})
	return st, err
}

// PendingWrite 查询字段的待确认写入
func (l *Link) PendingWrite(ctx context.Context, fid byte) (discovery.PendingWrite, bool, error) {
	var (
		pw discovery.PendingWrite
		ok bool
	)
	err := l.call(ctx, func() error {
		pw, ok = l.engine.PendingWrite(fid)
		return nil
	})
	return pw, ok, err
}
