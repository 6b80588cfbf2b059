// Package serialport 串口传输封装
package serialport

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port 串口抽象：真实串口或测试用的内存实现
type Port interface {
	io.ReadWriteCloser

	// Flush 丢弃未读取的输入缓冲
	Flush() error
}

// Config 串口配置
type Config struct {
	// 设备路径（如 /dev/ttyUSB0、COM3）
	Device string

	// 波特率（ELRS 常用 5250000 / 921600 / 420000）
	Baud int

	// 读超时；0 表示阻塞读
	ReadTimeout time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        5250000,
		ReadTimeout: 10 * time.Millisecond,
	}
}

// NativePort tarm/serial 实现
type NativePort struct {
	port *serial.Port
	cfg  Config
}

// Open 打开串口并清空模块在连接前缓存的数据
func Open(cfg Config) (Port, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial device not configured")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	p := &NativePort{port: port, cfg: cfg}
	_ = p.Flush()
	return p, nil
}

// Opener 返回按 cfg 打开串口的函数，供链路重连使用
func Opener(cfg Config) func(ctx context.Context) (Port, error) {
	return func(ctx context.Context) (Port, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Open(cfg)
	}
}

func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

func (p *NativePort) Flush() error {
	return p.port.Flush()
}

// String 用于日志
func (p *NativePort) String() string {
	return fmt.Sprintf("%s@%d", p.cfg.Device, p.cfg.Baud)
}
