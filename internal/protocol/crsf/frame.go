package crsf

import (
	"errors"
	"fmt"
)

// CRSF 协议常量
const (
	CRCPoly = 0xD5

	// 地址
	AddressFlightController = 0xC8 // 同步字节，主机->模块方向固定使用
	AddressRadio            = 0xEA // 遥控器/旧版 TX 地址
	AddressTransmitter      = 0xEE // TX 模块
	AddressELRSLua          = 0xEF // ELRS LUA 参数请求源地址
	AddressBroadcast        = 0x00

	// 帧类型
	FrameTypeLinkStatistics  = 0x14
	FrameTypeRCChannels      = 0x16
	FrameTypeDevicePing      = 0x28
	FrameTypeDeviceInfo      = 0x29
	FrameTypeParameterEntry  = 0x2B
	FrameTypeParameterRead   = 0x2C
	FrameTypeParameterWrite  = 0x2D
	FrameTypeELRSStatus      = 0x2E
	FrameTypeHandset         = 0x3A
	HandsetSubTypeTimingSync = 0x10

	// 帧长度：addr + len + type + payload + crc
	MinFrameSize   = 6  // length 字节 >= 4
	MaxFrameSize   = 66 // length 字节 <= 64
	MaxPayloadSize = MaxFrameSize - 4

	ChannelCount       = 16
	ChannelsPayloadLen = 22
)

var (
	ErrShortFrame      = errors.New("short frame")
	ErrBadLength       = errors.New("bad frame length")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Frame 一个已通过 CRC 校验的 CRSF 帧
type Frame struct {
	Address byte
	Type    byte
	Payload []byte
}

// IsExtended 扩展帧（0x28 及以上）在 payload 前两个字节携带 dst/src
func (f *Frame) IsExtended() bool {
	return f.Type >= FrameTypeDevicePing
}

// Source 返回扩展帧的源地址
func (f *Frame) Source() (byte, bool) {
	if !f.IsExtended() || len(f.Payload) < 2 {
		return 0, false
	}
	return f.Payload[1], true
}

// Destination 返回扩展帧的目的地址
func (f *Frame) Destination() (byte, bool) {
	if !f.IsExtended() || len(f.Payload) < 2 {
		return 0, false
	}
	return f.Payload[0], true
}

func (f *Frame) String() string {
	return fmt.Sprintf("crsf{addr=0x%02X type=0x%02X len=%d}", f.Address, f.Type, len(f.Payload))
}

// Build 构造下行帧：[0xC8][len][type][payload][crc]
// 调用方保证 payload 不超过 MaxPayloadSize
func Build(ftype byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, AddressFlightController, byte(len(payload)+2), ftype)
	out = append(out, payload...)
	out = append(out, frameCRC(ftype, payload))
	return out
}

// BuildChecked 同 Build，但对超长 payload 返回错误
func BuildChecked(ftype byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	return Build(ftype, payload), nil
}

// Encode 将已有 Frame 按其地址编码
func (f *Frame) Encode() []byte {
	out := make([]byte, 0, len(f.Payload)+4)
	out = append(out, f.Address, byte(len(f.Payload)+2), f.Type)
	out = append(out, f.Payload...)
	out = append(out, frameCRC(f.Type, f.Payload))
	return out
}

// BuildPing 设备发现 ping：payload [broadcast, target]
func BuildPing(target byte) []byte {
	return Build(FrameTypeDevicePing, []byte{AddressBroadcast, target})
}

// BuildParameterRead 参数读请求：[device][0xEF][field][chunk]
func BuildParameterRead(device, field, chunk byte) []byte {
	return Build(FrameTypeParameterRead, []byte{device, AddressELRSLua, field, chunk})
}

// BuildParameterWrite 参数写请求：[device][0xEF][field][value...]
func BuildParameterWrite(device, field byte, value []byte) []byte {
	payload := make([]byte, 0, 3+len(value))
	payload = append(payload, device, AddressELRSLua, field)
	payload = append(payload, value...)
	return Build(FrameTypeParameterWrite, payload)
}

// TypeName 帧类型名称（用于日志与指标标签）
func TypeName(t byte) string {
	switch t {
	case FrameTypeLinkStatistics:
		return "link_statistics"
	case FrameTypeRCChannels:
		return "rc_channels"
	case FrameTypeDevicePing:
		return "device_ping"
	case FrameTypeDeviceInfo:
		return "device_info"
	case FrameTypeParameterEntry:
		return "parameter_entry"
	case FrameTypeParameterRead:
		return "parameter_read"
	case FrameTypeParameterWrite:
		return "parameter_write"
	case FrameTypeELRSStatus:
		return "elrs_status"
	case FrameTypeHandset:
		return "handset"
	default:
		return "other"
	}
}

// IsTransmitterAddress TX 模块可能使用的两个地址
func IsTransmitterAddress(addr byte) bool {
	return addr == AddressTransmitter || addr == AddressRadio
}
