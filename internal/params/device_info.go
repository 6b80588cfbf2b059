package params

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrDeviceInfoShort DEVICE_INFO payload 过短
var ErrDeviceInfoShort = errors.New("device info payload too short")

// DeviceInfo DEVICE_INFO (0x29) 携带的设备描述
type DeviceInfo struct {
	Destination     byte   `json:"destination"`
	Address         byte   `json:"address"`
	Name            string `json:"name"`
	Serial          string `json:"serial"`
	HWVersion       string `json:"hwVersion"`
	SWVersion       string `json:"swVersion"`
	ParamCount      int    `json:"paramCount"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// ParseDeviceInfo 解析 [dst][src][name\0][serial 4][hw 4][sw 4][n_params][proto]
// 名称之后的字段缺失时取零值
func ParseDeviceInfo(p []byte) (DeviceInfo, error) {
	if len(p) < 4 {
		return DeviceInfo{}, fmt.Errorf("%w: %d bytes", ErrDeviceInfoShort, len(p))
	}
	info := DeviceInfo{Destination: p[0], Address: p[1]}
	var off int
	info.Name, off = readCString(p, 2)

	if off+4 <= len(p) {
		info.Serial = hex.EncodeToString(p[off : off+4])
	}
	if off+8 <= len(p) {
		info.HWVersion = hex.EncodeToString(p[off+4 : off+8])
	}
	var major, minor, rev byte
	if off+11 <= len(p) {
		major, minor, rev = p[off+8], p[off+9], p[off+10]
	}
	info.SWVersion = fmt.Sprintf("%d.%d.%d", major, minor, rev)
	if off+12 < len(p) {
		info.ParamCount = int(p[off+12])
	}
	if off+13 < len(p) {
		info.ProtocolVersion = int(p[off+13])
	}
	return info, nil
}
