package crsf

import "errors"

var (
	// ErrCRCMismatch CRC8 校验失败
	ErrCRCMismatch = errors.New("crc mismatch")
)

// crc8Table 多项式 0xD5 的查表（MSB-first，初值 0）
var crc8Table = func() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for j := 0; j < 8; j++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ CRCPoly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}()

// CRC8 计算 CRSF 校验值
// 校验范围：type + payload（不包含 address 与 length）
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}

// frameCRC 计算 type‖payload 的 CRC，避免拼接临时切片
func frameCRC(ftype byte, payload []byte) byte {
	crc := crc8Table[ftype]
	for _, b := range payload {
		crc = crc8Table[crc^b]
	}
	return crc
}

// VerifyFrame 校验一个完整帧 [addr][len][type][payload][crc]
func VerifyFrame(frame []byte) error {
	if len(frame) < MinFrameSize {
		return ErrShortFrame
	}
	total := int(frame[1]) + 2
	if total < MinFrameSize || total > MaxFrameSize || total > len(frame) {
		return ErrBadLength
	}
	if frameCRC(frame[2], frame[3:total-1]) != frame[total-1] {
		return ErrCRCMismatch
	}
	return nil
}
