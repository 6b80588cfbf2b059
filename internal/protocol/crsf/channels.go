package crsf

// 通道取值范围
const (
	ChannelMinUS  = 1000
	ChannelMidUS  = 1500
	ChannelMaxUS  = 2000
	UnitMin       = 172
	UnitMax       = 1811
	unitSpan      = UnitMax - UnitMin // 1639
	channelSpanUS = ChannelMaxUS - ChannelMinUS
)

// USToUnit 微秒脉宽(1000..2000) -> CRSF 11bit 单位(172..1811)
// 舍入规则：四舍五入（远离零）
func USToUnit(us int) uint16 {
	if us <= ChannelMinUS {
		return UnitMin
	}
	if us >= ChannelMaxUS {
		return UnitMax
	}
	v := UnitMin + ((us-ChannelMinUS)*unitSpan+channelSpanUS/2)/channelSpanUS
	if v < 0 {
		v = 0
	}
	if v > 2047 {
		v = 2047
	}
	return uint16(v)
}

// UnitToUS CRSF 11bit 单位 -> 微秒脉宽
func UnitToUS(v uint16) uint16 {
	if v <= UnitMin {
		return ChannelMinUS
	}
	if v >= UnitMax {
		return ChannelMaxUS
	}
	us := ChannelMinUS + (int(v-UnitMin)*channelSpanUS+unitSpan/2)/unitSpan
	return uint16(us)
}

// PackChannels 16 路 11bit 值按 LSB-first 打包为 22 字节
func PackChannels(units [ChannelCount]uint16) []byte {
	out := make([]byte, 0, ChannelsPayloadLen)
	var bits uint32
	var pos uint
	for _, v := range units {
		bits |= uint32(v&0x7FF) << pos
		pos += 11
		for pos >= 8 {
			out = append(out, byte(bits))
			bits >>= 8
			pos -= 8
		}
	}
	if pos > 0 {
		out = append(out, byte(bits))
	}
	// 固定 22 字节（补零或截断）
	if len(out) != ChannelsPayloadLen {
		fixed := make([]byte, ChannelsPayloadLen)
		copy(fixed, out)
		out = fixed
	}
	return out
}

// UnpackChannels 22 字节 payload -> 16 路 11bit 值；不足部分按 0 处理
func UnpackChannels(payload []byte) [ChannelCount]uint16 {
	var units [ChannelCount]uint16
	var bits uint32
	var pos uint
	idx := 0
	for ch := 0; ch < ChannelCount; ch++ {
		for pos < 11 {
			var b byte
			if idx < len(payload) {
				b = payload[idx]
			}
			idx++
			bits |= uint32(b) << pos
			pos += 8
		}
		units[ch] = uint16(bits & 0x7FF)
		bits >>= 11
		pos -= 11
	}
	return units
}

// EncodeChannels 微秒通道 -> 22 字节 payload
func EncodeChannels(us [ChannelCount]uint16) []byte {
	var units [ChannelCount]uint16
	for i, v := range us {
		units[i] = USToUnit(int(v))
	}
	return PackChannels(units)
}

// DecodeChannels 22 字节 payload -> 微秒通道
func DecodeChannels(payload []byte) [ChannelCount]uint16 {
	units := UnpackChannels(payload)
	var us [ChannelCount]uint16
	for i, v := range units {
		us[i] = UnitToUS(v)
	}
	return us
}

// BuildChannels 构造 RC_CHANNELS_PACKED 帧
func BuildChannels(us [ChannelCount]uint16) []byte {
	return Build(FrameTypeRCChannels, EncodeChannels(us))
}
