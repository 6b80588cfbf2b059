package crsf

import (
	"encoding/binary"
	"errors"
)

var (
	ErrLinkStatsShort  = errors.New("link statistics payload too short")
	ErrNotTimingSync   = errors.New("not a timing sync payload")
	ErrTimingSyncShort = errors.New("timing sync payload too short")
)

// 发送间隔限制（微秒），超出视为异常值
const (
	MinSendIntervalUS = 500
	MaxSendIntervalUS = 50000
	LinkStatsLen      = 10
	timingSyncLen     = 11
)

// LinkStatistics 链路统计（0x14，10 字节）
type LinkStatistics struct {
	UplinkRSSI1   int8  `json:"1RSS"`
	UplinkRSSI2   int8  `json:"2RSS"`
	UplinkLQ      uint8 `json:"LQ"`
	UplinkSNR     int8  `json:"RSNR"`
	ActiveAntenna uint8 `json:"FLAGS"`
	RFMode        uint8 `json:"RFMD"`
	UplinkTXPower uint8 `json:"TPWR"`
	DownlinkRSSI  int8  `json:"TRSS"`
	DownlinkLQ    uint8 `json:"TLQ"`
	DownlinkSNR   int8  `json:"TSNR"`
}

// ParseLinkStatistics 解析链路统计 payload
func ParseLinkStatistics(p []byte) (LinkStatistics, error) {
	if len(p) < LinkStatsLen {
		return LinkStatistics{}, ErrLinkStatsShort
	}
	return LinkStatistics{
		UplinkRSSI1:   int8(p[0]),
		UplinkRSSI2:   int8(p[1]),
		UplinkLQ:      p[2],
		UplinkSNR:     int8(p[3]),
		ActiveAntenna: p[4],
		RFMode:        p[5],
		UplinkTXPower: p[6],
		DownlinkRSSI:  int8(p[7]),
		DownlinkLQ:    p[8],
		DownlinkSNR:   int8(p[9]),
	}, nil
}

// TimingSync 手柄定时同步（0x3A / 0x10），rate 与 offset 单位 0.1µs
type TimingSync struct {
	Destination byte
	Source      byte
	Rate        int32
	Offset      int32
}

// IntervalUS 发送间隔（微秒），未做限幅
func (t TimingSync) IntervalUS() int { return int(t.Rate) / 10 }

// OffsetUS 相位偏移（微秒）
func (t TimingSync) OffsetUS() int { return int(t.Offset) / 10 }

// ParseTimingSync 解析 [dst][src][0x10][rate BE32][offset BE32]
func ParseTimingSync(p []byte) (TimingSync, error) {
	if len(p) < 3 || p[2] != HandsetSubTypeTimingSync {
		return TimingSync{}, ErrNotTimingSync
	}
	if len(p) < timingSyncLen {
		return TimingSync{}, ErrTimingSyncShort
	}
	return TimingSync{
		Destination: p[0],
		Source:      p[1],
		Rate:        int32(binary.BigEndian.Uint32(p[3:7])),
		Offset:      int32(binary.BigEndian.Uint32(p[7:11])),
	}, nil
}

// ClampInterval 将同步得到的间隔限制在 [500,50000]µs；非正值返回 false
func ClampInterval(us int) (int, bool) {
	if us <= 0 {
		return 0, false
	}
	if us < MinSendIntervalUS {
		us = MinSendIntervalUS
	}
	if us > MaxSendIntervalUS {
		us = MaxSendIntervalUS
	}
	return us, true
}
