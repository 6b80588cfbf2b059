package crsf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinkStatistics(t *testing.T) {
	p := []byte{0xC4, 0xB0, 100, 0xF6, 1, 7, 3, 0xBA, 98, 5}
	ls, err := ParseLinkStatistics(p)
	require.NoError(t, err)
	assert.Equal(t, int8(-60), ls.UplinkRSSI1)
	assert.Equal(t, int8(-80), ls.UplinkRSSI2)
	assert.Equal(t, uint8(100), ls.UplinkLQ)
	assert.Equal(t, int8(-10), ls.UplinkSNR)
	assert.Equal(t, uint8(1), ls.ActiveAntenna)
	assert.Equal(t, uint8(7), ls.RFMode)
	assert.Equal(t, uint8(3), ls.UplinkTXPower)
	assert.Equal(t, int8(-70), ls.DownlinkRSSI)
	assert.Equal(t, uint8(98), ls.DownlinkLQ)
	assert.Equal(t, int8(5), ls.DownlinkSNR)

	_, err = ParseLinkStatistics(p[:9])
	assert.ErrorIs(t, err, ErrLinkStatsShort)
}

func TestParseTimingSync(t *testing.T) {
	// rate 40000 (4000µs)，offset -50 (-5µs)
	p := []byte{0xEA, 0xEE, 0x10, 0x00, 0x00, 0x9C, 0x40, 0xFF, 0xFF, 0xFF, 0xCE}
	ts, err := ParseTimingSync(p)
	require.NoError(t, err)
	assert.Equal(t, byte(0xEE), ts.Source)
	assert.Equal(t, 4000, ts.IntervalUS())
	assert.Equal(t, -5, ts.OffsetUS())

	_, err = ParseTimingSync([]byte{0xEA, 0xEE, 0x11, 0, 0})
	assert.ErrorIs(t, err, ErrNotTimingSync)
	_, err = ParseTimingSync(p[:8])
	assert.ErrorIs(t, err, ErrTimingSyncShort)
}

func TestClampInterval(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
		ok   bool
	}{
		{"正常值", 4000, 4000, true},
		{"过小", 100, MinSendIntervalUS, true},
		{"过大", 100000, MaxSendIntervalUS, true},
		{"零值忽略", 0, 0, false},
		{"负值忽略", -20, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClampInterval(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
