package crsf

import (
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUSToUnit_Boundaries(t *testing.T) {
	tests := []struct {
		us   int
		want uint16
	}{
		{0, 172},
		{999, 172},
		{1000, 172},
		{1500, 992},
		{2000, 1811},
		{2001, 1811},
		{3000, 1811},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, USToUnit(tt.us), "us=%d", tt.us)
	}
}

func TestUnitToUS_Boundaries(t *testing.T) {
	assert.Equal(t, uint16(1000), UnitToUS(0))
	assert.Equal(t, uint16(1000), UnitToUS(172))
	assert.Equal(t, uint16(1500), UnitToUS(992))
	assert.Equal(t, uint16(2000), UnitToUS(1811))
	assert.Equal(t, uint16(2000), UnitToUS(2047))
}

func TestPackChannels_Centered(t *testing.T) {
	var us [ChannelCount]uint16
	for i := range us {
		us[i] = 1500
	}
	payload := EncodeChannels(us)
	require.Len(t, payload, ChannelsPayloadLen)
	assert.Equal(t, "e0031ff8c0073ef0810f7ce0031ff8c0073ef0810f7c", hex.EncodeToString(payload))
}

func TestChannels_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 500; n++ {
		var in [ChannelCount]uint16
		for i := range in {
			in[i] = uint16(1000 + rng.Intn(1001))
		}
		out := DecodeChannels(EncodeChannels(in))
		for i := range in {
			diff := int(out[i]) - int(in[i])
			if diff < -1 || diff > 1 {
				t.Fatalf("ch%d: in=%d out=%d", i, in[i], out[i])
			}
		}
	}
}

func TestUnpackChannels_RawUnits(t *testing.T) {
	var units [ChannelCount]uint16
	for i := range units {
		units[i] = uint16(i * 127)
	}
	assert.Equal(t, units, UnpackChannels(PackChannels(units)))
}

func TestUnpackChannels_ShortPayload(t *testing.T) {
	// 不足 22 字节时缺失位按 0 处理，不 panic
	units := UnpackChannels([]byte{0xFF, 0x07})
	assert.Equal(t, uint16(0x7FF), units[0])
	assert.Equal(t, uint16(0), units[15])
}

func TestBuildChannels_Frame(t *testing.T) {
	var us [ChannelCount]uint16
	frame := BuildChannels(us)
	require.Len(t, frame, ChannelsPayloadLen+4)
	assert.Equal(t, byte(AddressFlightController), frame[0])
	assert.Equal(t, byte(ChannelsPayloadLen+2), frame[1])
	assert.Equal(t, byte(FrameTypeRCChannels), frame[2])
	require.NoError(t, VerifyFrame(frame))
}
