package crsf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStream_Frames(t *testing.T) {
	ping := BuildPing(AddressTransmitter)
	read := BuildParameterRead(AddressTransmitter, 3, 0)
	buf := append(append([]byte(nil), ping...), read...)

	frames, consumed, resync := DecodeStream(buf)
	require.Len(t, frames, 2)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, 0, resync)
	assert.Equal(t, byte(FrameTypeDevicePing), frames[0].Type)
	assert.Equal(t, []byte{AddressBroadcast, AddressTransmitter}, frames[0].Payload)
	assert.Equal(t, byte(FrameTypeParameterRead), frames[1].Type)
	src, ok := frames[1].Source()
	assert.True(t, ok)
	assert.Equal(t, byte(AddressELRSLua), src)
}

func TestDecodeStream_Partial(t *testing.T) {
	ping := BuildPing(AddressTransmitter)
	frames, consumed, resync := DecodeStream(ping[:4])
	assert.Empty(t, frames)
	assert.Equal(t, 0, consumed)
	assert.Equal(t, 0, resync)
}

func TestDecodeStream_GarbagePrefix(t *testing.T) {
	ping := BuildPing(AddressRadio)
	buf := append([]byte{0xFF, 0x00, 0x01}, ping...)
	frames, consumed, resync := DecodeStream(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, 3, resync)
}

func TestDecodeStream_CRCMismatchDropsOneByte(t *testing.T) {
	bad := BuildPing(AddressTransmitter)
	bad[len(bad)-1] ^= 0xFF
	good := BuildPing(AddressRadio)
	buf := append(bad, good...)

	// 坏帧内部的字节可能被当作长帧头，等待更多数据
	frames, consumed, resync := DecodeStream(buf)
	assert.Empty(t, frames)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 1, resync)

	buf = append(buf, make([]byte, 64)...)
	frames, _, resync = DecodeStream(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{AddressBroadcast, AddressRadio}, frames[0].Payload)
	assert.GreaterOrEqual(t, resync, len(bad))
}

func TestStreamDecoder_SplitFeeds(t *testing.T) {
	var us [ChannelCount]uint16
	for i := range us {
		us[i] = 1200
	}
	frame := BuildChannels(us)

	d := NewStreamDecoder()
	assert.Empty(t, d.Feed(frame[:5]))
	assert.Equal(t, 5, d.Buffered())
	frames := d.Feed(frame[5:])
	require.Len(t, frames, 1)
	assert.Equal(t, 0, d.Buffered())

	got := DecodeChannels(frames[0].Payload)
	for i := range got {
		assert.InDelta(t, 1200, int(got[i]), 1)
	}
}

func TestStreamDecoder_Noise(t *testing.T) {
	d := NewStreamDecoder()
	noise := make([]byte, 1000)
	for i := range noise {
		noise[i] = byte(i*37 + 11)
	}
	assert.NotPanics(t, func() { d.Feed(noise) })
	assert.LessOrEqual(t, d.Buffered(), 4*MaxFrameSize)

	// 噪声尾部可能声明了较长的帧，后续字节足够后应重新同步到 ping
	pings := 0
	for i := 0; i < 12; i++ {
		for _, f := range d.Feed(BuildPing(AddressTransmitter)) {
			if f.Type == FrameTypeDevicePing {
				pings++
			}
		}
	}
	assert.NotZero(t, pings)
	assert.Greater(t, d.Resynced(), uint64(0))
}
