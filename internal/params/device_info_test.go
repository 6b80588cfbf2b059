package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceInfo(t *testing.T) {
	p := []byte{0xEA, 0xEE}
	p = append(p, "ELRS TX\x00"...)
	p = append(p, 0x45, 0x4C, 0x52, 0x53) // serial
	p = append(p, 0x00, 0x00, 0x00, 0x01) // hw
	p = append(p, 3, 2, 1, 0)             // sw
	p = append(p, 5, 1)                   // n_params, proto

	info, err := ParseDeviceInfo(p)
	require.NoError(t, err)
	assert.Equal(t, byte(0xEA), info.Destination)
	assert.Equal(t, byte(0xEE), info.Address)
	assert.Equal(t, "ELRS TX", info.Name)
	assert.Equal(t, "454c5253", info.Serial)
	assert.Equal(t, "00000001", info.HWVersion)
	assert.Equal(t, "3.2.1", info.SWVersion)
	assert.Equal(t, 5, info.ParamCount)
	assert.Equal(t, 1, info.ProtocolVersion)
}

func TestParseDeviceInfo_Truncated(t *testing.T) {
	info, err := ParseDeviceInfo([]byte{0xEA, 0xEE, 'R', 'X', 0})
	require.NoError(t, err)
	assert.Equal(t, "RX", info.Name)
	assert.Empty(t, info.Serial)
	assert.Equal(t, "0.0.0", info.SWVersion)
	assert.Equal(t, 0, info.ParamCount)

	_, err = ParseDeviceInfo([]byte{0xEA, 0xEE, 0})
	assert.ErrorIs(t, err, ErrDeviceInfoShort)
}

func TestEncodeWriteValue(t *testing.T) {
	num := ParseField(1, blob(0, byte(TypeInt16), "Trim", 0x00, 0x00, 0xFF, 0x9C, 0x00, 0x64))
	b, err := EncodeWriteValue(num, -2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFE}, b)
	_, err = EncodeWriteValue(num, 101)
	assert.Error(t, err)

	sel := ParseField(2, blob(0, byte(TypeTextSelection), "Rate", append([]byte("a;b;c\x00"), 0)...))
	b, err = EncodeWriteValue(sel, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, b)
	_, err = EncodeWriteValue(sel, 3)
	assert.Error(t, err)

	folder := ParseField(3, blob(0, byte(TypeFolder), "Other"))
	_, err = EncodeWriteValue(folder, 1)
	assert.ErrorIs(t, err, ErrNotWritable)

	fl := ParseField(4, blob(0, byte(TypeFloat), "Gain",
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x27, 0x10, 0, 0, 0, 0, 2, 0, 0, 0, 1))
	b, err = EncodeWriteValue(fl, 1.5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 150}, b)
	assert.Equal(t, int64(150), ExpectedValue(fl, 1.5))
	assert.Equal(t, int64(2), ExpectedValue(sel, 2))
}
