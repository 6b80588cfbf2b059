package params

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotWritable 字段类型不支持写入
var ErrNotWritable = errors.New("field not writable")

// EncodeWriteValue 按字段类型生成 PARAMETER_WRITE 的值字节
// 整数按类型宽度大端编码，浮点按精度缩放为 4 字节，选择与命令为 1 字节
func EncodeWriteValue(f *Field, v float64) ([]byte, error) {
	if f == nil {
		return []byte{byte(int64(v))}, nil
	}
	switch b := f.Body.(type) {
	case *Numeric:
		size := f.Type.Width()
		iv := int64(math.Round(v))
		if b.Min != nil && iv < *b.Min {
			return nil, fmt.Errorf("value %d below min %d", iv, *b.Min)
		}
		if b.Max != nil && iv > *b.Max {
			return nil, fmt.Errorf("value %d above max %d", iv, *b.Max)
		}
		return putUint(uint64(iv), size), nil
	case *Float:
		raw := math.Round(v * math.Pow10(int(b.Precision)))
		return putUint(uint64(int64(int32(raw))), 4), nil
	case *Selection:
		idx := int(v)
		if idx < 0 || idx >= len(b.Options) {
			return nil, fmt.Errorf("selection index %d out of range [0,%d)", idx, len(b.Options))
		}
		return []byte{byte(idx)}, nil
	case *Command:
		return []byte{byte(int64(v))}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotWritable, f.Type)
	}
}

func putUint(v uint64, size int) []byte {
	out := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// ExpectedValue 写入成功后 Field.Value() 应读回的值
func ExpectedValue(f *Field, v float64) int64 {
	if f != nil {
		if b, ok := f.Body.(*Float); ok {
			return int64(int32(math.Round(v * math.Pow10(int(b.Precision)))))
		}
	}
	return int64(math.Round(v))
}
