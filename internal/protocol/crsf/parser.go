package crsf

// DecodeStream 从缓冲区中切分帧
// 以 length 字节为步长；长度越界或 CRC 不匹配时丢弃首字节重新同步，不会 panic。
// 返回已解析帧、已消费字节数与重同步丢弃的字节数。
func DecodeStream(buf []byte) (frames []Frame, consumed int, resync int) {
	off := 0
	for len(buf)-off >= 3 {
		total := int(buf[off+1]) + 2
		if total < MinFrameSize || total > MaxFrameSize {
			off++
			resync++
			continue
		}
		if len(buf)-off < total {
			break
		}
		ftype := buf[off+2]
		payload := buf[off+3 : off+total-1]
		if frameCRC(ftype, payload) != buf[off+total-1] {
			off++
			resync++
			continue
		}
		p := make([]byte, len(payload))
		copy(p, payload)
		frames = append(frames, Frame{Address: buf[off], Type: ftype, Payload: p})
		off += total
	}
	return frames, off, resync
}

// StreamDecoder 有状态的流式解码器：保留未完整的尾部字节
type StreamDecoder struct {
	buf    []byte
	resync uint64
}

func NewStreamDecoder() *StreamDecoder { return &StreamDecoder{} }

// Feed 追加字节并返回其中的完整帧
func (d *StreamDecoder) Feed(p []byte) []Frame {
	d.buf = append(d.buf, p...)
	frames, consumed, resync := DecodeStream(d.buf)
	d.resync += uint64(resync)
	if consumed > 0 {
		n := copy(d.buf, d.buf[consumed:])
		d.buf = d.buf[:n]
	}
	// 防止异常数据无限堆积
	if len(d.buf) > 4*MaxFrameSize {
		drop := len(d.buf) - MaxFrameSize
		d.resync += uint64(drop)
		n := copy(d.buf, d.buf[drop:])
		d.buf = d.buf[:n]
	}
	return frames
}

// Resynced 累计因重同步丢弃的字节数
func (d *StreamDecoder) Resynced() uint64 { return d.resync }

// Buffered 当前缓存的字节数
func (d *StreamDecoder) Buffered() int { return len(d.buf) }

// Reset 清空缓存（断线重连时调用）
func (d *StreamDecoder) Reset() { d.buf = d.buf[:0] }
