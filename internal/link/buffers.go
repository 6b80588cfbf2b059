package link

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/taoyao-code/elrs-feeder/internal/protocol/crsf"
)

// commandSlot 单槽命令队列：已有待发命令时新的命令被拒绝
type commandSlot struct {
	p atomic.Pointer[[]byte]
}

// Offer 槽空时放入，返回是否成功
func (s *commandSlot) Offer(frame []byte) bool {
	f := frame
	return s.p.CompareAndSwap(nil, &f)
}

// Take 取出并清空
func (s *commandSlot) Take() []byte {
	if f := s.p.Swap(nil); f != nil {
		return *f
	}
	return nil
}

func (s *commandSlot) Clear() { s.p.Store(nil) }

func (s *commandSlot) Pending() bool { return s.p.Load() != nil }

// channelBuffer 外部输入与发送节拍共享的通道值（微秒）
type channelBuffer struct {
	mu      sync.Mutex
	values  [crsf.ChannelCount]uint16
	updated time.Time
}

func newChannelBuffer() *channelBuffer {
	b := &channelBuffer{}
	for i := range b.values {
		b.values[i] = crsf.ChannelMidUS
	}
	return b
}

// Set 写入通道值：多余的截断，缺失的补中位，越界的限幅
func (b *channelBuffer) Set(us []int, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.values {
		v := crsf.ChannelMidUS
		if i < len(us) {
			v = min(max(us[i], crsf.ChannelMinUS), crsf.ChannelMaxUS)
		}
		b.values[i] = uint16(v)
	}
	b.updated = now
}

// Snapshot 返回副本以及输入是否仍然新鲜
func (b *channelBuffer) Snapshot(now time.Time, staleAfter time.Duration) ([crsf.ChannelCount]uint16, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	live := !b.updated.IsZero() && now.Sub(b.updated) <= staleAfter
	return b.values, live
}
