package discovery

import "time"

// PendingWrite 尚未被设备读回确认的写入
type PendingWrite struct {
	FieldID   byte      `json:"field_id"`
	Value     int64     `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *PendingWrite) expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(p.CreatedAt) > ttl
}

// PendingWrites 按字段记录待确认写入；由引擎所在协程独占
type PendingWrites struct {
	entries  map[byte]*PendingWrite
	ttl      time.Duration
	observer Observer
}

func NewPendingWrites(ttl time.Duration, observer Observer) *PendingWrites {
	if observer == nil {
		observer = NopObserver()
	}
	return &PendingWrites{entries: make(map[byte]*PendingWrite), ttl: ttl, observer: observer}
}

// Track 记录（或覆盖）一次写入
func (p *PendingWrites) Track(fieldID byte, value int64, now time.Time) {
	p.entries[fieldID] = &PendingWrite{FieldID: fieldID, Value: value, CreatedAt: now}
	p.observer.Record("pending_write", "track")
}

// Observe 处理字段读回：值一致则清除；不一致且已超时则放弃。
// 返回读回值是否应被使用（true 表示没有待确认写入遮挡它）。
func (p *PendingWrites) Observe(fieldID byte, value int64, now time.Time) bool {
	pw, ok := p.entries[fieldID]
	if !ok {
		return true
	}
	if pw.Value == value {
		delete(p.entries, fieldID)
		p.observer.Record("pending_write", "confirmed")
		return true
	}
	if pw.expired(p.ttl, now) {
		delete(p.entries, fieldID)
		p.observer.Record("pending_write", "expired")
		return true
	}
	return false
}

// Get 查询待确认写入
func (p *PendingWrites) Get(fieldID byte) (PendingWrite, bool) {
	pw, ok := p.entries[fieldID]
	if !ok {
		return PendingWrite{}, false
	}
	return *pw, true
}

// Sweep 清理超时条目
func (p *PendingWrites) Sweep(now time.Time) int {
	n := 0
	for id, pw := range p.entries {
		if pw.expired(p.ttl, now) {
			delete(p.entries, id)
			p.observer.Record("pending_write", "expired_cleanup")
			n++
		}
	}
	return n
}

func (p *PendingWrites) Len() int { return len(p.entries) }

func (p *PendingWrites) Clear() {
	clear(p.entries)
}
