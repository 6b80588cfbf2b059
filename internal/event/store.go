package event

import (
	"context"
	"sync"
	"time"

	"github.com/taoyao-code/elrs-feeder/internal/protocol/crsf"
)

const debugHistory = 50

// StoreSnapshot 最新链路状态
type StoreSnapshot struct {
	Session       string               `json:"session,omitempty"`
	Connected     bool                 `json:"connected"`
	TxConnected   bool                 `json:"tx_connected"`
	Telemetry     *crsf.LinkStatistics `json:"telemetry,omitempty"`
	TelemetryAt   time.Time            `json:"telemetry_at"`
	Channels      []uint16             `json:"channels,omitempty"`
	Sync          *SyncData            `json:"sync,omitempty"`
	LastMessage   string               `json:"last_message,omitempty"`
	Debug         []string             `json:"debug,omitempty"`
	EventsHandled uint64               `json:"events_handled"`
}

// Store 保存最近一次的遥测/通道/连接状态，供 API 与健康检查读取
type Store struct {
	mu   sync.RWMutex
	snap StoreSnapshot
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Name() string { return "store" }

func (s *Store) Handle(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.EventsHandled++
	if e.Session != "" {
		s.snap.Session = e.Session
	}
	switch e.Type {
	case TypeTelemetry:
		if e.Telemetry != nil {
			t := *e.Telemetry
			s.snap.Telemetry = &t
			s.snap.TelemetryAt = e.Timestamp
		}
	case TypeChannels:
		s.snap.Channels = append(s.snap.Channels[:0], e.Channels...)
	case TypeSync:
		if e.Sync != nil {
			sd := *e.Sync
			s.snap.Sync = &sd
		}
	case TypeConnection:
		if e.Connected != nil {
			s.snap.Connected = *e.Connected
			if !*e.Connected {
				s.snap.TxConnected = false
			}
		}
		s.snap.LastMessage = e.Message
	case TypeTxStatus:
		if e.Connected != nil {
			s.snap.TxConnected = *e.Connected
		}
		s.snap.LastMessage = e.Message
	case TypeDebug:
		s.snap.Debug = append(s.snap.Debug, e.Message)
		if n := len(s.snap.Debug); n > debugHistory {
			s.snap.Debug = append([]string(nil), s.snap.Debug[n-debugHistory:]...)
		}
	}
	return nil
}

// Snapshot 返回副本
func (s *Store) Snapshot() StoreSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	if s.snap.Telemetry != nil {
		t := *s.snap.Telemetry
		out.Telemetry = &t
	}
	if s.snap.Sync != nil {
		sd := *s.snap.Sync
		out.Sync = &sd
	}
	out.Channels = append([]uint16(nil), s.snap.Channels...)
	out.Debug = append([]string(nil), s.snap.Debug...)
	return out
}

// TelemetryAge 最近一次遥测距今时长；从未收到返回 false
func (s *Store) TelemetryAge(now time.Time) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.TelemetryAt.IsZero() {
		return 0, false
	}
	return now.Sub(s.snap.TelemetryAt), true
}
