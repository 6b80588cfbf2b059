package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taoyao-code/elrs-feeder/internal/params"
	"github.com/taoyao-code/elrs-feeder/internal/protocol/crsf"
)

type sinkFunc struct {
	name string
	fn   func(e *Event) error
}

func (s sinkFunc) Name() string                             { return s.name }
func (s sinkFunc) Handle(_ context.Context, e *Event) error { return s.fn(e) }

func TestChannel_DropWhenFull(t *testing.T) {
	var dropped []Type
	c := NewChannel(2, func(t Type) { dropped = append(dropped, t) })

	c.Emit(New(TypeTelemetry))
	c.Emit(New(TypeChannels))
	c.Emit(New(TypeDebug))

	assert.Equal(t, uint64(1), c.Dropped())
	assert.Equal(t, []Type{TypeDebug}, dropped)
	assert.Equal(t, TypeTelemetry, (<-c.C()).Type)
}

func TestDispatcher_SinkFailureIsolated(t *testing.T) {
	var got []string
	failing := sinkFunc{name: "bad", fn: func(*Event) error { return errors.New("boom") }}
	ok := sinkFunc{name: "ok", fn: func(e *Event) error {
		got = append(got, e.ID)
		return nil
	}}

	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDispatcher(zap.New(core), failing, ok)
	e := New(TypeDebug)
	d.Dispatch(context.Background(), e)

	assert.Equal(t, []string{e.ID}, got)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "bad", logs.All()[0].ContextMap()["sink"])
}

func TestDispatcher_RunStopsOnClose(t *testing.T) {
	store := NewStore()
	d := NewDispatcher(nil, store)
	src := make(chan *Event, 4)
	src <- NewConnection(TypeConnection, true, "opened")
	src <- NewDebug("hello")
	close(src)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), src)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
	snap := store.Snapshot()
	assert.True(t, snap.Connected)
	assert.Equal(t, []string{"hello"}, snap.Debug)
	assert.Equal(t, uint64(2), snap.EventsHandled)
}

func TestStore_State(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, ok := s.TelemetryAge(time.Now())
	assert.False(t, ok)

	tel := New(TypeTelemetry)
	tel.Telemetry = &crsf.LinkStatistics{UplinkLQ: 100}
	tel.Session = "abc"
	require.NoError(t, s.Handle(ctx, tel))

	ch := New(TypeChannels)
	ch.Channels = []uint16{992, 172}
	require.NoError(t, s.Handle(ctx, ch))

	sync := New(TypeSync)
	sync.Sync = &SyncData{IntervalUS: 4000, OffsetUS: -20}
	require.NoError(t, s.Handle(ctx, sync))

	require.NoError(t, s.Handle(ctx, NewConnection(TypeConnection, true, "opened")))
	require.NoError(t, s.Handle(ctx, NewConnection(TypeTxStatus, true, "tx up")))

	snap := s.Snapshot()
	assert.Equal(t, "abc", snap.Session)
	assert.Equal(t, uint8(100), snap.Telemetry.UplinkLQ)
	assert.Equal(t, []uint16{992, 172}, snap.Channels)
	assert.Equal(t, 4000, snap.Sync.IntervalUS)
	assert.True(t, snap.Connected)
	assert.True(t, snap.TxConnected)

	age, ok := s.TelemetryAge(tel.Timestamp.Add(2 * time.Second))
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, age)

	// 串口断开同时清除 TX 状态
	require.NoError(t, s.Handle(ctx, NewConnection(TypeConnection, false, "closed")))
	snap = s.Snapshot()
	assert.False(t, snap.Connected)
	assert.False(t, snap.TxConnected)
	assert.Equal(t, "closed", snap.LastMessage)

	// 快照为副本
	snap.Channels[0] = 0
	assert.Equal(t, uint16(992), s.Snapshot().Channels[0])
}

func TestStore_DebugHistoryBounded(t *testing.T) {
	s := NewStore()
	for i := 0; i < debugHistory+10; i++ {
		_ = s.Handle(context.Background(), NewDebug("m"))
	}
	assert.Len(t, s.Snapshot().Debug, debugHistory)
}

func TestLogSink_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSink(zap.New(core))

	require.NoError(t, s.Handle(context.Background(), NewDebug("noise")))
	assert.Zero(t, logs.Len())

	e := New(TypeDeviceDiscovered)
	e.Address = crsf.AddressTransmitter
	e.Device = &params.DeviceInfo{Name: "ELRS TX", ParamCount: 20}
	require.NoError(t, s.Handle(context.Background(), e))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "0xEE", fields["address"])
	assert.Equal(t, "ELRS TX", fields["device"])
	assert.Equal(t, "events", fields["component"])
}
