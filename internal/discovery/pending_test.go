package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPendingWrites_Observe(t *testing.T) {
	var ops []string
	p := NewPendingWrites(5*time.Second, ObserverFunc(func(op, status string) {
		ops = append(ops, op+":"+status)
	}))

	assert.True(t, p.Observe(1, 2, t0), "no pending entry")

	p.Track(1, 7, t0)
	assert.False(t, p.Observe(1, 2, t0.Add(time.Second)))
	assert.Equal(t, 1, p.Len())

	assert.True(t, p.Observe(1, 7, t0.Add(2*time.Second)))
	assert.Zero(t, p.Len())
	assert.Equal(t, []string{"pending_write:track", "pending_write:confirmed"}, ops)
}

func TestPendingWrites_Expiry(t *testing.T) {
	p := NewPendingWrites(5*time.Second, nil)
	p.Track(1, 7, t0)
	p.Track(2, 3, t0.Add(4*time.Second))

	assert.True(t, p.Observe(1, 2, t0.Add(6*time.Second)), "expired entry no longer shadows")
	_, ok := p.Get(1)
	assert.False(t, ok)

	assert.Equal(t, 0, p.Sweep(t0.Add(6*time.Second)))
	assert.Equal(t, 1, p.Sweep(t0.Add(10*time.Second)))
	assert.Zero(t, p.Len())
}

func TestPendingWrites_TrackOverwrites(t *testing.T) {
	p := NewPendingWrites(time.Second, nil)
	p.Track(4, 1, t0)
	p.Track(4, 2, t0.Add(500*time.Millisecond))

	pw, ok := p.Get(4)
	assert.True(t, ok)
	assert.Equal(t, int64(2), pw.Value)
	assert.Equal(t, t0.Add(500*time.Millisecond), pw.CreatedAt)

	p.Clear()
	assert.Zero(t, p.Len())
}
