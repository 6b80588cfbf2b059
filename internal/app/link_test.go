package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/elrs-feeder/internal/config"
)

func TestLinkConfig(t *testing.T) {
	cfg := &cfgpkg.Config{
		Link: cfgpkg.LinkConfig{
			SendInterval:     2 * time.Millisecond,
			InputStaleAfter:  3 * time.Second,
			ReconnectBackoff: time.Second,
			EventBuffer:      16,
		},
		Discovery: cfgpkg.DiscoveryConfig{MaxChunks: 12, SettleDelay: 250 * time.Millisecond},
	}
	lc := LinkConfig(cfg)
	assert.Equal(t, 2*time.Millisecond, lc.SendInterval)
	assert.Equal(t, 3*time.Second, lc.InputStaleAfter)
	assert.Equal(t, time.Second, lc.ReconnectBackoff)
	assert.Equal(t, 16, lc.EventBuffer)
	assert.Equal(t, 12, lc.Discovery.MaxChunks)
	assert.Equal(t, 250*time.Millisecond, lc.Discovery.SettleDelay)
	assert.Equal(t, 256, lc.ReadBufferSize)
}

func TestSerialOpener_CancelledContext(t *testing.T) {
	open := SerialOpener(cfgpkg.SerialConfig{Port: "/dev/does-not-exist", Baud: 115200})("", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := open(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSerialOpener_MissingDevice(t *testing.T) {
	open := SerialOpener(cfgpkg.SerialConfig{Port: "/dev/does-not-exist"})("", 0)
	_, err := open(context.Background())
	assert.Error(t, err)
}
