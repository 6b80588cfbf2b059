package event

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSink_Naming(t *testing.T) {
	s := NewRedisSink(nil, "", 0, nil)
	assert.Equal(t, "elrs:link:telemetry", s.Channel(TypeTelemetry))
	assert.Equal(t, "elrs:device:field_updated", s.Channel(TypeFieldUpdated))
	assert.Equal(t, "elrs:events", s.HistoryKey())
	assert.Error(t, s.Handle(context.Background(), New(TypeDebug)))
}

// 需要本地 Redis；不可达时跳过
func TestRedisSink_History(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 15})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("需要Redis服务器，跳过测试")
	}

	prefix := "elrs-test-" + New(TypeDebug).ID
	s := NewRedisSink(client, prefix, 3, nil)
	defer client.Del(context.Background(), s.HistoryKey())

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Handle(ctx, NewDebug("m")))
	}
	require.NoError(t, s.Handle(ctx, New(TypeTelemetry)))

	n, err := s.HistoryLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	events, err := s.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, TypeDebug, events[0].Type)
}
