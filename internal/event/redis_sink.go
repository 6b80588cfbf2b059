package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix  = "elrs"
	defaultHistoryLen = 1000
	redisOpTimeout    = time.Second
)

// RedisSink 将事件写入 Redis：
//   - PUBLISH <prefix>:<kind>（kind 为事件类型中 '.' 换成 ':'）
//   - RPUSH <prefix>:events 并 LTRIM 保留最近 historyLen 条
//
// 遥测与通道事件频率高，只发布不入历史
type RedisSink struct {
	redis      redis.Cmdable
	prefix     string
	historyLen int64
	logger     *zap.Logger
}

func NewRedisSink(client redis.Cmdable, prefix string, historyLen int, logger *zap.Logger) *RedisSink {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if historyLen <= 0 {
		historyLen = defaultHistoryLen
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{redis: client, prefix: prefix, historyLen: int64(historyLen), logger: logger}
}

func (s *RedisSink) Name() string { return "redis" }

// Channel 事件发布频道
func (s *RedisSink) Channel(t Type) string {
	return s.prefix + ":" + strings.ReplaceAll(string(t), ".", ":")
}

// HistoryKey 事件历史列表
func (s *RedisSink) HistoryKey() string {
	return s.prefix + ":events"
}

func (s *RedisSink) Handle(ctx context.Context, e *Event) error {
	if s == nil || s.redis == nil {
		return fmt.Errorf("redis sink not initialized")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := s.redis.Publish(ctx, s.Channel(e.Type), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	if e.Type == TypeTelemetry || e.Type == TypeChannels {
		return nil
	}

	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, s.HistoryKey(), data)
	pipe.LTrim(ctx, s.HistoryKey(), -s.historyLen, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis history: %w", err)
	}
	s.logger.Debug("event stored",
		zap.String("event_id", e.ID),
		zap.String("event_type", string(e.Type)))
	return nil
}

// History 读取最近 n 条事件
func (s *RedisSink) History(ctx context.Context, n int64) ([]*Event, error) {
	if s == nil || s.redis == nil {
		return nil, fmt.Errorf("redis sink not initialized")
	}
	raw, err := s.redis.LRange(ctx, s.HistoryKey(), -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	out := make([]*Event, 0, len(raw))
	for _, r := range raw {
		e, err := Decode([]byte(r))
		if err != nil {
			s.logger.Warn("discarding malformed history entry", zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// HistoryLength 历史列表长度
func (s *RedisSink) HistoryLength(ctx context.Context) (int64, error) {
	if s == nil || s.redis == nil {
		return 0, fmt.Errorf("redis sink not initialized")
	}
	return s.redis.LLen(ctx, s.HistoryKey()).Result()
}
