package event

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink 以结构化日志输出事件；高频事件（遥测、通道）记为 Debug
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.With(zap.String("component", "events"))}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Handle(_ context.Context, e *Event) error {
	level := zapcore.InfoLevel
	switch e.Type {
	case TypeTelemetry, TypeChannels, TypeSync, TypeDebug, TypeParametersProgress, TypeFieldUpdated:
		level = zapcore.DebugLevel
	}
	ce := s.logger.Check(level, "link event")
	if ce == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("event_type", string(e.Type)),
	}
	if e.Session != "" {
		fields = append(fields, zap.String("session", e.Session))
	}
	if e.Address != 0 {
		fields = append(fields, zap.String("address", fmt.Sprintf("0x%02X", e.Address)))
	}
	if e.Connected != nil {
		fields = append(fields, zap.Bool("connected", *e.Connected))
	}
	if e.Telemetry != nil {
		fields = append(fields,
			zap.Int("lq", int(e.Telemetry.UplinkLQ)),
			zap.Int("rssi1", int(e.Telemetry.UplinkRSSI1)),
			zap.Int("snr", int(e.Telemetry.UplinkSNR)))
	}
	if e.Sync != nil {
		fields = append(fields, zap.Int("interval_us", e.Sync.IntervalUS), zap.Int("offset_us", e.Sync.OffsetUS))
	}
	if e.Device != nil {
		fields = append(fields, zap.String("device", e.Device.Name), zap.Int("params", e.Device.ParamCount))
	}
	if e.Field != nil {
		fields = append(fields, zap.Uint8("field", e.Field.ID), zap.String("name", e.Field.Name))
	}
	if e.Progress != nil {
		fields = append(fields, zap.Int("fetched", e.Progress.Fetched), zap.Int("total", e.Progress.Total))
	}
	if e.Message != "" {
		fields = append(fields, zap.String("message", e.Message))
	}
	ce.Write(fields...)
	return nil
}
