// Package logging 构建 zap 日志器
package logging

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	cfgpkg "github.com/taoyao-code/elrs-feeder/internal/config"
)

// ParseLevel 将配置中的级别字符串转换为 zap 级别，未知值回退到 info
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format(time.RFC3339Nano)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// NewCore 按配置构建编码器与输出；filename 为空时只写 w
func NewCore(cfg cfgpkg.LoggingConfig, w zapcore.WriteSyncer) zapcore.Core {
	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	}

	ws := w
	if cfg.File.Filename != "" {
		// 文件输出（带滚动）
		lj := &lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		ws = zapcore.NewMultiWriteSyncer(w, zapcore.AddSync(lj))
	}
	return zapcore.NewCore(encoder, ws, ParseLevel(cfg.Level))
}

// InitLogger 初始化 zap 日志器（控制台 + lumberjack 滚动文件双写）
func InitLogger(cfg cfgpkg.LoggingConfig) (*zap.Logger, error) {
	core := NewCore(cfg, zapcore.AddSync(os.Stdout))
	return zap.New(core, zap.AddCaller()), nil
}
