// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Jrinx/ktest/internal/errors"
)

// ZapConfig configures a ZapLogger.
type ZapConfig struct {
	Level  Level     // minimum level written
	Format string    // "console" (default) or "json"
	Color  bool      // colorize console levels
	Time   bool      // include timestamps
	Out    io.Writer // destination; required
}

// ZapLogger is a Logger backed by a zap core. It is what the ktest command
// uses for its console output.
type ZapLogger struct {
	zl *zap.Logger
}

// NewZapLogger builds a ZapLogger from cfg.
func NewZapLogger(cfg ZapConfig) (*ZapLogger, error) {
	if cfg.Out == nil {
		return nil, errors.New("zap logger needs an output writer")
	}
	enc := zapcore.EncoderConfig{
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	if cfg.Time {
		enc.TimeKey = "time"
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "", "console":
		if cfg.Color {
			enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(enc)
	case "json":
		encoder = zapcore.NewJSONEncoder(enc)
	default:
		return nil, errors.Errorf("unknown log format %q", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(cfg.Out), zapLevel(cfg.Level))
	return &ZapLogger{zl: zap.New(core)}, nil
}

// Log writes a log entry, keeping the timestamp taken by the emitter.
func (l *ZapLogger) Log(level Level, ts time.Time, msg string) {
	ce := l.zl.Check(zapLevel(level), msg)
	if ce == nil {
		return
	}
	ce.Time = ts
	ce.Write()
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.zl.Sync()
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
