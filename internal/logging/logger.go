// Package logging provides structured logging via zap, bridged to
// OpenTelemetry logs.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface the rest of the engine depends on, so call sites
// never import zap directly.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	Sync() error
}

type zapLogger struct {
	logger *zap.Logger
}

// New creates a zap-backed Logger at the given level ("DEBUG".."FATAL").
func New(levelStr string) (Logger, error) {
	var level zapcore.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = zap.DebugLevel
	case "INFO", "":
		level = zap.InfoLevel
	case "WARN":
		level = zap.WarnLevel
	case "ERROR":
		level = zap.ErrorLevel
	case "FATAL":
		level = zap.FatalLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", levelStr)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	otelCore := otelzap.NewCore("hedgegrid", otelzap.WithLoggerProvider(global.GetLoggerProvider()))
	combined := zapcore.NewTee(consoleCore, otelCore)

	logger := zap.New(combined, zap.AddCaller(), zap.AddCallerSkip(1))
	return &zapLogger{logger: logger}, nil
}

func toFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}

func (l *zapLogger) Debug(msg string, fields ...interface{}) { l.logger.Debug(msg, toFields(fields)...) }
func (l *zapLogger) Info(msg string, fields ...interface{})  { l.logger.Info(msg, toFields(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...interface{})  { l.logger.Warn(msg, toFields(fields)...) }
func (l *zapLogger) Error(msg string, fields ...interface{}) { l.logger.Error(msg, toFields(fields)...) }
func (l *zapLogger) Fatal(msg string, fields ...interface{}) { l.logger.Fatal(msg, toFields(fields)...) }

func (l *zapLogger) WithField(key string, value interface{}) Logger {
	return &zapLogger{logger: l.logger.With(zap.Any(key, value))}
}

func (l *zapLogger) WithFields(fields map[string]interface{}) Logger {
	zfs := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zfs = append(zfs, zap.Any(k, v))
	}
	return &zapLogger{logger: l.logger.With(zfs...)}
}

func (l *zapLogger) Sync() error { return l.logger.Sync() }
