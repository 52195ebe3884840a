// Package logging provides the structured Logger collaborator spec'd in
// the core's external interfaces: debug/info/error methods that accept a
// message and an optional job-id tag.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the core's logging collaborator. All call sites tag a log
// line with the job id when one is in scope, matching the pattern every
// component (scaler, heartbeat, job transport) uses.
type Logger struct {
	z *zap.SugaredLogger
}

// New builds a Logger at the level named by RUNPOD_LOG_LEVEL (default
// "info"). A "trace" level is treated as debug-and-below, since zap has
// no dedicated trace level.
func New() *Logger {
	level := strings.ToLower(os.Getenv("RUNPOD_LOG_LEVEL"))

	zapLevel := zapcore.InfoLevel
	switch level {
	case "debug", "trace":
		zapLevel = zapcore.DebugLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}

	return &Logger{z: z.Sugar()}
}

// Debug logs a debug-level message, optionally tagged with a job id.
func (l *Logger) Debug(msg string, jobID ...string) {
	l.log(l.z.Debugw, msg, jobID...)
}

// Info logs an info-level message, optionally tagged with a job id.
func (l *Logger) Info(msg string, jobID ...string) {
	l.log(l.z.Infow, msg, jobID...)
}

// Error logs an error-level message, optionally tagged with a job id.
func (l *Logger) Error(msg string, jobID ...string) {
	l.log(l.z.Errorw, msg, jobID...)
}

func (l *Logger) log(fn func(string, ...interface{}), msg string, jobID ...string) {
	if len(jobID) > 0 && jobID[0] != "" {
		fn(msg, "job_id", jobID[0])
		return
	}
	fn(msg)
}

// Sync flushes any buffered log entries. Call on process shutdown.
func (l *Logger) Sync() {
	_ = l.z.Sync()
}
