// Package log provides structured logging with run context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the replay core (structured fields)
//   - SugaredLogger: Printf-style logging for CLI and console surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/rdint/types"
)

// Verbosity names accepted by ParseLevel, quietest first.
const (
	VerbosityQuiet = "quiet"
	VerbosityWarn  = "warn"
	VerbosityInfo  = "info"
	VerbosityDebug = "debug"
)

// Logger provides structured logging with run context.
// All log entries include the run identity fields.
type Logger struct {
	zap    *zap.Logger
	level  zapcore.Level
	fields []zap.Field
}

// SugaredLogger provides printf-style logging for CLI and debug surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// ParseLevel maps a verbosity name to a zap level.
// quiet only lets errors through.
func ParseLevel(verbosity string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(verbosity)) {
	case VerbosityQuiet:
		return zapcore.ErrorLevel, nil
	case VerbosityWarn:
		return zapcore.WarnLevel, nil
	case "", VerbosityInfo:
		return zapcore.InfoLevel, nil
	case VerbosityDebug:
		return zapcore.DebugLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown verbosity %q (want quiet, warn, info or debug)", verbosity)
	}
}

// NewLogger creates a new logger with run context.
// Output defaults to os.Stderr at info level.
func NewLogger(runMeta *types.RunMeta) *Logger {
	return newLoggerWithWriter(runMeta, os.Stderr, zapcore.InfoLevel)
}

// NewLoggerWithLevel creates a logger writing to w at the given level.
func NewLoggerWithLevel(runMeta *types.RunMeta, w io.Writer, level zapcore.Level) *Logger {
	return newLoggerWithWriter(runMeta, w, level)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zapcore.FatalLevel}
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return &Logger{
		zap:    zap.New(newCore(w, l.level)).With(l.fields...),
		level:  l.level,
		fields: l.fields,
	}
}

func newCore(w io.Writer, level zapcore.Level) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
}

// newLoggerWithWriter creates a logger writing to the specified writer.
func newLoggerWithWriter(runMeta *types.RunMeta, w io.Writer, level zapcore.Level) *Logger {
	var contextFields []zap.Field
	if runMeta != nil {
		contextFields = append(contextFields,
			zap.String("run_id", runMeta.RunID),
			zap.String("input", runMeta.Input),
		)
		if runMeta.Source != "" {
			contextFields = append(contextFields, zap.String("source", runMeta.Source))
		}
	}

	return &Logger{
		zap:    zap.New(newCore(w, level)).With(contextFields...),
		level:  level,
		fields: contextFields,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
