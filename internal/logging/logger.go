package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		// Fatal is logged at error level; the process is never exited here.
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger interface for structured logging
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Fatal(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// ScaffoldLogger implements Logger on top of zap.
type ScaffoldLogger struct {
	logger    *zap.Logger
	level     LogLevel
	component string
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      LogLevel
	Format     string // "json" or "text"
	Output     io.Writer
	TimeFormat string
	AddSource  bool
	Component  string
}

// DefaultConfig returns default logger configuration. Logs go to stderr so
// machine-readable command output on stdout stays clean.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:      LevelInfo,
		Format:     "text",
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a new structured logger
func NewLogger(config *LoggerConfig) *ScaffoldLogger {
	if config == nil {
		config = DefaultConfig()
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(orDefault(config.TimeFormat, time.RFC3339))

	var encoder zapcore.Encoder
	if config.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), zap.NewAtomicLevelAt(config.Level.zapLevel()))

	var opts []zap.Option
	if config.AddSource {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	l := &ScaffoldLogger{
		logger: zap.New(core, opts...),
		level:  config.Level,
	}
	if config.Component != "" {
		l.component = config.Component
		l.logger = l.logger.With(zap.String("component", config.Component))
	}

	return l
}

// NewNop returns a logger that discards everything.
func NewNop() *ScaffoldLogger {
	return &ScaffoldLogger{logger: zap.NewNop(), level: LevelFatal + 1}
}

// Debug logs a debug message
func (l *ScaffoldLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	if l.level > LevelDebug {
		return
	}
	l.logger.Debug(msg, toZapFields(ctx, nil, fields)...)
}

// Info logs an info message
func (l *ScaffoldLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	l.logger.Info(msg, toZapFields(ctx, nil, fields)...)
}

// Warn logs a warning message
func (l *ScaffoldLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	if l.level > LevelWarn {
		return
	}
	l.logger.Warn(msg, toZapFields(ctx, err, fields)...)
}

// Error logs an error message
func (l *ScaffoldLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	if l.level > LevelError {
		return
	}
	l.logger.Error(msg, toZapFields(ctx, err, fields)...)
}

// Fatal logs a fatal message
// Note: This method logs at ERROR level but does not call os.Exit.
// The caller is responsible for handling the fatal condition appropriately.
func (l *ScaffoldLogger) Fatal(ctx context.Context, err error, msg string, fields ...interface{}) {
	if l.level > LevelFatal {
		return
	}
	l.logger.Error(msg, append(toZapFields(ctx, err, fields), zap.Bool("fatal", true))...)
}

// With creates a new logger with additional fields
func (l *ScaffoldLogger) With(fields ...interface{}) Logger {
	return &ScaffoldLogger{
		logger:    l.logger.With(toZapFields(nil, nil, fields)...),
		level:     l.level,
		component: l.component,
	}
}

// WithComponent creates a new logger with component context
func (l *ScaffoldLogger) WithComponent(component string) Logger {
	return &ScaffoldLogger{
		logger:    l.logger.With(zap.String("component", component)),
		level:     l.level,
		component: component,
	}
}

// Sync flushes buffered entries.
func (l *ScaffoldLogger) Sync() error {
	return l.logger.Sync()
}

type ctxKey struct{}

// WithOperationID returns a context whose log lines carry operation_id.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// OperationID returns the id set by WithOperationID, or "".
func OperationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// toZapFields converts alternating key/value pairs. Values with a non-string
// key or a missing partner are dropped.
func toZapFields(ctx context.Context, err error, fields []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)/2+2)

	if id := OperationID(ctx); id != "" {
		out = append(out, zap.String("operation_id", id))
	}
	if err != nil {
		out = append(out, zap.Error(err))
	}

	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			out = append(out, zap.Any(key, fields[i+1]))
		}
	}

	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// FileLogger creates a logger that writes to a dated file in a directory
type FileLogger struct {
	*ScaffoldLogger
	file     *os.File
	filePath string
}

// NewFileLogger creates a file-based logger with daily file names
func NewFileLogger(config *LoggerConfig, logDir string) (*FileLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	now := time.Now()
	fileName := fmt.Sprintf("scaffold-%s.log", now.Format("2006-01-02"))
	filePath := filepath.Join(logDir, fileName)

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fileConfig := *config
	fileConfig.Output = file
	fileConfig.Format = "json"

	return &FileLogger{
		ScaffoldLogger: NewLogger(&fileConfig),
		file:           file,
		filePath:       filePath,
	}, nil
}

// Path returns the file being written.
func (f *FileLogger) Path() string {
	return f.filePath
}

// Close closes the file logger
func (f *FileLogger) Close() error {
	if f.file != nil {
		_ = f.Sync()
		return f.file.Close()
	}
	return nil
}

// MultiLogger writes to multiple loggers
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Debug logs to all loggers
func (m *MultiLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	for _, logger := range m.loggers {
		logger.Debug(ctx, msg, fields...)
	}
}

// Info logs to all loggers
func (m *MultiLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	for _, logger := range m.loggers {
		logger.Info(ctx, msg, fields...)
	}
}

// Warn logs to all loggers
func (m *MultiLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	for _, logger := range m.loggers {
		logger.Warn(ctx, err, msg, fields...)
	}
}

// Error logs to all loggers
func (m *MultiLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	for _, logger := range m.loggers {
		logger.Error(ctx, err, msg, fields...)
	}
}

// Fatal logs to all loggers
func (m *MultiLogger) Fatal(ctx context.Context, err error, msg string, fields ...interface{}) {
	for _, logger := range m.loggers {
		logger.Fatal(ctx, err, msg, fields...)
	}
}

// With creates a new multi-logger with additional fields
func (m *MultiLogger) With(fields ...interface{}) Logger {
	newLoggers := make([]Logger, len(m.loggers))
	for i, logger := range m.loggers {
		newLoggers[i] = logger.With(fields...)
	}
	return &MultiLogger{loggers: newLoggers}
}

// WithComponent creates a new multi-logger with component context
func (m *MultiLogger) WithComponent(component string) Logger {
	newLoggers := make([]Logger, len(m.loggers))
	for i, logger := range m.loggers {
		newLoggers[i] = logger.WithComponent(component)
	}
	return &MultiLogger{loggers: newLoggers}
}

// SanitizeForLog masks values that look like credentials and truncates
// very long strings before they reach a log line.
func SanitizeForLog(data string) string {
	sensitive := []string{
		"password", "token", "secret", "key", "auth",
	}

	lower := strings.ToLower(data)
	for _, word := range sensitive {
		if strings.Contains(lower, word) {
			return "[REDACTED]"
		}
	}

	if len(data) > 1000 {
		return data[:1000] + "...[TRUNCATED]"
	}

	return data
}

// SanitizeVariables returns a copy of vars safe to log: values whose key
// looks sensitive are redacted and strings pass through SanitizeForLog.
func SanitizeVariables(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		if SanitizeForLog(k) == "[REDACTED]" {
			out[k] = "[REDACTED]"
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = SanitizeForLog(s)
			continue
		}
		out[k] = v
	}
	return out
}
