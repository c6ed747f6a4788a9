// Package logging provides structured logging functionality for zoom-recordings
package logging

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/curtbushko/zoom-recordings/internal/config"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type contextKey string

// RequestIDKey is the context key for request IDs
const RequestIDKey contextKey = "request_id"

const timeFormat = "2006-01-02T15:04:05Z07:00"

// Logger defines the interface for logging operations
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})

	DebugWithContext(ctx context.Context, format string, args ...interface{})
	InfoWithContext(ctx context.Context, format string, args ...interface{})
	WarnWithContext(ctx context.Context, format string, args ...interface{})
	ErrorWithContext(ctx context.Context, format string, args ...interface{})

	LogPerformance(metrics PerformanceMetrics)
	LogAPIRequest(request APIRequest)
	LogAPIResponse(response APIResponse)

	GetLevel() LogLevel
	SetLevel(level LogLevel)
	SetOutput(w io.Writer)
	Close() error
}

// PerformanceMetrics represents performance data for logging
type PerformanceMetrics struct {
	Operation      string
	Duration       time.Duration
	BytesProcessed int64
	Success        bool
	Error          string
	Metadata       map[string]interface{}
}

// APIRequest represents API request data for logging
type APIRequest struct {
	Method    string
	URL       string
	Headers   map[string]string
	RequestID string
	Timestamp time.Time
}

// APIResponse represents API response data for logging
type APIResponse struct {
	StatusCode int
	Body       string
	RequestID  string
	Duration   time.Duration
	Timestamp  time.Time
	Success    bool
	Error      string
}

// loggerImpl implements the Logger interface on top of zerolog
type loggerImpl struct {
	level      LogLevel
	jsonFormat bool
	zl         zerolog.Logger
	fileHandle *os.File
}

// NewLogger creates a new Logger instance with the given configuration
func NewLogger(config config.LoggingConfig) (Logger, error) {
	level, err := parseLogLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := &loggerImpl{
		level:      level,
		jsonFormat: config.JSONFormat,
	}

	var writers []io.Writer
	if config.Console {
		writers = append(writers, logger.formatWriter(os.Stderr, false))
	}

	if config.File != "" {
		file, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.File, err)
		}
		logger.fileHandle = file
		writers = append(writers, logger.formatWriter(file, true))
	}

	// Warnings and errors must go somewhere even when nothing is configured
	if len(writers) == 0 {
		writers = append(writers, logger.formatWriter(os.Stderr, false))
	}

	logger.zl = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level.zerolog()).
		With().Timestamp().Logger()

	return logger, nil
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return &loggerImpl{
		level: ErrorLevel,
		zl:    zerolog.Nop(),
	}
}

func (l *loggerImpl) formatWriter(w io.Writer, noColor bool) io.Writer {
	if l.jsonFormat {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, NoColor: noColor, TimeFormat: timeFormat}
}

// parseLogLevel converts a string to LogLevel
func parseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

func (l *loggerImpl) log(level LogLevel, ctx context.Context, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	event := l.zl.WithLevel(level.zerolog())
	if ctx != nil {
		if requestID, ok := GetRequestID(ctx); ok {
			event = event.Str("request_id", requestID)
		}
	}
	event.Msgf(format, args...)
}

// Debug logs a debug message
func (l *loggerImpl) Debug(format string, args ...interface{}) {
	l.log(DebugLevel, nil, format, args...)
}

// Info logs an info message
func (l *loggerImpl) Info(format string, args ...interface{}) {
	l.log(InfoLevel, nil, format, args...)
}

// Warn logs a warning message
func (l *loggerImpl) Warn(format string, args ...interface{}) {
	l.log(WarnLevel, nil, format, args...)
}

// Error logs an error message
func (l *loggerImpl) Error(format string, args ...interface{}) {
	l.log(ErrorLevel, nil, format, args...)
}

// DebugWithContext logs a debug message with context
func (l *loggerImpl) DebugWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(DebugLevel, ctx, format, args...)
}

// InfoWithContext logs an info message with context
func (l *loggerImpl) InfoWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(InfoLevel, ctx, format, args...)
}

// WarnWithContext logs a warning message with context
func (l *loggerImpl) WarnWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(WarnLevel, ctx, format, args...)
}

// ErrorWithContext logs an error message with context
func (l *loggerImpl) ErrorWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ErrorLevel, ctx, format, args...)
}

// LogPerformance logs performance metrics
func (l *loggerImpl) LogPerformance(metrics PerformanceMetrics) {
	if InfoLevel < l.level {
		return
	}

	event := l.zl.Info().
		Str("operation", metrics.Operation).
		Int64("duration_ms", metrics.Duration.Milliseconds()).
		Int64("bytes_processed", metrics.BytesProcessed).
		Bool("success", metrics.Success)
	if metrics.Error != "" {
		event = event.Str("error", metrics.Error)
	}
	if len(metrics.Metadata) > 0 {
		event = event.Fields(metrics.Metadata)
	}
	event.Msgf("Performance: %s completed in %v", metrics.Operation, metrics.Duration)
}

// LogAPIRequest logs API requests with credentials masked
func (l *loggerImpl) LogAPIRequest(request APIRequest) {
	if DebugLevel < l.level {
		return
	}
	if request.Timestamp.IsZero() {
		request.Timestamp = time.Now().UTC()
	}

	event := l.zl.Debug().
		Str("method", request.Method).
		Str("url", SanitizeURL(request.URL)).
		Str("request_id", request.RequestID).
		Time("request_time", request.Timestamp)

	if len(request.Headers) > 0 {
		sanitizedHeaders := make(map[string]string, len(request.Headers))
		for key, value := range request.Headers {
			if strings.EqualFold(key, "authorization") {
				sanitizedHeaders[key] = "***"
			} else {
				sanitizedHeaders[key] = value
			}
		}
		event = event.Interface("headers", sanitizedHeaders)
	}

	event.Msgf("API Request: %s %s", request.Method, SanitizeURL(request.URL))
}

// LogAPIResponse logs API responses
func (l *loggerImpl) LogAPIResponse(response APIResponse) {
	if DebugLevel < l.level {
		return
	}
	if response.Timestamp.IsZero() {
		response.Timestamp = time.Now().UTC()
	}

	event := l.zl.Debug().
		Int("status_code", response.StatusCode).
		Str("request_id", response.RequestID).
		Int64("duration_ms", response.Duration.Milliseconds()).
		Time("response_time", response.Timestamp).
		Bool("success", response.Success)
	if response.Error != "" {
		event = event.Str("error", response.Error)
	}
	if response.Body != "" {
		body := response.Body
		if len(body) > 1000 {
			body = body[:1000] + "... (truncated)"
		}
		event = event.Str("body", body)
	}

	event.Msgf("API Response: %d (%v)", response.StatusCode, response.Duration)
}

// sensitiveParams are query parameters that carry OAuth credentials
var sensitiveParams = []string{"access_token", "refresh_token", "code"}

// SanitizeURL masks OAuth credentials carried in query parameters
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	query := u.Query()
	masked := false
	for _, name := range sensitiveParams {
		if query.Has(name) {
			query.Set(name, "REDACTED")
			masked = true
		}
	}
	if !masked {
		return raw
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// GetLevel returns the current log level
func (l *loggerImpl) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *loggerImpl) SetLevel(level LogLevel) {
	l.level = level
	l.zl = l.zl.Level(level.zerolog())
}

// SetOutput sets the output writer (mainly for testing)
func (l *loggerImpl) SetOutput(w io.Writer) {
	l.zl = l.zl.Output(l.formatWriter(w, true))
}

// Close closes the logger and any open file handles
func (l *loggerImpl) Close() error {
	if l.fileHandle != nil {
		return l.fileHandle.Close()
	}
	return nil
}

var defaultLogger Logger

// SetDefaultLogger sets the logger components fall back to when none is given
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}

// GetDefaultLogger returns the global default logger, or a no-op logger when none is set
func GetDefaultLogger() Logger {
	if defaultLogger == nil {
		return NewNopLogger()
	}
	return defaultLogger
}

// WithRequestID creates a context with a request ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID extracts the request ID from a context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	return requestID, ok
}

// GenerateRequestID generates a random request ID
func GenerateRequestID() string {
	return "req-" + uuid.NewString()
}
