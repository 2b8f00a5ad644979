package utils

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logger defines a unified logging interface that can be used across handlers and services
type Logger interface {
	// Basic logging methods
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// Context-aware logging methods
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	// Structured logging with key-value pairs
	With(args ...any) Logger
	WithGroup(name string) Logger

	// Handler-specific methods for HTTP request logging
	LogRequest(method, path string, statusCode int, duration string, args ...any)
	LogError(err error, msg string, args ...any)
}

const (
	BackendSlog = "slog"
	BackendZap  = "zap"

	loggerContextKey = "logger"
	RequestIDHeader  = "X-Request-ID"
)

// NewLogger builds the configured backend. Production gets JSON at info level,
// everything else human-readable output at debug.
func NewLogger(backend, environment string) (Logger, error) {
	production := environment == "production"

	switch strings.ToLower(backend) {
	case "", BackendSlog:
		if production {
			return NewDefaultLogger(), nil
		}
		return NewDevelopmentLogger(), nil
	case BackendZap:
		return NewZapLogger(production)
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

// ===== SLOG =====

// SlogLogger implements Logger interface using slog
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) Logger {
	return &SlogLogger{logger: logger}
}

// NewDefaultLogger creates a default logger using slog with JSON output
func NewDefaultLogger() Logger {
	return NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

func NewDevelopmentLogger() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{
		Level: slog.LevelError + 1,
	})))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, redact(args)...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, redact(args)...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, redact(args)...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, redact(args)...) }

func (l *SlogLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, redact(args)...)
}

func (l *SlogLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, redact(args)...)
}

func (l *SlogLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, redact(args)...)
}

func (l *SlogLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, redact(args)...)
}

func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{logger: l.logger.With(redact(args)...)}
}

func (l *SlogLogger) WithGroup(name string) Logger {
	return &SlogLogger{logger: l.logger.WithGroup(name)}
}

func (l *SlogLogger) LogRequest(method, path string, statusCode int, duration string, args ...any) {
	level := slog.LevelInfo
	if statusCode >= 400 {
		level = slog.LevelWarn
	}
	if statusCode >= 500 {
		level = slog.LevelError
	}

	allArgs := append([]any{
		"method", method,
		"path", path,
		"status_code", statusCode,
		"duration", duration,
	}, redact(args)...)
	l.logger.Log(context.Background(), level, "HTTP Request", allArgs...)
}

func (l *SlogLogger) LogError(err error, msg string, args ...any) {
	l.logger.Error(msg, append([]any{"error", err}, redact(args)...)...)
}

// ===== ZAP =====

// ZapLogger implements Logger on top of zap's sugared logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

func NewZapLogger(production bool) (Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if production {
		cfg = zap.NewProductionConfig()
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sugar: z.Sugar()}, nil
}

func FromZap(z *zap.Logger) Logger {
	return &ZapLogger{sugar: z.Sugar()}
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, redact(args)...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, redact(args)...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, redact(args)...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, redact(args)...) }

// zap has no context-aware API; the context is ignored.
func (l *ZapLogger) DebugContext(_ context.Context, msg string, args ...any) { l.Debug(msg, args...) }
func (l *ZapLogger) InfoContext(_ context.Context, msg string, args ...any)  { l.Info(msg, args...) }
func (l *ZapLogger) WarnContext(_ context.Context, msg string, args ...any)  { l.Warn(msg, args...) }
func (l *ZapLogger) ErrorContext(_ context.Context, msg string, args ...any) { l.Error(msg, args...) }

func (l *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(redact(args)...)}
}

func (l *ZapLogger) WithGroup(name string) Logger {
	return &ZapLogger{sugar: l.sugar.Named(name)}
}

func (l *ZapLogger) LogRequest(method, path string, statusCode int, duration string, args ...any) {
	allArgs := append([]any{
		"method", method,
		"path", path,
		"status_code", statusCode,
		"duration", duration,
	}, redact(args)...)

	switch {
	case statusCode >= 500:
		l.sugar.Errorw("HTTP Request", allArgs...)
	case statusCode >= 400:
		l.sugar.Warnw("HTTP Request", allArgs...)
	default:
		l.sugar.Infow("HTTP Request", allArgs...)
	}
}

func (l *ZapLogger) LogError(err error, msg string, args ...any) {
	l.sugar.Errorw(msg, append([]any{"error", err}, redact(args)...)...)
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

// ===== REDACTION =====

var redactedKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"access_token":  {},
	"password":      {},
	"secret":        {},
}

// redact masks credential-looking values in key/value pairs.
func redact(args []any) []any {
	if len(args) < 2 {
		return args
	}
	var out []any
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if _, hit := redactedKeys[strings.ToLower(key)]; hit {
			if out == nil {
				out = append([]any(nil), args...)
			}
			out[i+1] = "[REDACTED]"
		}
	}
	if out == nil {
		return args
	}
	return out
}

// ===== GIN =====

// LoggerMiddleware creates a Gin middleware for request logging
func LoggerMiddleware(logger Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		logger.LogRequest(
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency.String(),
			"client_ip", param.ClientIP,
			"user_agent", param.Request.UserAgent(),
		)
		return ""
	})
}

// ContextLogger tags every request with a request id and stores a scoped logger on the context.
func ContextLogger(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		c.Set(loggerContextKey, logger.With(
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		))
		c.Next()
	}
}

// GetLoggerFromContext retrieves logger from Gin context
func GetLoggerFromContext(c *gin.Context) Logger {
	if logger, exists := c.Get(loggerContextKey); exists {
		if typedLogger, ok := logger.(Logger); ok {
			return typedLogger
		}
	}
	return NewDefaultLogger()
}
