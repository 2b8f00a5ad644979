package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger utils.Logger
	config LogConfig
}

type LogConfig struct {
	Service     string
	Component   string
	EnableDebug bool
}

func NewServiceLogger(logger utils.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

// ===== OPERATION LOGGING =====

// classify maps an error onto a log level and an outcome label.
func classify(err error) (LogLevel, string) {
	switch {
	case err == nil:
		return LogLevelInfo, "success"
	case IsValidation(err):
		return LogLevelWarn, "validation_error"
	case errors.Is(err, ErrSubscriptionRequired):
		return LogLevelWarn, "subscription_required"
	case IsForbidden(err):
		return LogLevelWarn, "forbidden"
	case IsNotFound(err):
		return LogLevelInfo, "not_found"
	case IsConflict(err):
		return LogLevelInfo, "conflict"
	case errors.Is(err, context.Canceled):
		return LogLevelInfo, "canceled"
	default:
		return LogLevelError, "error"
	}
}

func (l *ServiceLogger) LogOperation(ctx context.Context, operation, userID, resourceID, resourceType string, duration time.Duration, err error) {
	level, status := classify(err)

	args := []any{
		"operation", operation,
		"user_id", userID,
		"resource_id", resourceID,
		"resource_type", resourceType,
		"status", status,
		"duration", duration.String(),
	}

	if err != nil {
		args = append(args, "error", err.Error())

		var validationErr ValidationErrors
		var permErr *PermissionError
		if errors.As(err, &validationErr) {
			args = append(args, "validation_errors_count", len(validationErr))
		} else if errors.As(err, &permErr) {
			args = append(args, "permission_action", permErr.Action)
		}
	}

	// Caller information only for unexpected failures
	if level == LogLevelError {
		if pc, file, line, ok := runtime.Caller(1); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				args = append(args,
					"caller_func", fn.Name(),
					"caller_file", file,
					"caller_line", line,
				)
			}
		}
	}

	message := fmt.Sprintf("%s operation %s", operation, status)

	switch level {
	case LogLevelDebug:
		if l.config.EnableDebug {
			l.logger.DebugContext(ctx, message, args...)
		}
	case LogLevelInfo:
		l.logger.InfoContext(ctx, message, args...)
	case LogLevelWarn:
		l.logger.WarnContext(ctx, message, args...)
	case LogLevelError:
		l.logger.ErrorContext(ctx, message, args...)
	}
}

func (l *ServiceLogger) LogPermissionDenied(ctx context.Context, operation string, permError *PermissionError) {
	l.logger.WarnContext(ctx, "Permission denied",
		"operation", operation,
		"user_id", permError.UserID,
		"resource_id", permError.ResourceID,
		"resource_type", permError.Resource,
		"action", permError.Action,
		"reason", permError.Reason,
	)
}

// ===== AUDIT LOGGING =====

// LogTransition records the one-way in_progress -> submitted transition.
func (l *ServiceLogger) LogTransition(ctx context.Context, attempt *models.AssessmentAttempt, trigger string) {
	args := []any{
		"attempt_id", attempt.ID,
		"paper_id", attempt.PaperID,
		"student_id", attempt.StudentID,
		"status", string(attempt.Status),
		"auto_submitted", attempt.AutoSubmitted,
		"time_used_seconds", attempt.TimeUsedSeconds,
		"trigger", trigger,
	}
	if attempt.Result != nil {
		args = append(args,
			"correct", attempt.Result.Correct,
			"total_questions", attempt.Result.TotalQuestions,
			"percentage", attempt.Result.Percentage,
			"needs_review", attempt.Result.NeedsReview,
		)
	}
	l.logger.InfoContext(ctx, "Audit: attempt submitted", args...)
}

// TrackOperation starts a timer; call the returned func with the final error.
func (l *ServiceLogger) TrackOperation(ctx context.Context, operation, userID, resourceID, resourceType string) func(err error) {
	start := time.Now()
	return func(err error) {
		l.LogOperation(ctx, operation, userID, resourceID, resourceType, time.Since(start), err)
	}
}
