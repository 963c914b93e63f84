package logger

import (
	"log/slog"
	"time"

	"github.com/sweetpotato0/tutorgraph/middleware"
	"github.com/sweetpotato0/tutorgraph/pkg/logging"
)

// RequestLogger logs each chat invocation with its session, outcome
// and duration.
type RequestLogger struct {
	logger *slog.Logger
}

// NewRequestLogger creates a request logging middleware
func NewRequestLogger() *RequestLogger {
	return &RequestLogger{logger: logging.WithComponent("chat")}
}

// NewRequestLoggerWith creates a request logging middleware using the
// given logger.
func NewRequestLoggerWith(l *slog.Logger) *RequestLogger {
	return &RequestLogger{logger: l}
}

// Name returns the middleware name
func (m *RequestLogger) Name() string {
	return "RequestLogger"
}

// Execute logs the invocation
func (m *RequestLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	start := time.Now()
	err := next(ctx)
	elapsed := time.Since(start)

	if err != nil {
		m.logger.Error("chat request failed",
			"session_id", ctx.SessionID,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
		return err
	}

	m.logger.Info("chat request served",
		"session_id", ctx.SessionID,
		"prompt_len", len(ctx.Prompt),
		"response_len", len(ctx.Response),
		"duration_ms", elapsed.Milliseconds())
	return nil
}
