package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/sweetpotato0/tutorgraph/middleware"
)

func TestRequestLogger(t *testing.T) {
	t.Run("logs served requests", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewRequestLoggerWith(slog.New(slog.NewJSONHandler(&buf, nil)))

		ctx := middleware.NewContext(context.Background(), "s1", "hello")
		err := l.Execute(ctx, func(c *middleware.Context) error {
			c.Response = "hi"
			return nil
		})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "chat request served") {
			t.Errorf("expected served log line, got %s", out)
		}
		if !strings.Contains(out, `"session_id":"s1"`) {
			t.Errorf("expected session id in log, got %s", out)
		}
	})

	t.Run("logs failures and returns the error", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewRequestLoggerWith(slog.New(slog.NewJSONHandler(&buf, nil)))

		boom := errors.New("boom")
		ctx := middleware.NewContext(context.Background(), "s1", "hello")
		err := l.Execute(ctx, func(c *middleware.Context) error { return boom })
		if err != boom {
			t.Errorf("expected boom, got %v", err)
		}
		if !strings.Contains(buf.String(), "chat request failed") {
			t.Errorf("expected failure log line, got %s", buf.String())
		}
	})
}
