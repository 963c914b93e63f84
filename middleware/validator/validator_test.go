package validator

import (
	"strings"
	"testing"

	"github.com/sweetpotato0/tutorgraph/middleware"
)

func TestPromptValidator(t *testing.T) {
	t.Run("passes valid prompt", func(t *testing.T) {
		v := NewPromptValidator(100)
		ctx := &middleware.Context{Prompt: "What is a binary tree?"}

		called := false
		err := v.Execute(ctx, func(c *middleware.Context) error {
			called = true
			return nil
		})
		if err != nil {
			t.Errorf("valid prompt rejected: %v", err)
		}
		if !called {
			t.Error("next handler was not called")
		}
	})

	t.Run("rejects empty prompt", func(t *testing.T) {
		v := NewPromptValidator(100)

		for _, prompt := range []string{"", "   ", "\n\t"} {
			ctx := &middleware.Context{Prompt: prompt}
			err := v.Execute(ctx, func(c *middleware.Context) error { return nil })
			if err != ErrEmptyPrompt {
				t.Errorf("prompt %q: expected ErrEmptyPrompt, got %v", prompt, err)
			}
		}
	})

	t.Run("rejects oversized prompt", func(t *testing.T) {
		v := NewPromptValidator(10)
		ctx := &middleware.Context{Prompt: strings.Repeat("a", 11)}

		err := v.Execute(ctx, func(c *middleware.Context) error { return nil })
		if err != ErrPromptTooLong {
			t.Errorf("expected ErrPromptTooLong, got %v", err)
		}
	})

	t.Run("zero limit disables length check", func(t *testing.T) {
		v := NewPromptValidator(0)
		ctx := &middleware.Context{Prompt: strings.Repeat("a", 10000)}

		err := v.Execute(ctx, func(c *middleware.Context) error { return nil })
		if err != nil {
			t.Errorf("length check should be disabled: %v", err)
		}
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		v := NewPromptValidator(3)
		ctx := &middleware.Context{Prompt: "数据结构"}

		err := v.Execute(ctx, func(c *middleware.Context) error { return nil })
		if err != ErrPromptTooLong {
			t.Errorf("expected ErrPromptTooLong for 4 runes with limit 3, got %v", err)
		}

		ctx = &middleware.Context{Prompt: "数据树"}
		err = v.Execute(ctx, func(c *middleware.Context) error { return nil })
		if err != nil {
			t.Errorf("3 runes within limit rejected: %v", err)
		}
	})
}
