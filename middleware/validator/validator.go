package validator

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sweetpotato0/tutorgraph/middleware"
)

var (
	// ErrEmptyPrompt indicates the prompt was missing or whitespace only
	ErrEmptyPrompt = errors.New("prompt must not be empty")

	// ErrPromptTooLong indicates the prompt exceeded the configured limit
	ErrPromptTooLong = errors.New("prompt exceeds maximum length")
)

// PromptValidator rejects empty or oversized prompts before they reach
// the tutoring pipeline.
type PromptValidator struct {
	maxRunes int
}

// NewPromptValidator creates a prompt validation middleware. A maxRunes
// of zero disables the length check.
func NewPromptValidator(maxRunes int) *PromptValidator {
	return &PromptValidator{maxRunes: maxRunes}
}

// Name returns the middleware name
func (m *PromptValidator) Name() string {
	return "PromptValidator"
}

// Execute validates the prompt
func (m *PromptValidator) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if strings.TrimSpace(ctx.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if m.maxRunes > 0 && utf8.RuneCountInString(ctx.Prompt) > m.maxRunes {
		return ErrPromptTooLong
	}
	return next(ctx)
}
