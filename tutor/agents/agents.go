// Package agents provides the four tutoring handlers: classification,
// feynman-style explanation, direct teaching, and quiz generation. Each is an
// opaque state-to-state capability built on a generative provider.
package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sweetpotato0/tutorgraph/message"
	"github.com/sweetpotato0/tutorgraph/pkg/logging"
	"github.com/sweetpotato0/tutorgraph/provider"
	"github.com/sweetpotato0/tutorgraph/tutor"
)

const teacherPrompt = `You are a patient, knowledgeable tutor. Answer the
student's question directly and accurately, building on the conversation so
far. Prefer concrete examples over abstract definitions.`

const feynmanPrompt = `You are a tutor using the Feynman technique. Explain
the topic in the simplest possible terms, as if teaching a curious
twelve-year-old. Use analogies from everyday life and avoid jargon.`

const quizPrompt = `You are a quiz master. Based on the conversation so far,
ask the student short questions that test their understanding, one at a time.
When the student answers, tell them whether they were right and why.`

// Tokenizer counts tokens for history windowing.
type Tokenizer interface {
	CountTokens(text string) int
}

// Option configures a handler.
type Option func(*generative)

// WithTokenBudget trims the history sent to the provider to roughly the given
// token budget. The stored conversation is never trimmed.
func WithTokenBudget(tok Tokenizer, budget int) Option {
	return func(g *generative) {
		g.tokenizer = tok
		g.budget = budget
	}
}

// WithLogger overrides the handler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *generative) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// generative is the shared shape of the provider-backed handlers: replay the
// (windowed) history behind a system prompt, append the provider's reply.
type generative struct {
	name      string
	system    string
	provider  provider.Provider
	tokenizer Tokenizer
	budget    int
	logger    *slog.Logger
}

func newGenerative(name, system string, p provider.Provider, opts ...Option) *generative {
	g := &generative{
		name:     name,
		system:   system,
		provider: p,
		logger:   logging.WithComponent(name),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewTeacher creates the direct-teaching handler.
func NewTeacher(p provider.Provider, opts ...Option) tutor.Handler {
	return newGenerative(tutor.AgentTeacher, teacherPrompt, p, opts...)
}

// NewFeynman creates the feynman-style explanation handler.
func NewFeynman(p provider.Provider, opts ...Option) tutor.Handler {
	return newGenerative(tutor.AgentFeynman, feynmanPrompt, p, opts...)
}

// NewQuiz creates the quiz generation handler.
func NewQuiz(p provider.Provider, opts ...Option) tutor.Handler {
	return newGenerative(tutor.AgentQuiz, quizPrompt, p, opts...)
}

// Handle implements tutor.Handler. The handler appends exactly one assistant
// turn and leaves CurrentAgent unchanged, so routing stays sticky until the
// classifier redirects it.
func (g *generative) Handle(ctx context.Context, state *tutor.State) (*tutor.State, error) {
	reply, err := g.generate(ctx, state)
	if err != nil {
		return nil, err
	}

	next := state.Clone()
	next.Append(reply)
	return next, nil
}

func (g *generative) generate(ctx context.Context, state *tutor.State) (*message.Message, error) {
	window := windowHistory(state.Messages, g.tokenizer, g.budget)
	prompt := make([]*message.Message, 0, len(window)+1)
	prompt = append(prompt, message.NewMessage(message.RoleSystem, g.system))
	prompt = append(prompt, window...)

	reply, err := g.provider.Generate(ctx, prompt)
	if err != nil {
		g.logger.Error("provider call failed", "error", err)
		return nil, fmt.Errorf("%w: %s: %v", tutor.ErrGenerationFailure, g.name, err)
	}
	if reply == nil || reply.Content == "" {
		return nil, fmt.Errorf("%w: %s: provider returned empty reply", tutor.ErrGenerationFailure, g.name)
	}
	return reply, nil
}

// windowHistory keeps the newest turns that fit the token budget. The most
// recent turn is always kept regardless of budget.
func windowHistory(msgs []*message.Message, tok Tokenizer, budget int) []*message.Message {
	if tok == nil || budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		total += tok.CountTokens(msgs[i].Content)
		if total > budget && start < len(msgs) {
			break
		}
		start = i
	}
	return msgs[start:]
}
