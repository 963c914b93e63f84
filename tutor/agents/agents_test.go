package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sweetpotato0/tutorgraph/message"
	"github.com/sweetpotato0/tutorgraph/provider"
	"github.com/sweetpotato0/tutorgraph/tutor"
)

// scriptedProvider returns canned replies and records the prompts it saw.
type scriptedProvider struct {
	reply   string
	err     error
	prompts [][]*message.Message
}

func (p *scriptedProvider) Generate(ctx context.Context, msgs []*message.Message) (*message.Message, error) {
	p.prompts = append(p.prompts, msgs)
	if p.err != nil {
		return nil, p.err
	}
	return message.NewMessage(message.RoleAssistant, p.reply), nil
}

func stateWithPrompt(prompt string) *tutor.State {
	state := tutor.NewState()
	state.Append(tutor.NewUserTurn(prompt))
	return state
}

func TestTeacherAppendsAssistantTurn(t *testing.T) {
	p := &scriptedProvider{reply: "A binary tree is a hierarchical structure."}
	handler := NewTeacher(p)

	state := stateWithPrompt("What is a binary tree?")
	state.CurrentAgent = tutor.AgentTeacher

	next, err := handler.Handle(context.Background(), state)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if len(next.Messages) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(next.Messages))
	}
	last := next.LastAssistant()
	if last == nil || last.Content != "A binary tree is a hierarchical structure." {
		t.Errorf("unexpected assistant turn: %+v", last)
	}
	if next.CurrentAgent != tutor.AgentTeacher {
		t.Errorf("teacher handler should leave CurrentAgent sticky, got %q", next.CurrentAgent)
	}
}

func TestHandlerDoesNotMutateInputState(t *testing.T) {
	p := &scriptedProvider{reply: "answer"}
	handler := NewTeacher(p)

	state := stateWithPrompt("question")
	if _, err := handler.Handle(context.Background(), state); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if len(state.Messages) != 1 {
		t.Errorf("handler mutated input state: %d turns", len(state.Messages))
	}
}

func TestHandlerSendsSystemPromptAndHistory(t *testing.T) {
	p := &scriptedProvider{reply: "ok"}
	handler := NewFeynman(p)

	state := stateWithPrompt("Explain recursion")
	if _, err := handler.Handle(context.Background(), state); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if len(p.prompts) != 1 {
		t.Fatalf("expected one provider call, got %d", len(p.prompts))
	}
	sent := p.prompts[0]
	if sent[0].Role != message.RoleSystem {
		t.Errorf("first prompt message should be the system prompt, got %s", sent[0].Role)
	}
	if sent[len(sent)-1].Content != "Explain recursion" {
		t.Errorf("last prompt message should be the user turn")
	}
}

func TestHandlerWrapsProviderFailure(t *testing.T) {
	p := &scriptedProvider{err: errors.New("model overloaded")}
	handler := NewQuiz(p)

	_, err := handler.Handle(context.Background(), stateWithPrompt("quiz me"))
	if !errors.Is(err, tutor.ErrGenerationFailure) {
		t.Errorf("expected ErrGenerationFailure, got %v", err)
	}
}

func TestHandlerRejectsEmptyReply(t *testing.T) {
	p := &scriptedProvider{reply: ""}
	handler := NewTeacher(p)

	_, err := handler.Handle(context.Background(), stateWithPrompt("hello"))
	if !errors.Is(err, tutor.ErrGenerationFailure) {
		t.Errorf("expected ErrGenerationFailure for empty reply, got %v", err)
	}
}

func TestClassifierSetsCurrentAgent(t *testing.T) {
	cases := []struct {
		reply  string
		target string
	}{
		{"teacher_agent\nOur teacher will take it from here.", tutor.AgentTeacher},
		{"feynman_agent\nLet's break this down simply.", tutor.AgentFeynman},
		{"quiz_agent\nTime for some practice questions!", tutor.AgentQuiz},
	}

	for _, tc := range cases {
		p := &scriptedProvider{reply: tc.reply}
		handler := NewClassifier(p)

		next, err := handler.Handle(context.Background(), stateWithPrompt("What is a binary tree?"))
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if next.CurrentAgent != tc.target {
			t.Errorf("expected CurrentAgent %q, got %q", tc.target, next.CurrentAgent)
		}
		last := next.LastAssistant()
		if last == nil {
			t.Fatalf("classifier must append an assistant turn")
		}
		if strings.Contains(last.Content, tc.target) {
			t.Errorf("routing label should be stripped from the visible reply: %q", last.Content)
		}
	}
}

func TestClassifierFallsBackToTeacher(t *testing.T) {
	p := &scriptedProvider{reply: "I am not sure what you mean."}
	handler := NewClassifier(p)

	next, err := handler.Handle(context.Background(), stateWithPrompt("hmm"))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if next.CurrentAgent != tutor.AgentTeacher {
		t.Errorf("expected fallback to teacher, got %q", next.CurrentAgent)
	}
	if next.LastAssistant() == nil {
		t.Errorf("classifier must still append an assistant turn")
	}
}

func TestParseRouteEmptyRemainder(t *testing.T) {
	target, content := parseRoute("quiz_agent")
	if target != tutor.AgentQuiz {
		t.Errorf("expected quiz target, got %q", target)
	}
	if content == "" {
		t.Errorf("expected a non-empty handoff message")
	}
}

type wordCounter struct{}

func (wordCounter) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func TestWindowHistoryRespectsBudget(t *testing.T) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleUser, "one two three four five"),
		message.NewMessage(message.RoleAssistant, "one two three"),
		message.NewMessage(message.RoleUser, "one two"),
	}

	window := windowHistory(msgs, wordCounter{}, 5)
	if len(window) != 2 {
		t.Fatalf("expected 2 messages in window, got %d", len(window))
	}
	if window[0].Content != "one two three" {
		t.Errorf("expected oldest messages trimmed first")
	}
}

func TestWindowHistoryAlwaysKeepsNewestTurn(t *testing.T) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleUser, "one two three four five six"),
	}

	window := windowHistory(msgs, wordCounter{}, 2)
	if len(window) != 1 {
		t.Errorf("newest turn must survive trimming, got %d messages", len(window))
	}
}

func TestWindowHistoryNoTokenizer(t *testing.T) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleUser, "hello"),
	}
	window := windowHistory(msgs, nil, 0)
	if len(window) != 1 {
		t.Errorf("expected full history without tokenizer")
	}
}

// Assert the common handlers still satisfy provider.Provider-based wiring.
var _ provider.Provider = (*scriptedProvider)(nil)
