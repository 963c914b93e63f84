package tutor

import (
	"time"

	"github.com/sweetpotato0/tutorgraph/message"
	"github.com/sweetpotato0/tutorgraph/session"
)

// Registered agent names. The set is fixed; CurrentAgent is always one of
// these once a session has been classified.
const (
	AgentClassifier = "classification_agent"
	AgentFeynman    = "feynman_agent"
	AgentTeacher    = "teacher_agent"
	AgentQuiz       = "quiz_agent"
)

// AgentNames returns the fixed set of agent names.
func AgentNames() []string {
	return []string{AgentClassifier, AgentFeynman, AgentTeacher, AgentQuiz}
}

// State is the conversation state for one session: the full ordered history
// plus the routing marker naming the agent that handles the next message.
// An empty CurrentAgent means the session has not been classified yet.
type State struct {
	Messages     []*message.Message
	CurrentAgent string

	createdAt time.Time
}

// NewUserTurn wraps a prompt as a user turn.
func NewUserTurn(content string) *message.Message {
	return message.NewMessage(message.RoleUser, content)
}

// NewState creates an empty conversation state.
func NewState() *State {
	return &State{createdAt: time.Now().UTC()}
}

// StateFromRecord rebuilds conversation state from a persisted record.
func StateFromRecord(record *session.Record) *State {
	if record == nil {
		return NewState()
	}
	return &State{
		Messages:     message.CloneMessages(record.Messages),
		CurrentAgent: record.CurrentAgent,
		createdAt:    record.CreatedAt,
	}
}

// Record serializes the state into a session record for the given ID.
func (s *State) Record(id string) *session.Record {
	createdAt := s.createdAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &session.Record{
		ID:           id,
		Messages:     message.CloneMessages(s.Messages),
		CurrentAgent: s.CurrentAgent,
		CreatedAt:    createdAt,
		UpdatedAt:    time.Now().UTC(),
	}
}

// Clone creates a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	return &State{
		Messages:     message.CloneMessages(s.Messages),
		CurrentAgent: s.CurrentAgent,
		createdAt:    s.createdAt,
	}
}

// Append adds a turn to the history. Turns are append-only; existing entries
// are never reordered or removed.
func (s *State) Append(msg *message.Message) {
	if msg == nil {
		return
	}
	s.Messages = append(s.Messages, msg)
}

// LastAssistant returns the newest assistant turn, or nil.
func (s *State) LastAssistant() *message.Message {
	return message.LastByRole(s.Messages, message.RoleAssistant)
}
