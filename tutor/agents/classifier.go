package agents

import (
	"context"
	"strings"

	"github.com/sweetpotato0/tutorgraph/provider"
	"github.com/sweetpotato0/tutorgraph/tutor"
)

const classifierPrompt = `You are the intake coordinator for a tutoring
service. Read the student's latest message and decide which tutor should
handle the conversation from here:

  teacher_agent - the student asks a factual or conceptual question
  feynman_agent - the student wants something explained more simply or intuitively
  quiz_agent    - the student wants to be tested or practice

Respond with the chosen tutor's name on the first line, exactly as written
above, followed by a short friendly sentence telling the student who will
help them next.`

// classifier labels the inbound message and sets CurrentAgent so the next
// message routes straight to the chosen tutor. It does not chain into that
// tutor within the same call; its own reply is the handoff message.
type classifier struct {
	*generative
}

// NewClassifier creates the classification handler.
func NewClassifier(p provider.Provider, opts ...Option) tutor.Handler {
	return &classifier{
		generative: newGenerative(tutor.AgentClassifier, classifierPrompt, p, opts...),
	}
}

// Handle implements tutor.Handler.
func (c *classifier) Handle(ctx context.Context, state *tutor.State) (*tutor.State, error) {
	reply, err := c.generate(ctx, state)
	if err != nil {
		return nil, err
	}

	target, content := parseRoute(reply.Content)

	next := state.Clone()
	next.CurrentAgent = target
	reply.Content = content
	next.Append(reply)

	c.logger.Debug("classified message", "target", target)
	return next, nil
}

// parseRoute extracts the chosen agent name from the model's reply and
// returns the remaining text as the visible handoff message. An unparseable
// reply falls back to the teacher, keeping the routing marker inside the
// registered set.
func parseRoute(reply string) (target, content string) {
	target = tutor.AgentTeacher

	lines := strings.Split(reply, "\n")
	kept := make([]string, 0, len(lines))
	found := false
	for _, line := range lines {
		label := strings.ToLower(strings.TrimSpace(line))
		if !found {
			switch {
			case strings.Contains(label, tutor.AgentFeynman):
				target = tutor.AgentFeynman
			case strings.Contains(label, tutor.AgentQuiz):
				target = tutor.AgentQuiz
			case strings.Contains(label, tutor.AgentTeacher):
				target = tutor.AgentTeacher
			default:
				kept = append(kept, line)
				continue
			}
			found = true
			continue
		}
		kept = append(kept, line)
	}

	content = strings.TrimSpace(strings.Join(kept, "\n"))
	if content == "" {
		content = "Connecting you with the right tutor now."
	}
	return target, content
}
