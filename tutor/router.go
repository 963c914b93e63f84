package tutor

// Route returns the name of the agent that should handle the next message:
// the session's current agent when one is set, or the classifier for sessions
// that have not been classified yet. It is a pure lookup; content-based
// routing belongs to the classifier agent, which sets CurrentAgent for the
// following turn.
func Route(state *State) string {
	if state == nil || state.CurrentAgent == "" {
		return AgentClassifier
	}
	return state.CurrentAgent
}
