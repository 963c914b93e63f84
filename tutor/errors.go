package tutor

import "errors"

// Sentinel errors for the invocation failure taxonomy. None of these are
// retried inside the orchestrator; they propagate to the transport layer,
// which decides the user-visible representation.
var (
	// ErrUnknownAgent indicates a routing target outside the registered
	// agent set. This is a configuration error, never defaulted around.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrGenerationFailure indicates the agent handler could not produce
	// output, e.g. the underlying model call failed.
	ErrGenerationFailure = errors.New("generation failed")

	// ErrNoResponse indicates dispatch completed without appending an
	// assistant turn.
	ErrNoResponse = errors.New("no response generated")

	// ErrStoreUnavailable indicates a session store read or write failed.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
