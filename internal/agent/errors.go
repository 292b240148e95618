package agent

import (
	"fmt"
)

// LoopError is a fatal Agent Loop failure: the history store itself was
// unusable at some phase of the turn. Provider and tool failures never
// become a LoopError — they surface as error events on the AgentEvent
// stream so the session stays alive.
type LoopError struct {
	// Phase is the loop phase where the error occurred
	Phase LoopPhase

	// Iteration is the loop iteration where the error occurred
	Iteration int

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("loop error at %s (iteration %d): %s", e.Phase, e.Iteration, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("loop error at %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
	}
	return fmt.Sprintf("loop error at %s (iteration %d)", e.Phase, e.Iteration)
}

// Unwrap returns the underlying error.
func (e *LoopError) Unwrap() error {
	return e.Cause
}

// LoopPhase identifies where in a turn a LoopError occurred.
type LoopPhase string

const (
	// PhaseInit covers history load and the user-message append.
	PhaseInit LoopPhase = "init"

	// PhaseStream covers the LLM streaming call.
	PhaseStream LoopPhase = "stream"

	// PhaseExecuteTools covers tool dispatch.
	PhaseExecuteTools LoopPhase = "execute_tools"

	// PhaseComplete covers turn persistence and the final done event.
	PhaseComplete LoopPhase = "complete"
)
