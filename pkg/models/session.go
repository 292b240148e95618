package models

import (
	"context"
	"sync"
)

// SessionState is the Session Orchestrator's state machine position for one
// client WebSocket connection. Speaking is never set here: the client
// infers it from the stream of text/done events and never reports it back.
type SessionState string

const (
	StateOpening      SessionState = "opening"
	StateReady        SessionState = "ready"
	StateListening    SessionState = "listening"
	StateTranscribing SessionState = "transcribing"
	StateAgentRunning SessionState = "agent_running"
	StateClosing      SessionState = "closing"
	StateClosed       SessionState = "closed"
)

// Session is the ephemeral, in-memory entity tied to a single client
// WebSocket connection: the live STT connection, the current partial
// transcript, and the flags the orchestrator consults to gate audio and
// cancel a running agent turn. It is never persisted; it dies with the
// connection.
type Session struct {
	mu sync.Mutex

	ID    string
	State SessionState

	// PartialTranscript accumulates STT Update events since the last
	// StartOfTurn/EndOfTurn boundary.
	PartialTranscript string

	// AgentRunning is true from agent_start until done/agent_error.
	AgentRunning bool

	// TeardownRequested is set once connection close has begun, so
	// in-flight goroutines know to stop without a second close.
	TeardownRequested bool

	// STTReconnectAttempts counts consecutive STT dial failures, reset to
	// zero on a successful connect.
	STTReconnectAttempts int

	cancelAgent context.CancelFunc
}

// NewSession creates a Session in StateOpening.
func NewSession(id string) *Session {
	return &Session{ID: id, State: StateOpening}
}

// SetState transitions the session's state under lock.
func (s *Session) SetState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
}

// Snapshot returns the current state and transcript under lock.
func (s *Session) Snapshot() (SessionState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State, s.PartialTranscript
}

// AppendTranscript appends an STT partial-transcript fragment.
func (s *Session) AppendTranscript(fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PartialTranscript += fragment
}

// TakeTranscript returns the accumulated transcript and clears it
// atomically, for use at end-of-turn.
func (s *Session) TakeTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.PartialTranscript
	s.PartialTranscript = ""
	return t
}

// BeginAgentRun records a cancel function for the in-flight Agent Loop
// invocation and marks the session as agent-running. Any previously
// recorded cancel function is invoked first, since the orchestrator must
// never let two invocations overlap.
func (s *Session) BeginAgentRun(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelAgent != nil {
		s.cancelAgent()
	}
	s.cancelAgent = cancel
	s.AgentRunning = true
}

// EndAgentRun clears the agent-running flag and cancel handle.
func (s *Session) EndAgentRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAgent = nil
	s.AgentRunning = false
}

// CancelAgentRun cancels the in-flight Agent Loop invocation, if any. Used
// for client-interrupt (a long new transcript arriving mid-run) and for
// teardown.
func (s *Session) CancelAgentRun() {
	s.mu.Lock()
	cancel := s.cancelAgent
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// IsAgentRunning reports whether an Agent Loop invocation is in flight.
func (s *Session) IsAgentRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AgentRunning
}
