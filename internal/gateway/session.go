package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/internal/observability"
	"github.com/tanmaycode1/voiceagent/internal/stt"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// session is one client WebSocket connection's live state: the upgraded
// conn, its buffered outbound frame channel, the STT connection it owns
// exclusively, and the models.Session state machine it drives.
type session struct {
	srv    *Server
	conn   *websocket.Conn
	send   chan []byte
	params sessionParams
	logger *slog.Logger

	model *models.Session
	stt   *stt.Client
	loop  *agent.Loop
}

func newSession(srv *Server, conn *websocket.Conn, id string, params sessionParams, logger *slog.Logger) *session {
	return &session{
		srv:    srv,
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		params: params,
		logger: logger,
		model:  models.NewSession(id),
		loop:   agent.NewLoop(srv.provider, srv.registry, srv.executor, srv.history, srv.loopCfg),
	}
}

// run drives the session end to end: dial STT, spawn the three bound
// tasks, block on audio-forward as the connection supervisor, and
// guarantee teardown on every exit path.
func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.teardown()

	ctx = observability.AddSessionID(ctx, s.model.ID)

	if s.srv.metrics != nil {
		start := time.Now()
		s.srv.metrics.SessionStarted("voice")
		defer func() { s.srv.metrics.SessionEnded("voice", time.Since(start).Seconds()) }()
	}

	sttConn, err := stt.DialWithRetry(ctx, s.params.sttURL(s.srv.sttURL), s.srv.sttAPIKey)
	if err != nil {
		s.logger.Error("stt dial failed after retries", "error", err)
		if s.srv.metrics != nil {
			s.srv.metrics.RecordSTTConnect("error")
			s.srv.metrics.RecordError("stt", "dial_failed")
		}
		s.sendFrame(models.Frame{Type: models.FrameAgentError, Error: err.Error()})
		return
	}
	if s.srv.metrics != nil {
		s.srv.metrics.RecordSTTConnect("success")
	}
	s.stt = sttConn

	s.model.SetState(models.StateReady)

	go s.writeLoop(ctx)
	go s.sttConsumeLoop(ctx)

	// audio-forward runs on this goroutine: it is the connection
	// supervisor task, and its return (client disconnect or read error)
	// is what drives teardown.
	s.audioForwardLoop(ctx)
}

// audioForwardLoop reads binary client audio and forwards it to STT,
// gating (discarding) frames while an Agent Loop is in flight to avoid
// echo loops from whatever the client is currently rendering to the user.
func (s *session) audioForwardLoop(ctx context.Context) {
	s.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if s.model.IsAgentRunning() {
			continue
		}
		if state, _ := s.model.Snapshot(); state == models.StateReady {
			s.model.SetState(models.StateListening)
		}
		if err := s.stt.SendAudio(data); err != nil {
			s.logger.Warn("stt send audio failed", "error", err)
			return
		}
	}
}

// sttConsumeLoop reads TurnInfo events from STT, relays each as a
// flux_event frame, and starts an Agent Loop invocation on EndOfTurn with
// a non-empty transcript.
func (s *session) sttConsumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event, err := s.stt.ReadTurnInfo()
		if err != nil {
			s.logger.Warn("stt read failed", "error", err)
			return
		}

		s.relayFluxEvent(event)
		s.handleTurnInfo(ctx, event)
	}
}

func (s *session) relayFluxEvent(event models.FluxEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.sendFrame(models.Frame{Type: models.FrameFluxEvent, Data: data})
}

func (s *session) handleTurnInfo(ctx context.Context, event models.FluxEvent) {
	_, before := s.model.Snapshot()

	switch event.Event {
	case stt.EventEndOfTurn:
		s.model.SetState(models.StateTranscribing)
		s.model.AppendTranscript(event.Transcript)
		transcript := s.model.TakeTranscript()
		if transcript == "" {
			return
		}
		s.startAgentRun(ctx, transcript)
	default:
		s.model.AppendTranscript(event.Transcript)
		_, after := s.model.Snapshot()
		if s.model.IsAgentRunning() && utf8.RuneCountInString(after)-utf8.RuneCountInString(before) > InterruptThreshold {
			s.model.CancelAgentRun()
			if s.srv.metrics != nil {
				s.srv.metrics.RecordInterrupt("voice")
			}
		}
	}
}

// startAgentRun launches one Agent Loop invocation for transcript in its
// own goroutine: a leading agent_start frame, then one agent_event frame
// per AgentEvent; the loop's own trailing done event folds into that same
// agent_event stream.
func (s *session) startAgentRun(parent context.Context, transcript string) {
	runCtx, cancel := context.WithCancel(observability.AddRunID(parent, uuid.NewString()))
	s.model.BeginAgentRun(cancel)
	s.model.SetState(models.StateAgentRunning)

	s.sendFrame(models.Frame{Type: models.FrameAgentStart})

	events := make(chan models.AgentEvent, 16)
	go func() {
		if err := s.loop.Run(runCtx, transcript, events); err != nil {
			s.logger.Error("agent loop returned a fatal error", "error", err)
		}
	}()

	go func() {
		defer s.model.EndAgentRun()
		defer s.model.SetState(models.StateReady)
		for ev := range events {
			select {
			case <-runCtx.Done():
				continue // cancelled runs drain without emitting
			default:
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			s.sendFrame(models.Frame{Type: models.FrameAgentEvent, Data: data})
		}
	}()
}

func (s *session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (s *session) sendFrame(frame models.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case s.send <- data:
	default:
		s.logger.Warn("dropping frame: send buffer full", "type", frame.Type)
	}
}

// teardown guarantees cleanup on every exit path: cancel any in-flight
// Agent Loop, close the STT connection, close the client socket.
func (s *session) teardown() {
	s.model.SetState(models.StateClosing)
	s.model.CancelAgentRun()
	if s.stt != nil {
		_ = s.stt.Close()
	}
	_ = s.conn.Close()
	s.model.SetState(models.StateClosed)
}
