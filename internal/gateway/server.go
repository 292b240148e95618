// Package gateway implements the Session Orchestrator: the client-facing
// WebSocket endpoint that multiplexes three streams onto one connection —
// client audio to the STT provider, STT transcript events back to the
// client, and Agent Loop progress events back to the client.
//
// The connection carries exactly one implicit "method" (listen and
// respond): there is no request/response frame dispatch, no handshake,
// no method table. Each session owns its STT connection, a buffered send
// channel drained by a dedicated write loop, and a cancellation context
// that guarantees teardown on every exit path.
package gateway

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/internal/observability"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsSendBuffer      = 64
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 45 * time.Second
)

// InterruptThreshold is the client-interrupt length threshold: an
// in-flight Agent Loop is cancelled once the partial transcript grows by
// more than this many runes while the loop is running. Short filler
// ("okay", "mm") stays under it; a genuine new sentence does not.
const InterruptThreshold = 8

// HistoryStore is the subset of history.Store the orchestrator itself
// needs directly (beyond what it hands to agent.Loop and tools.RegisterAll).
type HistoryStore = agent.HistoryStore

// Server is the process-wide Session Orchestrator: one upgrader bound to
// shared, process-global dependencies (history is process-global, so
// every connection shares the same task store and history store). Each
// accepted connection gets its own *session and
// its own *agent.Loop (for independent event sequencing) but the same
// underlying provider, registry, and stores.
type Server struct {
	provider agent.LLMProvider
	registry *agent.ToolRegistry
	executor *agent.ToolExecutor
	history  HistoryStore
	loopCfg  agent.LoopConfig

	sttURL    string
	sttAPIKey string

	logger  *slog.Logger
	metrics *observability.Metrics

	upgrader websocket.Upgrader

	nextSessionSeq atomic.Uint64
}

// Config bundles Server's dependencies.
type Config struct {
	Provider  agent.LLMProvider
	Registry  *agent.ToolRegistry
	Executor  *agent.ToolExecutor
	History   HistoryStore
	LoopCfg   agent.LoopConfig
	STTURL    string
	STTAPIKey string
	Logger    *slog.Logger
	// Metrics, if set, tracks ActiveSessions alongside whatever LoopCfg.Metrics
	// records for LLM/tool calls. Left nil, session counting is a no-op.
	Metrics *observability.Metrics
}

// NewServer constructs a Server. Executor and Logger may be left zero; a
// default tool executor and slog.Default() are substituted.
func NewServer(cfg Config) *Server {
	if cfg.Executor == nil {
		cfg.Executor = agent.NewToolExecutor(cfg.Registry, agent.DefaultToolExecConfig())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		provider:  cfg.Provider,
		registry:  cfg.Registry,
		executor:  cfg.Executor,
		history:   cfg.History,
		loopCfg:   cfg.LoopCfg,
		sttURL:    cfg.STTURL,
		sttAPIKey: cfg.STTAPIKey,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request to a WebSocket and runs one session to
// completion. It never returns until the session has fully torn down; the
// handler goroutine doubles as the session's connection supervisor.
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	params := parseSessionParams(r.URL.Query())
	id := uuid.NewString()
	logger := srv.logger.With("session_id", id, "seq", srv.nextSessionSeq.Add(1))

	sess := newSession(srv, conn, id, params, logger)
	sess.run(r.Context())
}
