package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/internal/agent/providers"
	"github.com/tanmaycode1/voiceagent/internal/config"
	"github.com/tanmaycode1/voiceagent/internal/gateway"
	"github.com/tanmaycode1/voiceagent/internal/history"
	"github.com/tanmaycode1/voiceagent/internal/observability"
	"github.com/tanmaycode1/voiceagent/internal/store"
	"github.com/tanmaycode1/voiceagent/internal/tools"
)

// globalHistorySessionID is the single History Store scope this process
// uses: history is process-global, so every connection shares one
// conversation log rather than getting its own.
const globalHistorySessionID = "global"

func runServe(parent context.Context, configPath string, debug bool) error {
	logLevel := "info"
	if debug {
		logLevel = "debug"
	}
	appLogger := observability.NewLogger(observability.LogConfig{Level: logLevel, Format: "json"})

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	ctx := parent
	appLogger.Info(ctx, "configuration loaded",
		"llm_provider", cfg.LLM.Provider,
		"listen_addr", cfg.ListenAddr,
		"database_path", cfg.Database.Path,
	)

	taskStore, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening task store: %w", err)
	}

	historyStore, err := history.Open(cfg.Database.Path, globalHistorySessionID)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("constructing LLM provider: %w", err)
	}

	registry := agent.NewToolRegistry()
	tools.RegisterAll(registry, taskStore, historyStore)

	metrics := observability.NewMetrics()
	eventStore := observability.NewMemoryEventStore(10000)
	recorder := observability.NewEventRecorder(eventStore, appLogger)

	loopCfg := agent.DefaultLoopConfig()
	loopCfg.Model = cfg.LLM.Model
	loopCfg.CostRates = cfg.CostTable[cfg.LLM.Model]
	if _, ok := cfg.CostTable[cfg.LLM.Model]; !ok {
		appLogger.Warn(ctx, "no cost rates configured for model, cost accounting reports zero", "model", cfg.LLM.Model)
	}
	loopCfg.SystemPromptFunc = func() string { return buildSystemPrompt(registry) }
	loopCfg.Metrics = metrics
	loopCfg.Recorder = recorder

	gwLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: observability.LogLevelFromString(cfg.LogLevel),
	}))

	srv := gateway.NewServer(gateway.Config{
		Provider:  provider,
		Registry:  registry,
		History:   historyStore,
		LoopCfg:   loopCfg,
		STTURL:    cfg.STT.BaseURL,
		STTAPIKey: cfg.STT.APIKey,
		Logger:    gwLogger,
		Metrics:   metrics,
	})

	mux := http.NewServeMux()
	mux.Handle("/agent", srv)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/timeline", timelineHandler(eventStore))

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info(ctx, "session orchestrator listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		appLogger.Info(ctx, "shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildProvider(cfg *config.Config) (agent.LLMProvider, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return providers.NewOpenAIProvider(cfg.LLM.APIKey)
	default:
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.LLM.APIKey,
			DefaultModel: cfg.LLM.Model,
		})
	}
}

// buildSystemPrompt composes the system prompt: the current wall-clock
// timestamp (so the model resolves relative dates), the tool
// enumeration, and behavioural guidelines.
func buildSystemPrompt(registry *agent.ToolRegistry) string {
	names := make([]string, 0)
	for _, t := range registry.AsLLMTools() {
		names = append(names, t.Name())
	}
	return fmt.Sprintf(
		"The current UTC time is %s. You are a voice task-management assistant. "+
			"Be concise: replies are read aloud or shown in a small UI, not a chat "+
			"transcript. When the user asks to see, filter, or review tasks, call "+
			"change_ui_view or search_tasks so the visible view matches what you "+
			"describe, rather than only saying it in words. Available tools: %s.",
		time.Now().UTC().Format(time.RFC3339),
		names,
	)
}

// timelineHandler serves the recorded event timeline for one agent run
// (?run_id=...) or one session (?session_id=...), as JSON.
func timelineHandler(eventStore observability.EventStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			events []*observability.Event
			err    error
		)
		switch {
		case r.URL.Query().Get("run_id") != "":
			events, err = eventStore.GetByRunID(r.URL.Query().Get("run_id"))
		case r.URL.Query().Get("session_id") != "":
			events, err = eventStore.GetBySessionID(r.URL.Query().Get("session_id"))
		default:
			http.Error(w, "run_id or session_id query parameter required", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(observability.BuildTimeline(events))
	})
}
