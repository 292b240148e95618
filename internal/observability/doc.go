// Package observability provides monitoring and debugging for the voice
// agent through metrics, structured logging, and a per-run event timeline.
//
// # Overview
//
// The package covers three concerns:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Events - An in-memory timeline of agent runs for debugging
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - LLM API request latency, token usage, and estimated cost
//   - Tool execution performance
//   - Error rates by component and type
//   - Active session counts and session lifetimes
//   - STT connection outcomes and client interrupts
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track LLM requests
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-sonnet-4-5", "success",
//	    time.Since(start).Seconds(), promptTokens, completionTokens)
//
//	// Track tool execution
//	start = time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("create_task", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx := observability.AddSessionID(ctx, sessionID)
//	ctx = observability.AddRunID(ctx, runID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "turn started",
//	    "transcript_length", len(transcript),
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "LLM request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Events
//
// The event timeline records what happened inside each agent run so a
// misbehaving turn can be reconstructed after the fact:
//
//	store := observability.NewMemoryEventStore(10000)
//	recorder := observability.NewEventRecorder(store, logger)
//
//	ctx = observability.AddRunID(ctx, runID)
//	recorder.RecordRunStart(ctx, runID, map[string]interface{}{"query": transcript})
//	recorder.RecordToolStart(ctx, "search_tasks", input)
//	recorder.RecordToolEnd(ctx, "search_tasks", elapsed, output, nil)
//	recorder.RecordRunEnd(ctx, time.Since(start), nil)
//
//	// Later: reconstruct the run
//	events, _ := store.GetByRunID(runID)
//	fmt.Println(observability.FormatTimeline(observability.BuildTimeline(events)))
//
// # Context Propagation
//
// All components integrate with Go's context for automatic correlation:
//
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "sess-456")
//	ctx = observability.AddRunID(ctx, "run-789")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "Processing") // Includes request_id, session_id, etc.
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - The event store is in-memory and directly inspectable
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# LLM request latency (95th percentile)
//	histogram_quantile(0.95, rate(voiceagent_llm_request_duration_seconds_bucket[5m]))
//
//	# Error rate
//	rate(voiceagent_errors_total[5m])
//
//	# Active sessions
//	voiceagent_active_sessions
//
//	# Tool execution time
//	rate(voiceagent_tool_execution_duration_seconds_sum[5m]) /
//	rate(voiceagent_tool_execution_duration_seconds_count[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: voiceagent_errors_total > threshold
//   - High LLM latency: p95 latency > 10s
//   - STT connectivity: rate(voiceagent_stt_connects_total{status="error"}) > threshold
//   - Session accumulation: voiceagent_active_sessions growing unbounded
package observability
