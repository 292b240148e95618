// Package stt implements the WebSocket client the Session Orchestrator uses
// to proxy audio to the external speech-to-text provider and receive
// TurnInfo events back.
package stt

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tanmaycode1/voiceagent/internal/backoff"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// TurnInfo event names the STT provider emits.
const (
	EventStartOfTurn    = "StartOfTurn"
	EventUpdate         = "Update"
	EventEagerEndOfTurn = "EagerEndOfTurn"
	EventTurnResumed    = "TurnResumed"
	EventEndOfTurn      = "EndOfTurn"
)

// DialAttempts and DialGap bound the STT reconnect policy: up to 3
// attempts, 500ms between.
const (
	DialAttempts = 3
	DialGap      = 500 * time.Millisecond
)

// Client is a live connection to the STT provider. One Client per
// session; the session owns the connection exclusively.
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Dial opens a single WebSocket connection to the STT provider at url,
// authenticating with a bearer token in the request header.
func Dial(ctx context.Context, url, apiKey string) (*Client, error) {
	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("stt: dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// dialPolicy is a flat policy: Factor 1 and zero jitter make every gap
// exactly DialGap, rather than an exponential ramp.
var dialPolicy = backoff.BackoffPolicy{
	InitialMs: float64(DialGap.Milliseconds()),
	MaxMs:     float64(DialGap.Milliseconds()),
	Factor:    1,
}

// DialWithRetry dials up to DialAttempts times with DialGap between
// attempts. The final attempt's error is returned so the caller can
// report it verbatim in the agent_error frame.
func DialWithRetry(ctx context.Context, url, apiKey string) (*Client, error) {
	result, err := backoff.RetryWithBackoff(ctx, dialPolicy, DialAttempts, func(int) (*Client, error) {
		return Dial(ctx, url, apiKey)
	})
	if err == nil {
		return result.Value, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("stt: failed after %d attempts: %w", DialAttempts, result.LastError)
}

// SendAudio forwards one frame of raw client audio to the STT provider.
func (c *Client) SendAudio(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("stt: connection closed")
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// ReadTurnInfo blocks for the next TurnInfo event from the STT provider.
// Returns an error when the connection is closed or the read fails.
func (c *Client) ReadTurnInfo() (models.FluxEvent, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	var event models.FluxEvent
	if err := conn.ReadJSON(&event); err != nil {
		return models.FluxEvent{}, fmt.Errorf("stt: read: %w", err)
	}
	return event, nil
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
