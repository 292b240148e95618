// Package history implements the History Store Gateway: append-only
// conversation storage backed by SQLite, with in-process substring search
// and the corrupted-transcript detection the Agent Loop relies on for its
// clear-and-retry recovery step.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// ErrCorrupted is returned by Tail/Append callers' corruption checks — see
// agent.historyCorrupted, which scans a loaded slice and signals the Agent
// Loop to call Clear and restart with an empty prefix rather than repair
// the transcript in place.
var ErrCorrupted = errors.New("history: corrupted transcript detected")

// searchScanLimit bounds how many of the most recent rows Search scans;
// in-memory filtering over a bounded window is enough here, no need for
// SQL full-text search.
const searchScanLimit = 500

// Store is the sqlite-backed History Store Gateway, one per session.
// Access is serialized through a store-wide mutex, the same coarse
// single-writer idiom as the Task Store.
type Store struct {
	db        *sql.DB
	sessionID string

	mu      sync.RWMutex
	nextID  atomic.Int64
}

// Open creates (or reuses) the conversation_messages table in the database
// at path and returns a Store scoped to sessionID. path may be ":memory:".
func Open(path, sessionID string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	s := &Store{db: db, sessionID: sessionID}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.seedNextID(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversation_messages (
			id           INTEGER NOT NULL,
			session_id   TEXT NOT NULL,
			role         TEXT NOT NULL,
			content      TEXT NOT NULL DEFAULT '',
			tool_calls   TEXT NOT NULL DEFAULT '[]',
			tool_results TEXT NOT NULL DEFAULT '[]',
			created_at   TEXT NOT NULL,
			PRIMARY KEY (session_id, id)
		);
		CREATE INDEX IF NOT EXISTS idx_conversation_messages_session_created
			ON conversation_messages (session_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("history: init schema: %w", err)
	}
	return nil
}

// seedNextID primes the in-process atomic id counter from MAX(id) so
// ordering survives a process restart without depending on SQLite's own
// rowid. Message ids must stay monotonic across the life of the log.
func (s *Store) seedNextID() error {
	var max sql.NullInt64
	row := s.db.QueryRow(`SELECT MAX(id) FROM conversation_messages WHERE session_id = ?`, s.sessionID)
	if err := row.Scan(&max); err != nil {
		return fmt.Errorf("history: seed id counter: %w", err)
	}
	s.nextID.Store(max.Int64)
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records msg, assigning it the next monotonic id and CreatedAt if
// unset. It returns the persisted message with those fields filled in.
func (s *Store) Append(ctx context.Context, msg models.ConversationMessage) (models.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.nextID.Add(1)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = nowFunc()
	}

	toolCallsJSON, err := marshalToolCalls(msg.ToolCalls)
	if err != nil {
		return models.ConversationMessage{}, fmt.Errorf("history: marshal tool calls: %w", err)
	}
	toolResultsJSON, err := marshalToolResults(msg.ToolResults)
	if err != nil {
		return models.ConversationMessage{}, fmt.Errorf("history: marshal tool results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, session_id, role, content, tool_calls, tool_results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, s.sessionID, string(msg.Role), msg.Content, toolCallsJSON, toolResultsJSON, msg.CreatedAt.Format(timeLayout))
	if err != nil {
		return models.ConversationMessage{}, fmt.Errorf("history: append: %w", err)
	}
	return msg, nil
}

// Tail returns the most recent limit messages in chronological order. A
// non-positive limit returns the entire history.
func (s *Store) Tail(ctx context.Context, limit int) ([]models.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// Search scans the most recent searchScanLimit messages for terms
// appearing in Content, or tool calls/results naming one of toolNames, and
// returns up to limit matches ranked by match count then recency.
func (s *Store) Search(ctx context.Context, terms []string, toolNames []string, limit int) ([]models.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.loadRecent(ctx, searchScanLimit)
	if err != nil {
		return nil, err
	}

	type scored struct {
		msg   models.ConversationMessage
		score int
	}
	var candidates []scored
	for _, msg := range all {
		score := matchScore(msg, terms, toolNames)
		if score > 0 {
			candidates = append(candidates, scored{msg, score})
		}
	}

	// Stable sort by score desc, then by recency (higher ID) desc; loadRecent
	// already returns ascending-ID order so a stable reverse keeps recency as
	// the tiebreak once scores match.
	for i := len(candidates) - 1; i >= 0; i-- {
		j := i
		for j > 0 && candidates[j-1].score < candidates[j].score {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
			j--
		}
	}

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]models.ConversationMessage, len(candidates))
	for i, c := range candidates {
		out[i] = c.msg
	}
	return out, nil
}

func matchScore(msg models.ConversationMessage, terms, toolNames []string) int {
	score := 0
	lowerContent := strings.ToLower(msg.Content)
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		score += strings.Count(lowerContent, term)
	}
	for _, name := range toolNames {
		for _, call := range msg.ToolCalls {
			if call.Name == name {
				score++
			}
		}
	}
	return score
}

// Clear deletes the entire history for this session. It is the Agent
// Loop's response to a corrupted-transcript detection: clear everything
// and retry once with an empty prefix, never an in-place repair of just
// the offending pair.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_messages WHERE session_id = ?`, s.sessionID); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	s.nextID.Store(0)
	return nil
}

func (s *Store) loadAll(ctx context.Context) ([]models.ConversationMessage, error) {
	return s.query(ctx, `
		SELECT id, role, content, tool_calls, tool_results, created_at
		FROM conversation_messages WHERE session_id = ? ORDER BY id ASC`, s.sessionID)
}

func (s *Store) loadRecent(ctx context.Context, limit int) ([]models.ConversationMessage, error) {
	rows, err := s.query(ctx, `
		SELECT id, role, content, tool_calls, tool_results, created_at
		FROM conversation_messages WHERE session_id = ? ORDER BY id DESC LIMIT ?`, s.sessionID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]models.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []models.ConversationMessage
	for rows.Next() {
		var msg models.ConversationMessage
		var role, toolCallsJSON, toolResultsJSON, createdAt string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &toolCallsJSON, &toolResultsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		msg.Role = models.Role(role)
		if msg.ToolCalls, err = unmarshalToolCalls(toolCallsJSON); err != nil {
			return nil, fmt.Errorf("history: unmarshal tool calls: %w", err)
		}
		if msg.ToolResults, err = unmarshalToolResults(toolResultsJSON); err != nil {
			return nil, fmt.Errorf("history: unmarshal tool results: %w", err)
		}
		if msg.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("history: parse created_at: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}
