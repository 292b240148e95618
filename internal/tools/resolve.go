package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tanmaycode1/voiceagent/internal/datetime"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// splitTerms breaks a free-text query into whitespace-separated search
// terms, so a multi-word query like "dentist tomorrow" OR-matches either
// word instead of requiring the whole phrase as one substring.
func splitTerms(query string) []string {
	return strings.Fields(query)
}

// parseRFC3339 accepts the timestamp formats a model resolving "tomorrow at
// 5pm" or "next Friday" might actually emit — not just strict RFC3339 — by
// falling back to datetime.NormalizeTimestamp (date-only strings, bare
// epoch seconds/milliseconds) when strict parsing fails.
func parseRFC3339(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if normalized := datetime.NormalizeTimestamp(s); normalized != nil {
		return time.UnixMilli(normalized.TimestampMs).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%q is not a recognized date/time", s)
}

// resolveTaskID implements the by-id-or-by-search-match contract shared
// by update_task and delete_task. If id is given, it is
// used directly without a store round-trip. Otherwise query is searched;
// zero or more than one match is reported as a failure envelope naming the
// candidates, rather than guessing which task the caller meant.
func resolveTaskID(ctx context.Context, store TaskStore, id, query string) (string, *models.ToolEnvelope) {
	if id != "" {
		return id, nil
	}
	if query == "" {
		fail := models.Fail("either id or query is required")
		return "", &fail
	}

	matches, err := store.Search(ctx, splitTerms(query), models.TaskFilter{}, 5)
	if err != nil {
		fail := models.Fail(err.Error())
		return "", &fail
	}
	switch len(matches) {
	case 0:
		fail := models.Fail(fmt.Sprintf("no task matches %q", query))
		return "", &fail
	case 1:
		return matches[0].ID, nil
	default:
		var titles []string
		for _, m := range matches {
			titles = append(titles, fmt.Sprintf("%s (%s)", m.Title, m.ID))
		}
		fail := models.Fail(fmt.Sprintf("%q matches more than one task: %v — ask the user which one, or call show_choices", query, titles))
		return "", &fail
	}
}
