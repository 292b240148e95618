package agent

import "github.com/tanmaycode1/voiceagent/pkg/models"

// historyCorrupted reports whether history contains a dangling tool call —
// an assistant message's ToolCalls entry with no matching ToolResults in a
// later message, or a ToolResults entry whose ToolCallID never appeared in
// a preceding ToolCalls entry. It never edits history in place: the
// Agent Loop responds to a corrupted load by clearing history entirely
// and retrying with an empty prefix, not by patching around the broken
// pair.
func historyCorrupted(history []models.ConversationMessage) bool {
	pending := make(map[string]struct{})

	for _, msg := range history {
		for _, call := range msg.ToolCalls {
			if call.ID == "" {
				continue
			}
			pending[call.ID] = struct{}{}
		}
		for _, result := range msg.ToolResults {
			if result.ToolCallID == "" {
				return true
			}
			if _, ok := pending[result.ToolCallID]; !ok {
				return true
			}
			delete(pending, result.ToolCallID)
		}
	}

	return len(pending) > 0
}
