package tools

import (
	"github.com/tanmaycode1/voiceagent/internal/agent"
	"github.com/tanmaycode1/voiceagent/pkg/models"
)

// envelope wraps a models.ToolEnvelope into the agent.ToolResult shape
// Execute returns, encoding it to the wire string every tool's result
// ultimately carries across the LLM/history boundary. Validation and
// execution failures both arrive here as a models.Fail envelope with
// IsError left false — {success:false, message} stays observable to the
// model instead of breaking the stream, so this never sets
// agent.ToolResult.IsError.
func envelope(env models.ToolEnvelope) *agent.ToolResult {
	return &agent.ToolResult{Content: env.Encode()}
}
