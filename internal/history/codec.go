package history

import (
	"encoding/json"
	"time"

	"github.com/tanmaycode1/voiceagent/pkg/models"
)

const timeLayout = time.RFC3339Nano

// nowFunc is a var so tests can override it; production code never needs to.
var nowFunc = time.Now

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func marshalToolCalls(calls []models.ToolCall) (string, error) {
	if len(calls) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(calls)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalToolCalls(s string) ([]models.ToolCall, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var calls []models.ToolCall
	if err := json.Unmarshal([]byte(s), &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

func marshalToolResults(results []models.ToolResult) (string, error) {
	if len(results) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(results)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalToolResults(s string) ([]models.ToolResult, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var results []models.ToolResult
	if err := json.Unmarshal([]byte(s), &results); err != nil {
		return nil, err
	}
	return results, nil
}
