package models

import "encoding/json"

// UICommand is the closed sum type a tool result may carry to drive the
// client's view. Exactly two variants exist; there is no open-ended
// "type string + arbitrary payload" escape hatch, so a new variant is a
// deliberate code change here, not a silent client-side addition.
type UICommand interface {
	uiCommandType() string
}

// ViewMode selects which screen the client renders.
type ViewMode string

const (
	ViewDaily   ViewMode = "daily"
	ViewWeekly  ViewMode = "weekly"
	ViewMonthly ViewMode = "monthly"
	ViewList    ViewMode = "list"
)

// ChangeView asks the client to switch views, optionally pre-filtered,
// sorted, or populated with search results.
type ChangeView struct {
	ViewMode       ViewMode     `json:"view_mode"`
	TargetDate     *string      `json:"target_date,omitempty"`
	SortBy         string       `json:"sort_by,omitempty"`
	SortOrder      string       `json:"sort_order,omitempty"`
	FilterStatus   TaskStatus   `json:"filter_status,omitempty"`
	FilterPriority TaskPriority `json:"filter_priority,omitempty"`
	SearchResults  []string     `json:"search_results,omitempty"`
	SearchQuery    string       `json:"search_query,omitempty"`
}

func (ChangeView) uiCommandType() string { return "change_view" }

// Choice is one option in a ShowChoices prompt.
type Choice struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value"`
}

// ShowChoices asks the client to present a disambiguation prompt, used by
// tools like delete_task when a free-text match is ambiguous.
type ShowChoices struct {
	Title   string   `json:"title"`
	Choices []Choice `json:"choices"`
}

func (ShowChoices) uiCommandType() string { return "show_choices" }

// MarshalUICommand wraps a UICommand with its discriminant for the tool
// envelope's ui_command field.
func MarshalUICommand(cmd UICommand) json.RawMessage {
	if cmd == nil {
		return nil
	}
	payload := struct {
		Type string `json:"type"`
	}{Type: cmd.uiCommandType()}

	inner, err := json.Marshal(cmd)
	if err != nil {
		return nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(inner, &merged); err != nil {
		return nil
	}
	tagged, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var tag map[string]json.RawMessage
	_ = json.Unmarshal(tagged, &tag)
	for k, v := range tag {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil
	}
	return out
}
