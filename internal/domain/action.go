package domain

import "maps"

// ToolCall is one named action proposed by a reasoning backend or matcher.
type ToolCall struct {
	ID     string
	Name   string
	Params map[string]any
}

func (c ToolCall) Clone() ToolCall {
	out := c
	out.Params = maps.Clone(c.Params)
	return out
}

type ActionSpec struct {
	Name        string
	Description string
	ParamSchema map[string]any
}

// ActionResult is the normalized outcome of a Tool Executor call.
type ActionResult struct {
	Success bool
	Message string
	Error   string
	Data    map[string]any
}

// Outcome renders the result the way it is shown to the user.
func (r ActionResult) Outcome() string {
	if !r.Success {
		reason := r.Error
		if reason == "" {
			reason = r.Message
		}
		if reason == "" {
			reason = "unknown error"
		}
		return "Failed: " + reason
	}
	if r.Message == "" {
		return "Done."
	}
	return r.Message
}

// IntentResult is what the local intent matcher returns for one input.
type IntentResult struct {
	Message  string
	Action   string
	Params   map[string]any
	Executed bool
	Result   *ActionResult
}
