package application

import "github.com/bnema/cuedesk/internal/domain"

type EventType string

const (
	EventText                 EventType = "text"
	EventTools                EventType = "tools"
	EventToolStatus           EventType = "tool_status"
	EventConfirmationRequired EventType = "confirmation_required"
	// EventDone is always the last event of a stream and carries the response.
	EventDone EventType = "done"
)

type ToolStatus string

const (
	ToolStarted  ToolStatus = "started"
	ToolFinished ToolStatus = "finished"
	ToolErrored  ToolStatus = "errored"
)

type Event struct {
	Type     EventType
	Text     string
	Calls    []domain.ToolCall
	Tool     string
	Status   ToolStatus
	Message  string
	Severity domain.Tier
	Response *Response
}

// Emitter receives stream events in order. A nil Emitter means buffered delivery.
type Emitter func(Event)

func (e Emitter) emit(event Event) {
	if e != nil {
		e(event)
	}
}

type Response struct {
	Message           string              `json:"message"`
	Mode              domain.ResponseMode `json:"mode"`
	NeedsConfirmation bool                `json:"needs_confirmation"`
	SessionID         string              `json:"session_id"`
	Actions           []string            `json:"actions,omitempty"`
}
