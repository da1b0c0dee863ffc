package domain

import "time"

// DefaultSessionID is used when a caller does not name a session.
const DefaultSessionID = "default"

// RecentActionsCapacity bounds SessionMemory.RecentActions.
const RecentActionsCapacity = 10

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
	Timestamp  time.Time
}

type Session struct {
	ID           string
	Messages     []Message
	Memory       SessionMemory
	CreatedAt    time.Time
	LastActivity time.Time
}

// Clone returns a deep copy so callers can never mutate store-owned state.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	for i, msg := range s.Messages {
		out.Messages[i] = msg.clone()
	}
	out.Memory = s.Memory.Clone()
	return out
}

func (m Message) clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, call := range m.ToolCalls {
			out.ToolCalls[i] = call.Clone()
		}
	}
	return out
}

// EntityRef remembers a scene or chase the user touched recently.
type EntityRef struct {
	ID        string
	Name      string
	Extra     map[string]any
	Timestamp time.Time
}

// Label prefers the human name and falls back to the id.
func (e EntityRef) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

type RecentAction struct {
	Action    string
	IDOrName  string
	Timestamp time.Time
}

type SessionMemory struct {
	LastCreatedScene *EntityRef
	LastCreatedChase *EntityRef
	LastPlayedScene  *EntityRef
	LastPlayedChase  *EntityRef
	RecentActions    []RecentAction
}

func (m SessionMemory) IsEmpty() bool {
	return m.LastCreatedScene == nil &&
		m.LastCreatedChase == nil &&
		m.LastPlayedScene == nil &&
		m.LastPlayedChase == nil &&
		len(m.RecentActions) == 0
}

func (m SessionMemory) Clone() SessionMemory {
	return SessionMemory{
		LastCreatedScene: cloneRef(m.LastCreatedScene),
		LastCreatedChase: cloneRef(m.LastCreatedChase),
		LastPlayedScene:  cloneRef(m.LastPlayedScene),
		LastPlayedChase:  cloneRef(m.LastPlayedChase),
		RecentActions:    append([]RecentAction(nil), m.RecentActions...),
	}
}

// PushRecent appends an action and keeps only the newest RecentActionsCapacity entries.
func (m *SessionMemory) PushRecent(action RecentAction) {
	m.RecentActions = append(m.RecentActions, action)
	if overflow := len(m.RecentActions) - RecentActionsCapacity; overflow > 0 {
		m.RecentActions = append([]RecentAction(nil), m.RecentActions[overflow:]...)
	}
}

func cloneRef(ref *EntityRef) *EntityRef {
	if ref == nil {
		return nil
	}
	out := *ref
	if ref.Extra != nil {
		out.Extra = make(map[string]any, len(ref.Extra))
		for k, v := range ref.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}
