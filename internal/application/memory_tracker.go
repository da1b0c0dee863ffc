package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

type memorySlot int

const (
	slotNone memorySlot = iota
	slotCreatedScene
	slotCreatedChase
	slotPlayedScene
	slotPlayedChase
)

var trackedActions = map[string]memorySlot{
	"create_scene": slotCreatedScene,
	"save_scene":   slotCreatedScene,
	"create_chase": slotCreatedChase,
	"play_scene":   slotPlayedScene,
	"recall_scene": slotPlayedScene,
	"play_chase":   slotPlayedChase,
	"start_chase":  slotPlayedChase,
}

var memoryExtraKeys = []string{"step_count", "bpm", "loop", "channel_count", "universe"}

// MemoryTracker keeps the "last thing I made or played" bookkeeping that lets
// users say "play that again".
type MemoryTracker struct {
	sessions *SessionStore
	clock    ports.Clock
}

func NewMemoryTracker(sessions *SessionStore, clock ports.Clock) *MemoryTracker {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &MemoryTracker{sessions: sessions, clock: clock}
}

func (t *MemoryTracker) RecordOutcome(sessionID, action string, data map[string]any) {
	now := t.clock.Now()
	slot := trackedActions[action]

	var ref *domain.EntityRef
	if slot != slotNone {
		ref = entityFromData(slot, data, now)
	}

	idOrName := ""
	if ref != nil {
		idOrName = ref.Label()
	} else {
		idOrName = domain.StringParam(data, "name", "id", "scene_id", "chase_id", "fixture_id", "node_id")
	}

	t.sessions.UpdateMemory(sessionID, func(memory *domain.SessionMemory) {
		switch slot {
		case slotCreatedScene:
			memory.LastCreatedScene = ref
		case slotCreatedChase:
			memory.LastCreatedChase = ref
		case slotPlayedScene:
			memory.LastPlayedScene = ref
		case slotPlayedChase:
			memory.LastPlayedChase = ref
		}
		memory.PushRecent(domain.RecentAction{Action: action, IDOrName: idOrName, Timestamp: now})
	})
}

// Summarize renders a short digest for prompt construction. It returns an
// empty string when nothing has been recorded.
func (t *MemoryTracker) Summarize(sessionID string) string {
	session, ok := t.sessions.Snapshot(sessionID)
	if !ok || session.Memory.IsEmpty() {
		return ""
	}

	now := t.clock.Now()
	memory := session.Memory
	lines := make([]string, 0, 5)
	for _, slot := range []struct {
		label string
		ref   *domain.EntityRef
	}{
		{"Last created scene", memory.LastCreatedScene},
		{"Last created chase", memory.LastCreatedChase},
		{"Last played scene", memory.LastPlayedScene},
		{"Last played chase", memory.LastPlayedChase},
	} {
		if slot.ref == nil {
			continue
		}
		line := fmt.Sprintf("%s: '%s' (%s)", slot.label, slot.ref.Label(), humanAge(now.Sub(slot.ref.Timestamp)))
		if slot.ref.ID != "" && slot.ref.Name != "" {
			line += " id=" + slot.ref.ID
		}
		lines = append(lines, line)
	}

	if len(memory.RecentActions) > 0 {
		recent := make([]string, 0, len(memory.RecentActions))
		for _, action := range memory.RecentActions {
			if action.IDOrName == "" {
				recent = append(recent, action.Action)
				continue
			}
			recent = append(recent, fmt.Sprintf("%s(%s)", action.Action, action.IDOrName))
		}
		lines = append(lines, "Recent actions: "+strings.Join(recent, ", "))
	}

	return strings.Join(lines, "\n")
}

func entityFromData(slot memorySlot, data map[string]any, now time.Time) *domain.EntityRef {
	source := data
	nested := "scene"
	idKey := "scene_id"
	if slot == slotCreatedChase || slot == slotPlayedChase {
		nested = "chase"
		idKey = "chase_id"
	}
	if inner, ok := data[nested].(map[string]any); ok {
		source = inner
	}

	ref := &domain.EntityRef{
		ID:        domain.StringParam(source, idKey, "id"),
		Name:      domain.StringParam(source, "name"),
		Timestamp: now,
	}
	if ref.ID == "" && ref.Name == "" {
		ref.ID = domain.StringParam(data, idKey, "id")
		ref.Name = domain.StringParam(data, "name")
	}
	for _, key := range memoryExtraKeys {
		if value, ok := source[key]; ok {
			if ref.Extra == nil {
				ref.Extra = map[string]any{}
			}
			ref.Extra[key] = value
		}
	}
	if steps, ok := source["steps"].([]any); ok {
		if ref.Extra == nil {
			ref.Extra = map[string]any{}
		}
		if _, set := ref.Extra["step_count"]; !set {
			ref.Extra["step_count"] = len(steps)
		}
	}

	return ref
}

func humanAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dmin ago", int(age/time.Minute))
	case age < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(age/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(age/(24*time.Hour)))
	}
}
