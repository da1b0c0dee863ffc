package application

import (
	"fmt"
	"testing"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTrackerRecordsLastCreatedScene(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   map[string]any
		wantID string
	}{
		{name: "scene_id field", data: map[string]any{"scene_id": "sc-1", "name": "Warm Wash"}, wantID: "sc-1"},
		{name: "id field", data: map[string]any{"id": "sc-2", "name": "Warm Wash"}, wantID: "sc-2"},
		{name: "nested scene", data: map[string]any{"scene": map[string]any{"id": "sc-3", "name": "Warm Wash"}}, wantID: "sc-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := NewSessionStore(0, newFakeClock())
			tracker := NewMemoryTracker(store, newFakeClock())
			tracker.RecordOutcome("s1", "create_scene", tt.data)

			session, ok := store.Snapshot("s1")
			require.True(t, ok)
			require.NotNil(t, session.Memory.LastCreatedScene)
			assert.Equal(t, tt.wantID, session.Memory.LastCreatedScene.ID)
			assert.Equal(t, "Warm Wash", session.Memory.LastCreatedScene.Name)
		})
	}
}

func TestMemoryTrackerKeepsChaseExtras(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(0, newFakeClock())
	tracker := NewMemoryTracker(store, newFakeClock())
	tracker.RecordOutcome("s1", "create_chase", map[string]any{
		"chase_id": "ch-1",
		"name":     "Pulse",
		"bpm":      120.0,
		"loop":     true,
		"steps":    []any{map[string]any{}, map[string]any{}, map[string]any{}},
	})

	session, _ := store.Snapshot("s1")
	ref := session.Memory.LastCreatedChase
	require.NotNil(t, ref)
	assert.Equal(t, 120.0, ref.Extra["bpm"])
	assert.Equal(t, true, ref.Extra["loop"])
	assert.Equal(t, 3, ref.Extra["step_count"])
}

func TestMemoryTrackerRecentActionsKeepsNewestTen(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(0, newFakeClock())
	tracker := NewMemoryTracker(store, newFakeClock())
	for i := range 14 {
		tracker.RecordOutcome("s1", "set_channel", map[string]any{"id": fmt.Sprintf("ch%d", i)})
	}

	session, _ := store.Snapshot("s1")
	recent := session.Memory.RecentActions
	require.Len(t, recent, domain.RecentActionsCapacity)
	for i, action := range recent {
		assert.Equal(t, fmt.Sprintf("ch%d", i+4), action.IDOrName)
	}
}

func TestMemoryTrackerSummarize(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewSessionStore(0, clock)
	tracker := NewMemoryTracker(store, clock)

	assert.Empty(t, tracker.Summarize("s1"))

	tracker.RecordOutcome("s1", "create_scene", map[string]any{"scene_id": "sc-1", "name": "Warm Wash"})
	clock.Advance(4 * time.Minute)
	tracker.RecordOutcome("s1", "play_chase", map[string]any{"chase_id": "ch-9"})

	summary := tracker.Summarize("s1")
	assert.Contains(t, summary, "Last created scene: 'Warm Wash' (4min ago)")
	assert.Contains(t, summary, "Last played chase: 'ch-9' (just now)")
	assert.Contains(t, summary, "Recent actions: create_scene(Warm Wash), play_chase(ch-9)")
}

func TestHumanAge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		age  time.Duration
		want string
	}{
		{age: 10 * time.Second, want: "just now"},
		{age: 4 * time.Minute, want: "4min ago"},
		{age: 3 * time.Hour, want: "3h ago"},
		{age: 72 * time.Hour, want: "3d ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanAge(tt.age))
	}
}
