package domain

import "time"

const PlaybackStatePlaying = "playing"

type PlaybackState struct {
	State   string
	SceneID string
	ChaseID string
}

// LiveContext is a best-effort snapshot of device state taken once per turn.
// Fields whose fetch failed keep their zero value.
type LiveContext struct {
	Playback     PlaybackState
	OfflineNodes []string
	FetchedAt    time.Time
}

func (c LiveContext) IsPlaying() bool {
	return c.Playback.State == PlaybackStatePlaying
}
