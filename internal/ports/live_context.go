package ports

import (
	"context"

	"github.com/bnema/cuedesk/internal/domain"
)

// LiveContextProvider reads device state. Each method is fetched
// independently so one failure only degrades its own field.
type LiveContextProvider interface {
	Playback(ctx context.Context) (domain.PlaybackState, error)
	OfflineNodes(ctx context.Context) ([]string, error)
}
