package ports

import (
	"context"

	"github.com/bnema/cuedesk/internal/domain"
)

// ToolExecutor maps a named action to a Device Control API call. The core
// calls Execute at most once per resolved action per turn.
type ToolExecutor interface {
	ListActions(ctx context.Context) ([]domain.ActionSpec, error)
	Execute(ctx context.Context, name string, params map[string]any) (domain.ActionResult, error)
}
