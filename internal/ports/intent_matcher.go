package ports

import (
	"context"

	"github.com/bnema/cuedesk/internal/domain"
)

// IntentMatcher is the offline command classifier. It must always return a
// message, even for unrecognised input.
type IntentMatcher interface {
	Process(ctx context.Context, text string, live domain.LiveContext) (domain.IntentResult, error)
}
