package ports

import (
	"context"

	"github.com/bnema/cuedesk/internal/domain"
)

type SettingsRepository interface {
	Load(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, settings domain.Settings) error
}

type PolicyRepository interface {
	Load(ctx context.Context) (domain.RiskPolicy, error)
}

// AuditSink mirrors audit entries somewhere durable. Failures are logged and
// never affect a turn.
type AuditSink interface {
	Write(ctx context.Context, entry domain.AuditEntry) error
	Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

type SessionSnapshotStore interface {
	Save(ctx context.Context, session domain.Session) error
	// Load returns domain.ErrSessionNotFound when nothing is stored.
	Load(ctx context.Context, id string) (domain.Session, error)
	Delete(ctx context.Context, id string) error
}
