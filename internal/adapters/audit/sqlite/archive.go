package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id         TEXT PRIMARY KEY,
	seq        INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	session_id TEXT NOT NULL,
	action     TEXT NOT NULL,
	params     TEXT NOT NULL,
	succeeded  INTEGER NOT NULL,
	message    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_seq ON audit_entries(seq);
CREATE INDEX IF NOT EXISTS idx_audit_entries_session ON audit_entries(session_id);
`

// Archive mirrors the in-memory audit ring into a sqlite table so the trail
// can be inspected after the process exits.
type Archive struct {
	db *sql.DB
}

var _ ports.AuditSink = (*Archive)(nil)

func Open(path string) (*Archive, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create audit archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit archive: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate audit archive: %w", err)
	}

	return &Archive{db: db}, nil
}

func (a *Archive) Write(ctx context.Context, entry domain.AuditEntry) error {
	if entry.ID == "" {
		return errors.New("audit entry id is empty")
	}

	params, err := json.Marshal(entry.Params)
	if err != nil {
		return fmt.Errorf("encode audit params: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, seq, created_at, session_id, action, params, succeeded, message)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_entries), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.SessionID,
		entry.Action,
		string(params),
		entry.Succeeded,
		entry.Message,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, newest last. A non-positive limit
// returns everything.
func (a *Archive) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, created_at, session_id, action, params, succeeded, message
		FROM (
			SELECT * FROM audit_entries ORDER BY seq DESC LIMIT ?
		)
		ORDER BY seq ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			entry     domain.AuditEntry
			createdAt string
			params    string
		)
		if err := rows.Scan(&entry.ID, &createdAt, &entry.SessionID, &entry.Action, &params, &entry.Succeeded, &entry.Message); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("decode audit timestamp %q: %w", createdAt, err)
		}
		if params != "" && params != "null" {
			if err := json.Unmarshal([]byte(params), &entry.Params); err != nil {
				return nil, fmt.Errorf("decode audit params: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
