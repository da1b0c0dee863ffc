package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "cuedesk:session:"
	snapshotFormat = 1
)

type Config struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long an idle snapshot survives. Each save refreshes it.
	TTL time.Duration
}

// SnapshotStore keeps one JSON snapshot per session so conversations survive
// process restarts.
type SnapshotStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ ports.SessionSnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(ctx context.Context, cfg Config) (*SnapshotStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &SnapshotStore{rdb: rdb, ttl: cfg.TTL}, nil
}

func (s *SnapshotStore) Save(ctx context.Context, session domain.Session) error {
	data, err := encodeSnapshot(session)
	if err != nil {
		return err
	}

	if err := s.rdb.Set(ctx, keyFor(session.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session snapshot %q: %w", session.ID, err)
	}

	return nil
}

func (s *SnapshotStore) Load(ctx context.Context, id string) (domain.Session, error) {
	data, err := s.rdb.Get(ctx, keyFor(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("load session snapshot %q: %w", id, err)
	}

	return decodeSnapshot(data)
}

func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, keyFor(id)).Err(); err != nil {
		return fmt.Errorf("delete session snapshot %q: %w", id, err)
	}

	return nil
}

func (s *SnapshotStore) Close() error {
	return s.rdb.Close()
}

func keyFor(id string) string {
	return keyPrefix + id
}

type snapshot struct {
	Format       int            `json:"format"`
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	Messages     []message      `json:"messages"`
	Memory       memorySnapshot `json:"memory"`
}

type message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Timestamp  time.Time  `json:"ts"`
}

type toolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

type memorySnapshot struct {
	LastCreatedScene *entityRef     `json:"last_created_scene,omitempty"`
	LastCreatedChase *entityRef     `json:"last_created_chase,omitempty"`
	LastPlayedScene  *entityRef     `json:"last_played_scene,omitempty"`
	LastPlayedChase  *entityRef     `json:"last_played_chase,omitempty"`
	RecentActions    []recentAction `json:"recent_actions,omitempty"`
}

type entityRef struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	Timestamp time.Time      `json:"ts"`
}

type recentAction struct {
	Action    string    `json:"action"`
	IDOrName  string    `json:"id_or_name,omitempty"`
	Timestamp time.Time `json:"ts"`
}

func encodeSnapshot(session domain.Session) ([]byte, error) {
	out := snapshot{
		Format:       snapshotFormat,
		ID:           session.ID,
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
		Messages:     make([]message, 0, len(session.Messages)),
		Memory: memorySnapshot{
			LastCreatedScene: toEntityRef(session.Memory.LastCreatedScene),
			LastCreatedChase: toEntityRef(session.Memory.LastCreatedChase),
			LastPlayedScene:  toEntityRef(session.Memory.LastPlayedScene),
			LastPlayedChase:  toEntityRef(session.Memory.LastPlayedChase),
		},
	}
	for _, msg := range session.Messages {
		encoded := message{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
			Timestamp:  msg.Timestamp,
		}
		for _, call := range msg.ToolCalls {
			encoded.ToolCalls = append(encoded.ToolCalls, toolCall{ID: call.ID, Name: call.Name, Params: call.Params})
		}
		out.Messages = append(out.Messages, encoded)
	}
	for _, action := range session.Memory.RecentActions {
		out.Memory.RecentActions = append(out.Memory.RecentActions, recentAction(action))
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode session snapshot %q: %w", session.ID, err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (domain.Session, error) {
	var in snapshot
	if err := json.Unmarshal(data, &in); err != nil {
		return domain.Session{}, fmt.Errorf("decode session snapshot: %w", err)
	}
	if in.Format > snapshotFormat {
		return domain.Session{}, fmt.Errorf("unsupported session snapshot format %d (current %d)", in.Format, snapshotFormat)
	}

	session := domain.Session{
		ID:           in.ID,
		CreatedAt:    in.CreatedAt,
		LastActivity: in.LastActivity,
		Memory: domain.SessionMemory{
			LastCreatedScene: fromEntityRef(in.Memory.LastCreatedScene),
			LastCreatedChase: fromEntityRef(in.Memory.LastCreatedChase),
			LastPlayedScene:  fromEntityRef(in.Memory.LastPlayedScene),
			LastPlayedChase:  fromEntityRef(in.Memory.LastPlayedChase),
		},
	}
	for _, msg := range in.Messages {
		decoded := domain.Message{
			Role:       domain.Role(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
			Timestamp:  msg.Timestamp,
		}
		for _, call := range msg.ToolCalls {
			params := call.Params
			if params == nil {
				params = map[string]any{}
			}
			decoded.ToolCalls = append(decoded.ToolCalls, domain.ToolCall{ID: call.ID, Name: call.Name, Params: params})
		}
		session.Messages = append(session.Messages, decoded)
	}
	for _, action := range in.Memory.RecentActions {
		session.Memory.RecentActions = append(session.Memory.RecentActions, domain.RecentAction(action))
	}

	return session, nil
}

func toEntityRef(ref *domain.EntityRef) *entityRef {
	if ref == nil {
		return nil
	}
	return &entityRef{ID: ref.ID, Name: ref.Name, Extra: ref.Extra, Timestamp: ref.Timestamp}
}

func fromEntityRef(ref *entityRef) *domain.EntityRef {
	if ref == nil {
		return nil
	}
	return &domain.EntityRef{ID: ref.ID, Name: ref.Name, Extra: ref.Extra, Timestamp: ref.Timestamp}
}
