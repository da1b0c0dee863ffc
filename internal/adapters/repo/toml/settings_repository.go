package toml

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	"github.com/spf13/viper"
)

const (
	settingsPathKey  = "settings.path"
	settingsFileName = "settings.toml"
)

// SettingsRepository persists runtime settings changed through the chat
// engine, separate from the hand-edited config file.
type SettingsRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.SettingsRepository = (*SettingsRepository)(nil)

func NewSettingsRepository(cfg *viper.Viper) (*SettingsRepository, error) {
	path, err := resolvePath(cfg, settingsPathKey, settingsFileName)
	if err != nil {
		return nil, err
	}

	return &SettingsRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *SettingsRepository) Path() string {
	return r.path
}

// Load returns domain.ErrSettingsNotFound when nothing was saved yet.
func (r *SettingsRepository) Load(ctx context.Context) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var file settingsFileSchema
	found, err := readTOMLFile(r.path, "settings", &file)
	if err != nil {
		return domain.Settings{}, err
	}
	if !found {
		return domain.Settings{}, domain.ErrSettingsNotFound
	}
	if err := file.validateVersion(); err != nil {
		return domain.Settings{}, err
	}

	return fromSettingsSchema(file)
}

func (r *SettingsRepository) Save(ctx context.Context, settings domain.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := toSettingsSchema(settings)
	file.applyDefaults()

	return writeTOMLFile(r.path, "settings", file)
}

func toSettingsSchema(settings domain.Settings) settingsFileSchema {
	file := settingsFileSchema{
		Mode: string(settings.Mode),
		Reasoning: reasoningSchema{
			Endpoint:    settings.Reasoning.Endpoint,
			Model:       settings.Reasoning.Model,
			MaxTokens:   settings.Reasoning.MaxTokens,
			Temperature: &settings.Reasoning.Temperature,
			KeyRef:      settings.Reasoning.KeyRef,
		},
	}
	if settings.Reasoning.Timeout > 0 {
		file.Reasoning.Timeout = settings.Reasoning.Timeout.String()
	}
	if !settings.UpdatedAt.IsZero() {
		file.UpdatedAt = settings.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return file
}

// fromSettingsSchema fills anything missing from the file with defaults.
func fromSettingsSchema(file settingsFileSchema) (domain.Settings, error) {
	settings := domain.DefaultSettings()

	mode, err := domain.ParseMode(file.Mode)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings file: %w", err)
	}
	settings.Mode = mode

	reasoning := file.Reasoning
	if reasoning.Endpoint != "" {
		settings.Reasoning.Endpoint = reasoning.Endpoint
	}
	if reasoning.Model != "" {
		settings.Reasoning.Model = reasoning.Model
	}
	if reasoning.MaxTokens > 0 {
		settings.Reasoning.MaxTokens = reasoning.MaxTokens
	}
	if reasoning.Temperature != nil {
		settings.Reasoning.Temperature = *reasoning.Temperature
	}
	if reasoning.KeyRef != "" {
		settings.Reasoning.KeyRef = reasoning.KeyRef
	}
	if reasoning.Timeout != "" {
		timeout, err := time.ParseDuration(reasoning.Timeout)
		if err != nil {
			return domain.Settings{}, fmt.Errorf("decode settings timeout %q: %w", reasoning.Timeout, err)
		}
		settings.Reasoning.Timeout = timeout
	}
	if file.UpdatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, file.UpdatedAt); err == nil {
			settings.UpdatedAt = parsed
		}
	}

	return settings, nil
}
