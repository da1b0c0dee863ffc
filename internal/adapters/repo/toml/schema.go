package toml

import "fmt"

const (
	currentSettingsVersion = 1
	currentPolicyVersion   = 1
)

type settingsFileSchema struct {
	Version   int             `toml:"version"`
	Mode      string          `toml:"mode"`
	UpdatedAt string          `toml:"updated_at,omitempty"`
	Reasoning reasoningSchema `toml:"reasoning"`
}

type reasoningSchema struct {
	Endpoint    string   `toml:"endpoint"`
	Model       string   `toml:"model"`
	MaxTokens   int      `toml:"max_tokens"`
	Temperature *float64 `toml:"temperature,omitempty"`
	Timeout     string   `toml:"timeout"`
	KeyRef      string   `toml:"key_ref"`
}

func (s *settingsFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSettingsVersion
	}
}

func (s settingsFileSchema) validateVersion() error {
	if s.Version > currentSettingsVersion {
		return fmt.Errorf("unsupported settings schema version %d (current %d)", s.Version, currentSettingsVersion)
	}

	return nil
}

// policyFileSchema holds overrides only; anything left out keeps the
// built-in value.
type policyFileSchema struct {
	Version         int               `toml:"version"`
	MaxFlashHz      float64           `toml:"max_flash_hz,omitempty"`
	AnimatedActions []string          `toml:"animated_actions,omitempty"`
	Tiers           map[string]string `toml:"tiers,omitempty"`
}

func (s *policyFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentPolicyVersion
	}
}

func (s policyFileSchema) validateVersion() error {
	if s.Version > currentPolicyVersion {
		return fmt.Errorf("unsupported policy schema version %d (current %d)", s.Version, currentPolicyVersion)
	}

	return nil
}
