package domain

import (
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	// ModeAuto tries the remote backend and falls back to local matching.
	ModeAuto Mode = "auto"
	// ModeOffline never calls the remote backend.
	ModeOffline Mode = "offline"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeAuto, "online", "":
		return ModeAuto, nil
	case ModeOffline, "local":
		return ModeOffline, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, value)
	}
}

func (m Mode) AllowsRemote() bool {
	return m != ModeOffline
}

// ResponseMode tells the caller which path produced a chat response.
type ResponseMode string

const (
	ResponseOnline    ResponseMode = "online"
	ResponseOffline   ResponseMode = "offline"
	ResponseConfirmed ResponseMode = "confirmed"
	ResponseCancelled ResponseMode = "cancelled"
)

type ReasoningSettings struct {
	Endpoint    string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	KeyRef      string
}

type Settings struct {
	Mode      Mode
	Reasoning ReasoningSettings
	UpdatedAt time.Time
}

func DefaultSettings() Settings {
	return Settings{
		Mode: ModeAuto,
		Reasoning: ReasoningSettings{
			Endpoint:    "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.2,
			Timeout:     30 * time.Second,
			KeyRef:      "cuedesk/reasoning/api_key",
		},
	}
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	Mode        *Mode
	Endpoint    *string
	Model       *string
	MaxTokens   *int
	Temperature *float64
	Timeout     *time.Duration
}

func (s Settings) Apply(patch SettingsPatch) (Settings, error) {
	out := s
	if patch.Mode != nil {
		mode, err := ParseMode(string(*patch.Mode))
		if err != nil {
			return Settings{}, err
		}
		out.Mode = mode
	}
	if patch.Endpoint != nil {
		out.Reasoning.Endpoint = strings.TrimRight(strings.TrimSpace(*patch.Endpoint), "/")
	}
	if patch.Model != nil {
		out.Reasoning.Model = strings.TrimSpace(*patch.Model)
	}
	if patch.MaxTokens != nil {
		if *patch.MaxTokens < 0 {
			return Settings{}, fmt.Errorf("max tokens must not be negative")
		}
		out.Reasoning.MaxTokens = *patch.MaxTokens
	}
	if patch.Temperature != nil {
		out.Reasoning.Temperature = *patch.Temperature
	}
	if patch.Timeout != nil {
		out.Reasoning.Timeout = *patch.Timeout
	}
	return out, nil
}
