package domain

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// DefaultMaxFlashHz is the fastest step rate an animated action may run at
// without explicit consent.
const DefaultMaxFlashHz = 3.0

// RiskPolicy is the auditable data behind confirmation decisions.
type RiskPolicy struct {
	Tiers           map[string]Tier
	AnimatedActions []string
	MaxFlashHz      float64
}

func DefaultRiskPolicy() RiskPolicy {
	tiers := map[string]Tier{}
	for _, name := range []string{
		"list_scenes", "get_scene", "list_chases", "get_chase",
		"list_fixtures", "list_nodes", "get_channels", "get_playback_status",
	} {
		tiers[name] = TierSafe
	}
	for _, name := range []string{"set_channel", "set_channels", "stop_playback"} {
		tiers[name] = TierLow
	}
	for _, name := range []string{
		"create_scene", "update_scene", "play_scene",
		"create_chase", "update_chase", "play_chase", "blackout",
	} {
		tiers[name] = TierMedium
	}
	for _, name := range []string{"delete_scene", "delete_chase", "delete_fixture", "strobe"} {
		tiers[name] = TierHigh
	}

	return RiskPolicy{
		Tiers:           tiers,
		AnimatedActions: []string{"create_chase", "update_chase", "play_chase", "strobe"},
		MaxFlashHz:      DefaultMaxFlashHz,
	}
}

// Merge overlays non-zero fields of other onto a copy of p.
func (p RiskPolicy) Merge(other RiskPolicy) RiskPolicy {
	out := RiskPolicy{
		Tiers:           maps.Clone(p.Tiers),
		AnimatedActions: slices.Clone(p.AnimatedActions),
		MaxFlashHz:      p.MaxFlashHz,
	}
	if out.Tiers == nil {
		out.Tiers = map[string]Tier{}
	}
	for name, tier := range other.Tiers {
		out.Tiers[name] = tier
	}
	if len(other.AnimatedActions) > 0 {
		out.AnimatedActions = slices.Clone(other.AnimatedActions)
	}
	if other.MaxFlashHz > 0 {
		out.MaxFlashHz = other.MaxFlashHz
	}
	return out
}

func (p RiskPolicy) IsAnimated(action string) bool {
	return slices.Contains(p.AnimatedActions, action)
}

// FlashRateHz derives the step rate implied by an animated action's params.
// The second return is false when nothing in params describes timing.
func FlashRateHz(params map[string]any) (float64, bool) {
	for _, key := range []string{"rate_hz", "frequency", "hz"} {
		if v, ok := NumberParam(params, key); ok && v > 0 {
			return v, true
		}
	}
	if bpm, ok := NumberParam(params, "bpm"); ok && bpm > 0 {
		return bpm / 60, true
	}
	for _, key := range []string{"step_duration_ms", "step_duration", "duration_ms"} {
		if ms, ok := NumberParam(params, key); ok && ms > 0 {
			return 1000 / ms, true
		}
	}

	steps, ok := params["steps"].([]any)
	if !ok {
		return 0, false
	}
	shortest := math.Inf(1)
	for _, raw := range steps {
		step, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"duration_ms", "duration"} {
			if ms, ok := NumberParam(step, key); ok && ms > 0 && ms < shortest {
				shortest = ms
			}
		}
	}
	if math.IsInf(shortest, 1) {
		return 0, false
	}
	return 1000 / shortest, true
}

// NumberParam reads a numeric parameter that may arrive as a JSON number or a string.
func NumberParam(params map[string]any, key string) (float64, bool) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// StringParam returns the first non-empty string-ish value among keys.
func StringParam(params map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := params[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}
