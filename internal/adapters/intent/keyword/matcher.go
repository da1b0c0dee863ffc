package keyword

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

const HelpMessage = `I didn't understand that. Try "list scenes", "play scene <name>", "set channel 1 to 255" or "blackout".`

const (
	maxChannel = 512
	maxValue   = 255
)

// Matcher is the offline intent matcher. Rules are tried in order and the
// first match wins. It never executes anything itself.
type Matcher struct {
	rules []rule
}

var _ ports.IntentMatcher = (*Matcher)(nil)

type rule struct {
	pattern *regexp.Regexp
	build   func(match []string, live domain.LiveContext) domain.IntentResult
}

func New() *Matcher {
	return &Matcher{rules: []rule{
		{
			pattern: regexp.MustCompile(`(?i)^(?:black\s*out|all\s+(?:lights\s+)?off|lights\s+off)$`),
			build: func([]string, domain.LiveContext) domain.IntentResult {
				return intent("blackout", nil, "Blacking out all channels.")
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)^(?:stop|halt)(?:\s+(?:playback|playing|the\s+show|everything|all))?$`),
			build: func(_ []string, live domain.LiveContext) domain.IntentResult {
				if live.Playback.State != "" && !live.IsPlaying() {
					return domain.IntentResult{Message: "Nothing is playing right now."}
				}
				return intent("stop_playback", nil, "Stopping playback.")
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)^(?:play|start|run|go\s+to)\s+(?:the\s+)?(scene|chase)\s+(.+)$`),
			build: func(match []string, _ domain.LiveContext) domain.IntentResult {
				kind := strings.ToLower(match[1])
				ref := unquote(match[2])
				return intent("play_"+kind, entityParams(ref), fmt.Sprintf("Playing %s '%s'.", kind, ref))
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)^set\s+(?:channel|ch)\s*(\d+)(?:\s+(?:in|on)\s+universe\s+(\d+))?\s+(?:to|at|=)\s*(\d+)\s*(%)?$`),
			build:   buildSetChannel,
		},
		{
			pattern: regexp.MustCompile(`(?i)^(?:create|save|store|record)\s+(?:a\s+)?(?:new\s+)?scene\s+(?:(?:named|called)\s+)?(.+)$`),
			build: func(match []string, _ domain.LiveContext) domain.IntentResult {
				name := unquote(match[1])
				return intent("create_scene", map[string]any{"name": name}, fmt.Sprintf("Creating scene '%s'.", name))
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)^(?:delete|remove)\s+(?:the\s+)?(scene|chase)\s+(.+)$`),
			build: func(match []string, _ domain.LiveContext) domain.IntentResult {
				kind := strings.ToLower(match[1])
				ref := unquote(match[2])
				return intent("delete_"+kind, entityParams(ref), fmt.Sprintf("Deleting %s '%s'.", kind, ref))
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)^(?:list|show)(?:\s+(?:me|all|the))*\s+(scenes|chases|fixtures|nodes)$`),
			build: func(match []string, _ domain.LiveContext) domain.IntentResult {
				kind := strings.ToLower(match[1])
				return intent("list_"+kind, nil, "Listing "+kind+".")
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)^(?:status|what(?:'s|\s+is)\s+playing)$`),
			build: func([]string, domain.LiveContext) domain.IntentResult {
				return intent("get_playback_status", nil, "Checking playback status.")
			},
		},
	}}
}

func (m *Matcher) Process(_ context.Context, text string, live domain.LiveContext) (domain.IntentResult, error) {
	normalized := normalize(text)
	for _, r := range m.rules {
		if match := r.pattern.FindStringSubmatch(normalized); match != nil {
			return r.build(match, live), nil
		}
	}
	return domain.IntentResult{Message: HelpMessage}, nil
}

func buildSetChannel(match []string, _ domain.LiveContext) domain.IntentResult {
	channel, err := strconv.Atoi(match[1])
	if err != nil || channel < 1 || channel > maxChannel {
		return domain.IntentResult{Message: fmt.Sprintf("Channel must be between 1 and %d.", maxChannel)}
	}

	value, err := strconv.Atoi(match[3])
	if err != nil {
		return domain.IntentResult{Message: HelpMessage}
	}
	if match[4] == "%" {
		if value > 100 {
			return domain.IntentResult{Message: "Percentages go up to 100."}
		}
		value = int(math.Round(float64(value) * maxValue / 100))
	}
	if value > maxValue {
		return domain.IntentResult{Message: fmt.Sprintf("Values go from 0 to %d.", maxValue)}
	}

	params := map[string]any{"channel": channel, "value": value}
	if match[2] != "" {
		universe, err := strconv.Atoi(match[2])
		if err == nil {
			params["universe"] = universe
		}
	}
	return intent("set_channel", params, fmt.Sprintf("Setting channel %d to %d.", channel, value))
}

func intent(action string, params map[string]any, message string) domain.IntentResult {
	if params == nil {
		params = map[string]any{}
	}
	return domain.IntentResult{Message: message, Action: action, Params: params}
}

// entityParams treats a single token containing a digit as an id and
// anything else as a name.
func entityParams(ref string) map[string]any {
	if !strings.ContainsAny(ref, " \t") && strings.ContainsAny(ref, "0123456789") {
		return map[string]any{"id": ref}
	}
	return map[string]any{"name": ref}
}

func normalize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimRight(text, ".!?")
}

func unquote(value string) string {
	value = strings.TrimSpace(value)
	return strings.Trim(value, `"'`)
}
