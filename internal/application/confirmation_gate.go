package application

import (
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	"github.com/rs/zerolog"
)

const DefaultConfirmationExpiry = 60 * time.Second

var (
	confirmPhrases = []string{
		"yes", "y", "yeah", "yep", "yup", "sure", "ok", "okay",
		"confirm", "confirmed", "do it", "go ahead", "proceed", "affirmative",
	}
	denyPhrases = []string{
		"no", "n", "nope", "nah", "cancel", "abort", "don't", "dont",
		"never mind", "nevermind", "negative",
	}
)

const replyHint = `Reply "yes" to confirm or "no" to cancel.`

// ConfirmationGate decides which actions need explicit consent and holds at
// most one pending question per session.
type ConfirmationGate struct {
	policy domain.RiskPolicy
	expiry time.Duration
	clock  ports.Clock
	log    zerolog.Logger

	mu      sync.Mutex
	token   uint64
	pending map[string]*pendingEntry
}

type pendingEntry struct {
	confirmation domain.PendingConfirmation
	timer        *time.Timer
}

func NewConfirmationGate(policy domain.RiskPolicy, expiry time.Duration, clock ports.Clock, log zerolog.Logger) *ConfirmationGate {
	if expiry <= 0 {
		expiry = DefaultConfirmationExpiry
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if policy.Tiers == nil {
		policy = domain.DefaultRiskPolicy()
	}

	return &ConfirmationGate{
		policy:  policy,
		expiry:  expiry,
		clock:   clock,
		log:     log,
		pending: map[string]*pendingEntry{},
	}
}

// TierOf looks up the static tier. Unknown actions are medium.
func (g *ConfirmationGate) TierOf(action string) domain.Tier {
	tier, ok := g.policy.Tiers[action]
	if !ok {
		return domain.TierMedium
	}
	return tier
}

// Evaluate decides whether action needs consent. Every decision is logged at
// debug level, including the ones that let the action through.
func (g *ConfirmationGate) Evaluate(action string, params map[string]any, live domain.LiveContext) domain.Decision {
	tier := g.TierOf(action)
	decision := g.decide(action, tier, params, live)
	g.log.Debug().
		Str("action", action).
		Stringer("tier", tier).
		Stringer("severity", decision.Severity).
		Bool("required", decision.Required).
		Msg("confirmation decision")
	return decision
}

func (g *ConfirmationGate) decide(action string, tier domain.Tier, params map[string]any, live domain.LiveContext) domain.Decision {
	if tier == domain.TierSafe {
		return domain.Decision{Severity: tier}
	}

	if g.policy.IsAnimated(action) && g.policy.MaxFlashHz > 0 {
		if rate, ok := domain.FlashRateHz(params); ok && rate > g.policy.MaxFlashHz {
			return domain.Decision{
				Required: true,
				Severity: domain.TierHigh,
				Reason: fmt.Sprintf(
					"This effect would flash about %.1f times per second (limit %.1f). Fast flashing light can trigger photosensitive seizures. %s",
					rate, g.policy.MaxFlashHz, replyHint,
				),
			}
		}
	}

	switch tier {
	case domain.TierHigh:
		return domain.Decision{Required: true, Severity: tier, Reason: highRiskReason(action, params)}
	case domain.TierMedium:
		if live.IsPlaying() {
			return domain.Decision{
				Required: true,
				Severity: tier,
				Reason: fmt.Sprintf("Something is currently playing and %s will interrupt it. %s",
					describeAction(action, params), replyHint),
			}
		}
	}

	return domain.Decision{Severity: tier}
}

// SetPending stores the question for sessionID, replacing any unresolved one,
// and schedules its removal after the expiry window.
func (g *ConfirmationGate) SetPending(sessionID, action string, params map[string]any, reason string, severity domain.Tier) domain.PendingConfirmation {
	g.mu.Lock()
	defer g.mu.Unlock()

	if previous, ok := g.pending[sessionID]; ok {
		previous.timer.Stop()
	}

	g.token++
	token := g.token
	confirmation := domain.PendingConfirmation{
		Action:    action,
		Params:    maps.Clone(params),
		Reason:    reason,
		Severity:  severity,
		CreatedAt: g.clock.Now(),
		Token:     token,
	}
	g.pending[sessionID] = &pendingEntry{
		confirmation: confirmation,
		timer:        time.AfterFunc(g.expiry, func() { g.expire(sessionID, token) }),
	}

	return confirmation
}

// TakePending atomically returns and clears the session's pending confirmation.
func (g *ConfirmationGate) TakePending(sessionID string) (domain.PendingConfirmation, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.pending[sessionID]
	if !ok {
		return domain.PendingConfirmation{}, false
	}
	entry.timer.Stop()
	delete(g.pending, sessionID)
	return entry.confirmation, true
}

func (g *ConfirmationGate) HasPending(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.pending[sessionID]
	return ok
}

func (g *ConfirmationGate) DropPending(sessionID string) {
	_, _ = g.TakePending(sessionID)
}

// Close stops every expiry timer.
func (g *ConfirmationGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, entry := range g.pending {
		entry.timer.Stop()
		delete(g.pending, id)
	}
}

func (g *ConfirmationGate) expire(sessionID string, token uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.pending[sessionID]
	if !ok || entry.confirmation.Token != token {
		return
	}
	delete(g.pending, sessionID)
}

// ClassifyReply reports whether text answers a pending question. Anything
// that is not clearly yes or no is ReplyNone, never an implicit denial.
func (g *ConfirmationGate) ClassifyReply(text string) domain.Reply {
	normalized := normalizeReply(text)
	if normalized == "" {
		return domain.ReplyNone
	}
	if matchesPhrase(normalized, denyPhrases) {
		return domain.ReplyDeny
	}
	if matchesPhrase(normalized, confirmPhrases) {
		return domain.ReplyConfirm
	}
	return domain.ReplyNone
}

func normalizeReply(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '!', '?', ';', ':':
			return ' '
		case '’':
			return '\''
		}
		return r
	}, strings.ToLower(text))
	return strings.Join(strings.Fields(cleaned), " ")
}

func matchesPhrase(normalized string, phrases []string) bool {
	for _, phrase := range phrases {
		if normalized == phrase || strings.HasPrefix(normalized, phrase+" ") {
			return true
		}
	}
	return false
}

func highRiskReason(action string, params map[string]any) string {
	switch {
	case strings.HasPrefix(action, "delete_"), strings.HasPrefix(action, "remove_"):
		return fmt.Sprintf("Deleting %s is permanent and cannot be undone. %s", describeTarget(action, params), replyHint)
	case action == "strobe":
		return "This starts a strobe effect. Flashing light can trigger photosensitive seizures, so I need your explicit consent. " + replyHint
	default:
		return fmt.Sprintf("%s is a high-risk action. %s", capitalize(describeAction(action, params)), replyHint)
	}
}

func describeAction(action string, params map[string]any) string {
	verb, noun, found := strings.Cut(action, "_")
	if !found {
		return fmt.Sprintf("'%s'", action)
	}
	target := describeTarget(action, params)
	if target == noun {
		return fmt.Sprintf("%s %s", verbGerund(verb), noun)
	}
	return fmt.Sprintf("%s %s", verbGerund(verb), target)
}

func describeTarget(action string, params map[string]any) string {
	_, noun, found := strings.Cut(action, "_")
	if !found {
		noun = action
	}
	label := domain.StringParam(params, "name", "id", noun+"_id")
	if label == "" {
		return noun
	}
	return fmt.Sprintf("%s '%s'", noun, label)
}

func verbGerund(verb string) string {
	switch verb {
	case "create":
		return "creating"
	case "update":
		return "updating"
	case "delete":
		return "deleting"
	case "play":
		return "playing"
	case "set":
		return "setting"
	case "":
		return verb
	}
	if strings.HasSuffix(verb, "e") {
		return strings.TrimSuffix(verb, "e") + "ing"
	}
	return verb + "ing"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
