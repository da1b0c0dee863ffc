package domain

import "time"

// PendingConfirmation is the single outstanding question for a session.
type PendingConfirmation struct {
	Action    string
	Params    map[string]any
	Reason    string
	Severity  Tier
	CreatedAt time.Time
	// Token increases with every confirmation issued by a gate. Expiry timers
	// compare it to decide whether they still own the entry.
	Token uint64
}

type Decision struct {
	Required bool
	Reason   string
	Severity Tier
}

type Reply int

const (
	ReplyNone Reply = iota
	ReplyConfirm
	ReplyDeny
)

func (r Reply) String() string {
	switch r {
	case ReplyConfirm:
		return "confirm"
	case ReplyDeny:
		return "deny"
	default:
		return "none"
	}
}
