package domain

import "strings"

// EventKind is the closed set of provider subscription lifecycle events.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindActivated
	KindAuthenticated
	KindCancelled
	KindCompleted
	KindHalted
	KindPaused
	KindPending
)

var eventKinds = map[string]EventKind{
	"subscription.activated":     KindActivated,
	"subscription.authenticated": KindAuthenticated,
	"subscription.cancelled":     KindCancelled,
	"subscription.completed":     KindCompleted,
	"subscription.halted":        KindHalted,
	"subscription.paused":        KindPaused,
	"subscription.pending":       KindPending,
}

// KindOf classifies a provider event type. Matching is exact after trimming;
// anything unrecognised is KindUnknown.
func KindOf(eventType string) EventKind {
	if kind, ok := eventKinds[strings.TrimSpace(eventType)]; ok {
		return kind
	}
	return KindUnknown
}

func (k EventKind) String() string {
	switch k {
	case KindActivated:
		return "activated"
	case KindAuthenticated:
		return "authenticated"
	case KindCancelled:
		return "cancelled"
	case KindCompleted:
		return "completed"
	case KindHalted:
		return "halted"
	case KindPaused:
		return "paused"
	case KindPending:
		return "pending"
	default:
		return "unknown"
	}
}
