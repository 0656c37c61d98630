package domain

// Transition returns the status a provider event moves a subscription to.
// ok is false for events that must not touch the user record.
//
// The provider is authoritative: the target depends only on the event, never
// on current. A target equal to current is still reported so re-applying an
// event converges instead of diverging.
func Transition(eventType string, current Status) (Status, bool) {
	return TransitionFor(KindOf(eventType), current)
}

// TransitionFor is Transition for an already classified event. The current
// status is accepted for symmetry with Transition and does not affect the
// result.
func TransitionFor(kind EventKind, _ Status) (Status, bool) {
	switch kind {
	case KindActivated, KindAuthenticated:
		return StatusPro, true
	case KindCancelled, KindCompleted, KindHalted:
		return StatusCancelled, true
	case KindPaused:
		return StatusPaused, true
	case KindPending, KindUnknown:
		return "", false
	default:
		return "", false
	}
}
