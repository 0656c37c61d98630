// Package domain holds the subscription status model and the pure state
// machine that maps provider lifecycle events onto it.
package domain

import (
	"fmt"
	"strings"
)

// Status is the subscription status stored on a user record.
type Status string

const (
	StatusFree      Status = "FREE"
	StatusPro       Status = "PRO"
	StatusCancelled Status = "CANCELLED"
	StatusPaused    Status = "PAUSED"
	StatusPastDue   Status = "PAST_DUE"
)

var allStatuses = []Status{
	StatusFree,
	StatusPro,
	StatusCancelled,
	StatusPaused,
	StatusPastDue,
}

// Statuses returns every known status in declaration order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts any casing and rejects unknown values.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown subscription status %q", raw)
	}
	return s, nil
}
