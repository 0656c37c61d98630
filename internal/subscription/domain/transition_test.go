package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		eventType string
		want      Status
		applies   bool
	}{
		{eventType: "subscription.activated", want: StatusPro, applies: true},
		{eventType: "subscription.authenticated", want: StatusPro, applies: true},
		{eventType: "subscription.cancelled", want: StatusCancelled, applies: true},
		{eventType: "subscription.completed", want: StatusCancelled, applies: true},
		{eventType: "subscription.halted", want: StatusCancelled, applies: true},
		{eventType: "subscription.paused", want: StatusPaused, applies: true},
		{eventType: "subscription.pending", applies: false},
		{eventType: "subscription.charged", applies: false},
		{eventType: "payment.captured", applies: false},
		{eventType: "SUBSCRIPTION.ACTIVATED", applies: false},
		{eventType: "", applies: false},
	}

	for _, tc := range cases {
		for _, current := range Statuses() {
			t.Run(tc.eventType+"/"+current.String(), func(t *testing.T) {
				got, ok := Transition(tc.eventType, current)
				require.Equal(t, tc.applies, ok)
				if tc.applies {
					assert.Equal(t, tc.want, got)
				} else {
					assert.Empty(t, got)
				}
			})
		}
	}
}

func TestTransitionIsIdempotentOnTarget(t *testing.T) {
	first, ok := Transition("subscription.activated", StatusFree)
	require.True(t, ok)
	second, ok := Transition("subscription.activated", first)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestTransitionForIgnoresCurrentStatus(t *testing.T) {
	for _, current := range Statuses() {
		got, ok := TransitionFor(KindPaused, current)
		require.True(t, ok)
		assert.Equal(t, StatusPaused, got)

		got, ok = TransitionFor(KindPending, current)
		assert.False(t, ok)
		assert.Empty(t, got)
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindHalted, KindOf(" subscription.halted "))
	assert.Equal(t, KindUnknown, KindOf("subscription.updated"))
	assert.Equal(t, "pending", KindPending.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" past_due ")
	require.NoError(t, err)
	assert.Equal(t, StatusPastDue, s)

	_, err = ParseStatus("TRIALING")
	assert.Error(t, err)
}
