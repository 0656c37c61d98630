package domain

import (
	"testing"

	subscriptiondomain "github.com/smallbiznis/inkwell/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventFlatShape(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_1","event":"subscription.activated","subscription_id":"sub_9"}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ProviderEventID)
	assert.Equal(t, "subscription.activated", ev.Type)
	assert.Equal(t, subscriptiondomain.KindActivated, ev.Kind)
	assert.Equal(t, "sub_9", ev.SubscriptionID)
}

func TestParseEventNestedProviderShape(t *testing.T) {
	raw := `{
		"entity": "event",
		"event": "subscription.halted",
		"contains": ["subscription"],
		"payload": {"subscription": {"entity": {"id": "sub_nested", "status": "halted"}}},
		"created_at": 1700000000
	}`
	ev, err := ParseEvent([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, ev.ProviderEventID)
	assert.Equal(t, subscriptiondomain.KindHalted, ev.Kind)
	assert.Equal(t, "sub_nested", ev.SubscriptionID)
}

func TestParseEventUnknownType(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_x","event":"payment.captured"}`))
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.KindUnknown, ev.Kind)
	assert.Empty(t, ev.SubscriptionID)
}

func TestParseEventRejectsNonObjects(t *testing.T) {
	_, err := ParseEvent([]byte("   "))
	assert.ErrorIs(t, err, ErrEmptyPayload)

	for _, raw := range []string{`[1,2]`, `"str"`, `{"id":`, `not json`} {
		_, err := ParseEvent([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidPayload, raw)
	}
}

func TestUnresolved(t *testing.T) {
	reason := "boom"
	assert.True(t, (&WebhookEvent{}).Unresolved())
	assert.True(t, (&WebhookEvent{Processed: true, Error: &reason}).Unresolved())
	assert.False(t, (&WebhookEvent{Processed: true}).Unresolved())
}
