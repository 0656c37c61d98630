package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	subscriptiondomain "github.com/smallbiznis/inkwell/internal/subscription/domain"
)

// Event is a provider delivery parsed once at the boundary. Everything
// downstream switches on Kind instead of re-reading the payload.
type Event struct {
	ProviderEventID string
	Type            string
	Kind            subscriptiondomain.EventKind
	SubscriptionID  string
}

// envelope accepts both the flat shape ({"id","event","subscription_id"}) and
// the provider's nested shape (payload.subscription.entity.id).
type envelope struct {
	ID             string `json:"id"`
	Event          string `json:"event"`
	Type           string `json:"type"`
	SubscriptionID string `json:"subscription_id"`
	Payload        struct {
		Subscription struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// ParseEvent decodes a raw delivery body. Bodies that are not a JSON object
// fail with ErrInvalidPayload; missing fields are left empty.
func ParseEvent(raw []byte) (Event, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Event{}, ErrEmptyPayload
	}
	if trimmed[0] != '{' {
		return Event{}, ErrInvalidPayload
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Event{}, ErrInvalidPayload
	}

	eventType := strings.TrimSpace(env.Event)
	if eventType == "" {
		eventType = strings.TrimSpace(env.Type)
	}

	subscriptionID := strings.TrimSpace(env.SubscriptionID)
	if subscriptionID == "" {
		subscriptionID = strings.TrimSpace(env.Payload.Subscription.Entity.ID)
	}

	return Event{
		ProviderEventID: strings.TrimSpace(env.ID),
		Type:            eventType,
		Kind:            subscriptiondomain.KindOf(eventType),
		SubscriptionID:  subscriptionID,
	}, nil
}
