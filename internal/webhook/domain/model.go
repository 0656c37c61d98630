package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// WebhookEvent is one received provider delivery. Rows are append-only:
// payload is never rewritten and rows are never deleted.
type WebhookEvent struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Source          string       `json:"source" gorm:"type:text;not null"`
	EventType       string       `json:"event_type" gorm:"type:text;not null"`
	Payload         string       `json:"payload" gorm:"type:text;not null"`
	ProviderEventID *string      `json:"provider_event_id,omitempty" gorm:"type:text;uniqueIndex"`
	Processed       bool         `json:"processed" gorm:"not null;default:false"`
	Error           *string      `json:"error,omitempty" gorm:"type:text"`
	ReceivedAt      time.Time    `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time   `json:"processed_at,omitempty"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// Unresolved reports whether the row still needs operator attention.
func (e *WebhookEvent) Unresolved() bool {
	return !e.Processed || e.Error != nil
}

const (
	ErrorReasonInvalidSignature = "invalid signature"
)
