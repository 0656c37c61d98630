package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows a ledger listing. Rows are ordered newest first by
// (received_at, id); Before* is the exclusive keyset cursor.
type ListFilter struct {
	Source           string
	EventType        string
	UnresolvedOnly   bool
	BeforeReceivedAt *time.Time
	BeforeID         snowflake.ID
	Limit            int
}

type Repository interface {
	FindByProviderEventID(ctx context.Context, db *gorm.DB, providerEventID string) (*WebhookEvent, error)
	// Insert fails with ErrDuplicateEvent when provider_event_id already exists.
	Insert(ctx context.Context, db *gorm.DB, event *WebhookEvent) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*WebhookEvent, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	MarkErrored(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error
	ListUnresolved(ctx context.Context, db *gorm.DB, limit int) ([]*WebhookEvent, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*WebhookEvent, error)
	CountUnresolved(ctx context.Context, db *gorm.DB) (int64, error)
}
