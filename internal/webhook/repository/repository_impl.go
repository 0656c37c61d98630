package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/inkwell/internal/webhook/domain"
	"github.com/smallbiznis/inkwell/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxListLimit = 250

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByProviderEventID(ctx context.Context, conn *gorm.DB, providerEventID string) (*domain.WebhookEvent, error) {
	if providerEventID == "" {
		return nil, nil
	}

	var rows []*domain.WebhookEvent
	err := conn.WithContext(ctx).Raw(
		`SELECT id, source, event_type, payload, provider_event_id, processed, error, received_at, processed_at
		 FROM webhook_events
		 WHERE provider_event_id = ?
		 LIMIT 1`,
		providerEventID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, event *domain.WebhookEvent) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (id, source, event_type, payload, provider_event_id, processed, error, received_at, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Source,
		event.EventType,
		event.Payload,
		event.ProviderEventID,
		event.Processed,
		event.Error,
		event.ReceivedAt,
		event.ProcessedAt,
	).Error
	if err != nil && db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateEvent
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.WebhookEvent, error) {
	stmt := conn.WithContext(ctx).Model(&domain.WebhookEvent{})
	if forUpdate {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rows []*domain.WebhookEvent
	if err := stmt.Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *repo) MarkProcessed(ctx context.Context, conn *gorm.DB, id snowflake.ID, at time.Time) error {
	res := conn.WithContext(ctx).Exec(
		`UPDATE webhook_events SET processed = ?, error = NULL, processed_at = ? WHERE id = ?`,
		true,
		at,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) MarkErrored(ctx context.Context, conn *gorm.DB, id snowflake.ID, reason string) error {
	res := conn.WithContext(ctx).Exec(
		`UPDATE webhook_events SET error = ? WHERE id = ?`,
		reason,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) ListUnresolved(ctx context.Context, conn *gorm.DB, limit int) ([]*domain.WebhookEvent, error) {
	return r.List(ctx, conn, domain.ListFilter{UnresolvedOnly: true, Limit: limit})
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.WebhookEvent, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit+1 {
		limit = maxListLimit + 1
	}

	stmt := conn.WithContext(ctx).Model(&domain.WebhookEvent{})
	if filter.Source != "" {
		stmt = stmt.Where("source = ?", filter.Source)
	}
	if filter.EventType != "" {
		stmt = stmt.Where("event_type = ?", filter.EventType)
	}
	if filter.UnresolvedOnly {
		stmt = stmt.Where("(processed = ? OR error IS NOT NULL)", false)
	}
	if filter.BeforeReceivedAt != nil {
		stmt = stmt.Where(
			"(received_at < ? OR (received_at = ? AND id < ?))",
			*filter.BeforeReceivedAt,
			*filter.BeforeReceivedAt,
			filter.BeforeID,
		)
	}

	var rows []*domain.WebhookEvent
	err := stmt.
		Order("received_at desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) CountUnresolved(ctx context.Context, conn *gorm.DB) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).
		Model(&domain.WebhookEvent{}).
		Where("(processed = ? OR error IS NOT NULL)", false).
		Count(&count).Error
	return count, err
}
