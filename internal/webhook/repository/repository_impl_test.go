package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/inkwell/internal/webhook/domain"
	"github.com/smallbiznis/inkwell/internal/webhook/repository"
	"github.com/smallbiznis/inkwell/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEvent(node *snowflake.Node, providerEventID string, at time.Time) *domain.WebhookEvent {
	ev := &domain.WebhookEvent{
		ID:         node.Generate(),
		Source:     "razorpay",
		EventType:  "subscription.activated",
		Payload:    `{"id":"` + providerEventID + `", "event":"subscription.activated"}`,
		ReceivedAt: at,
	}
	if providerEventID != "" {
		ev.ProviderEventID = &providerEventID
	}
	return ev
}

func setup(t *testing.T) (*gorm.DB, *snowflake.Node, domain.Repository) {
	t.Helper()
	db := dbtest.Open(t, dbtest.WebhookEventsSchema, dbtest.WebhookEventsIndex)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return db, node, repository.Provide()
}

func TestInsertAndFindByProviderEventID(t *testing.T) {
	ctx := context.Background()
	db, node, repo := setup(t)

	ev := newEvent(node, "evt_1", base)
	require.NoError(t, repo.Insert(ctx, db, ev))

	got, err := repo.FindByProviderEventID(ctx, db, "evt_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.Payload, got.Payload, "payload is stored byte for byte")
	assert.False(t, got.Processed)
	assert.Nil(t, got.Error)

	missing, err := repo.FindByProviderEventID(ctx, db, "evt_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsertDuplicateProviderEventID(t *testing.T) {
	ctx := context.Background()
	db, node, repo := setup(t)

	require.NoError(t, repo.Insert(ctx, db, newEvent(node, "evt_1", base)))
	err := repo.Insert(ctx, db, newEvent(node, "evt_1", base.Add(time.Second)))
	assert.ErrorIs(t, err, domain.ErrDuplicateEvent)

	assert.Equal(t, int64(1), dbtest.Count(t, db, "webhook_events", ""))
}

func TestInsertAllowsManyRowsWithoutProviderEventID(t *testing.T) {
	ctx := context.Background()
	db, node, repo := setup(t)

	require.NoError(t, repo.Insert(ctx, db, newEvent(node, "", base)))
	require.NoError(t, repo.Insert(ctx, db, newEvent(node, "", base)))
	assert.Equal(t, int64(2), dbtest.Count(t, db, "webhook_events", "provider_event_id IS NULL"))
}

func TestMarkProcessedClearsError(t *testing.T) {
	ctx := context.Background()
	db, node, repo := setup(t)

	ev := newEvent(node, "evt_1", base)
	require.NoError(t, repo.Insert(ctx, db, ev))
	require.NoError(t, repo.MarkErrored(ctx, db, ev.ID, "user lookup failed"))

	got, err := repo.FindByID(ctx, db, ev.ID, false)
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	assert.Equal(t, "user lookup failed", *got.Error)
	assert.False(t, got.Processed)

	require.NoError(t, repo.MarkProcessed(ctx, db, ev.ID, base.Add(time.Minute)))

	got, err = repo.FindByID(ctx, db, ev.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Processed)
	assert.Nil(t, got.Error)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, got.ProcessedAt.Equal(base.Add(time.Minute)))
}

func TestMarkUnknownRow(t *testing.T) {
	ctx := context.Background()
	db, _, repo := setup(t)

	assert.ErrorIs(t, repo.MarkProcessed(ctx, db, snowflake.ID(1), base), domain.ErrNotFound)
	assert.ErrorIs(t, repo.MarkErrored(ctx, db, snowflake.ID(1), "x"), domain.ErrNotFound)

	got, err := repo.FindByID(ctx, db, snowflake.ID(1), false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListUnresolvedNewestFirst(t *testing.T) {
	ctx := context.Background()
	db, node, repo := setup(t)

	done := newEvent(node, "evt_done", base)
	pending := newEvent(node, "evt_pending", base.Add(time.Minute))
	errored := newEvent(node, "evt_errored", base.Add(2*time.Minute))
	for _, ev := range []*domain.WebhookEvent{done, pending, errored} {
		require.NoError(t, repo.Insert(ctx, db, ev))
	}
	require.NoError(t, repo.MarkProcessed(ctx, db, done.ID, base))
	require.NoError(t, repo.MarkErrored(ctx, db, errored.ID, "invalid signature"))

	rows, err := repo.ListUnresolved(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, errored.ID, rows[0].ID)
	assert.Equal(t, pending.ID, rows[1].ID)

	count, err := repo.CountUnresolved(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestListKeysetPagination(t *testing.T) {
	ctx := context.Background()
	db, node, repo := setup(t)

	var inserted []*domain.WebhookEvent
	for i := 0; i < 5; i++ {
		ev := newEvent(node, "evt_"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Insert(ctx, db, ev))
		inserted = append(inserted, ev)
	}
	other := newEvent(node, "evt_other", base.Add(time.Hour))
	other.Source = "sandbox"
	require.NoError(t, repo.Insert(ctx, db, other))

	first, err := repo.List(ctx, db, domain.ListFilter{Source: "razorpay", Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, inserted[4].ID, first[0].ID)
	assert.Equal(t, inserted[3].ID, first[1].ID)

	last := first[len(first)-1]
	second, err := repo.List(ctx, db, domain.ListFilter{
		Source:           "razorpay",
		Limit:            10,
		BeforeReceivedAt: &last.ReceivedAt,
		BeforeID:         last.ID,
	})
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, inserted[2].ID, second[0].ID)
	assert.Equal(t, inserted[0].ID, second[2].ID)

	byType, err := repo.List(ctx, db, domain.ListFilter{EventType: "subscription.cancelled"})
	require.NoError(t, err)
	assert.Empty(t, byType)
}
