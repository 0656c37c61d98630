package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/inkwell/internal/audit/domain"
	"github.com/smallbiznis/inkwell/internal/audit/repository"
	"github.com/smallbiznis/inkwell/internal/clock"
	obscontext "github.com/smallbiznis/inkwell/internal/observability/context"
	"github.com/smallbiznis/inkwell/pkg/db/dbtest"
	"github.com/smallbiznis/inkwell/pkg/db/pagination"
	"github.com/smallbiznis/inkwell/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    dbtest.Open(t, dbtest.AuditLogsSchema),
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk
}

func TestAuditLogEnrichesFromContext(t *testing.T) {
	svc, _ := newTestService(t)

	ctx := obscontext.WithActor(context.Background(), "operator", "alice")
	ctx = obscontext.WithRequestID(ctx, "req-1")
	ctx = obscontext.WithClientIP(ctx, "10.0.0.7")
	ctx = obscontext.WithUserAgent(ctx, "curl/8")
	ctx = correlation.ContextWithCorrelationID(ctx, "01HZXCORRELATION")

	err := svc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionWebhookRetry,
		TargetType: auditdomain.TargetTypeWebhookEvent,
		TargetID:   "1234",
		Metadata: map[string]any{
			"signature":      "deadbeefdeadbeef",
			"previous_error": "invalid signature",
		},
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "operator", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "alice", *entry.ActorID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.7", *entry.IPAddress)
	require.NotNil(t, entry.UserAgent)
	assert.Equal(t, "curl/8", *entry.UserAgent)
	assert.Equal(t, "****beef", entry.Metadata["signature"])
	assert.Equal(t, "invalid signature", entry.Metadata["previous_error"])
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "01HZXCORRELATION", entry.Metadata["correlation_id"])
	assert.False(t, resp.HasMore)
}

func TestAuditLogDefaultsToSystemActor(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Record(context.Background(), auditdomain.Entry{Action: auditdomain.ActionWebhookRejected}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), resp.AuditLogs[0].ActorType)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
	assert.Nil(t, resp.AuditLogs[0].ActorID)
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Record(context.Background(), auditdomain.Entry{ActorType: auditdomain.ActorTypeSystem, Action: "  "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, auditdomain.Entry{Action: auditdomain.ActionWebhookRejected, TargetType: auditdomain.TargetTypeWebhookEvent}))
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
	assert.True(t, second.AuditLogs[0].CreatedAt.Before(first.AuditLogs[1].CreatedAt))
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}

func TestListFiltersByActor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, actor := range []string{"alice", "bob", "alice"} {
		require.NoError(t, svc.Record(ctx, auditdomain.Entry{
			ActorType:  auditdomain.ActorTypeOperator,
			ActorID:    actor,
			Action:     auditdomain.ActionWebhookRetry,
			TargetType: auditdomain.TargetTypeWebhookEvent,
			TargetID:   "42",
		}))
	}
	require.NoError(t, svc.Record(ctx, auditdomain.Entry{
		ActorType: auditdomain.ActorTypeProvider,
		ActorID:   "stripe",
		Action:    auditdomain.ActionWebhookRejected,
	}))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{ActorType: "operator", ActorID: " alice "})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 2)
	for _, entry := range resp.AuditLogs {
		require.NotNil(t, entry.ActorID)
		assert.Equal(t, "alice", *entry.ActorID)
	}

	resp, err = svc.List(ctx, auditdomain.ListAuditLogRequest{ActorType: "provider"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, auditdomain.ActionWebhookRejected, resp.AuditLogs[0].Action)
}
