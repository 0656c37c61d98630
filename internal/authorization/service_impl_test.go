package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/inkwell/internal/authorization/keyhash"
	"github.com/smallbiznis/inkwell/internal/config"
	"github.com/smallbiznis/inkwell/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db := dbtest.Open(t, dbtest.AuditLogsSchema)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeByRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	admin := Operator{Name: "alice", Role: RoleAdmin}
	support := Operator{Name: "bob", Role: RoleSupport}

	assert.NoError(t, svc.Authorize(ctx, admin, ObjectWebhook, ActionWebhookView))
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectWebhook, ActionWebhookRetry))
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectAuditLog, ActionAuditLogView))

	assert.NoError(t, svc.Authorize(ctx, support, ObjectWebhook, ActionWebhookView))
	assert.ErrorIs(t, svc.Authorize(ctx, support, ObjectWebhook, ActionWebhookRetry), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, support, ObjectAuditLog, ActionAuditLogView), ErrForbidden)
}

func TestAuthorizeFollowsRoleChange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, Operator{Name: "carol", Role: RoleAdmin}, ObjectWebhook, ActionWebhookRetry))
	err := svc.Authorize(ctx, Operator{Name: "carol", Role: RoleSupport}, ObjectWebhook, ActionWebhookRetry)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, Operator{}, ObjectWebhook, ActionWebhookView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Operator{Name: "a", Role: RoleAdmin}, " ", ActionWebhookView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, Operator{Name: "a", Role: RoleAdmin}, ObjectWebhook, ""), ErrInvalidAction)
}

func TestSeedPoliciesIsIdempotent(t *testing.T) {
	db := dbtest.Open(t, dbtest.AuditLogsSchema)
	_, err := NewEnforcer(db)
	require.NoError(t, err)
	_, err = NewEnforcer(db)
	require.NoError(t, err)

	assert.Equal(t, int64(4), dbtest.Count(t, db, "casbin_rule", "ptype = ?", "p"))
}

func TestKeyAuthenticator(t *testing.T) {
	hash, err := keyhash.Hash("s3cret")
	require.NoError(t, err)

	auth, err := NewKeyAuthenticator(config.Config{OperatorKeys: []string{"alice:ADMIN:" + hash}}, zap.NewNop())
	require.NoError(t, err)

	op, err := auth.Authenticate(context.Background(), "alice.s3cret")
	require.NoError(t, err)
	assert.Equal(t, Operator{Name: "alice", Role: RoleAdmin}, op)

	for _, credential := range []string{"", "alice", "alice.", "alice.wrong", "mallory.s3cret"} {
		_, err := auth.Authenticate(context.Background(), credential)
		assert.ErrorIs(t, err, ErrUnauthorized, credential)
	}
}

func TestKeyAuthenticatorRejectsBadConfig(t *testing.T) {
	for _, raw := range []string{
		"alice",
		"alice:owner:$argon2id$x",
		"al.ice:admin:$argon2id$x",
		"alice:admin:",
	} {
		_, err := NewKeyAuthenticator(config.Config{OperatorKeys: []string{raw}}, zap.NewNop())
		assert.Error(t, err, raw)
	}

	_, err := NewKeyAuthenticator(config.Config{OperatorKeys: []string{"a:admin:h1", "a:support:h2"}}, zap.NewNop())
	assert.Error(t, err)
}
