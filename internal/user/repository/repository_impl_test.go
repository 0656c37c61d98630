package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/inkwell/internal/subscription/domain"
	"github.com/smallbiznis/inkwell/internal/user/domain"
	"github.com/smallbiznis/inkwell/internal/user/repository"
	"github.com/smallbiznis/inkwell/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedUser(t *testing.T, db *gorm.DB, id snowflake.ID, subID string, status subscriptiondomain.Status) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := &domain.User{
		ID:                 id,
		Email:              subID + "@example.com",
		SubscriptionID:     &subID,
		SubscriptionStatus: status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, repository.Provide().Insert(context.Background(), db, u))
	return u
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func TestFindBySubscriptionID(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, dbtest.UsersSchema)
	node := newNode(t)
	seeded := seedUser(t, db, node.Generate(), "sub_9", subscriptiondomain.StatusFree)

	repo := repository.Provide()
	got, err := repo.FindBySubscriptionID(ctx, db, "sub_9")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, seeded.ID, got.ID)
	assert.Equal(t, subscriptiondomain.StatusFree, got.SubscriptionStatus)

	missing, err := repo.FindBySubscriptionID(ctx, db, "sub_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := repo.FindBySubscriptionID(ctx, db, "")
	require.NoError(t, err)
	assert.Nil(t, empty)

	byID, err := repo.FindByID(ctx, db, seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "sub_9@example.com", byID.Email)
}

func TestLockAndUpdateInsideTransaction(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, dbtest.UsersSchema)
	node := newNode(t)
	seeded := seedUser(t, db, node.Generate(), "sub_1", subscriptiondomain.StatusPro)

	writer := repository.ProvideStatusWriter()
	err := db.Transaction(func(tx *gorm.DB) error {
		u, err := writer.LockBySubscriptionID(ctx, tx, "sub_1")
		if err != nil {
			return err
		}
		require.NotNil(t, u)
		return writer.UpdateSubscriptionStatus(ctx, tx, u.ID, subscriptiondomain.StatusCancelled, time.Now().UTC())
	})
	require.NoError(t, err)

	got, err := repository.Provide().FindByID(ctx, db, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusCancelled, got.SubscriptionStatus)
}

func TestUpdateUnknownUser(t *testing.T) {
	db := dbtest.Open(t, dbtest.UsersSchema)
	err := repository.ProvideStatusWriter().UpdateSubscriptionStatus(context.Background(), db, snowflake.ID(42), subscriptiondomain.StatusPro, time.Now())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestActivateFromFreeOnlyMovesFree(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, dbtest.UsersSchema)
	node := newNode(t)
	free := seedUser(t, db, node.Generate(), "sub_free", subscriptiondomain.StatusFree)
	paused := seedUser(t, db, node.Generate(), "sub_paused", subscriptiondomain.StatusPaused)

	activator := repository.ProvidePaymentActivator()

	ok, err := activator.ActivateFromFree(ctx, db, free.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = activator.ActivateFromFree(ctx, db, free.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok, "second activation finds the user already PRO")

	ok, err = activator.ActivateFromFree(ctx, db, paused.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int64(1), dbtest.Count(t, db, "users", "subscription_status = ?", "PRO"))
	assert.Equal(t, int64(1), dbtest.Count(t, db, "users", "subscription_status = ?", "PAUSED"))
}
