package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/inkwell/internal/subscription/domain"
	"github.com/smallbiznis/inkwell/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func ProvideStatusWriter() domain.StatusWriter {
	return &repo{}
}

func ProvidePaymentActivator() domain.PaymentActivator {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	status := user.SubscriptionStatus
	if status == "" {
		status = subscriptiondomain.StatusFree
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, email, display_name, subscription_id, subscription_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.DisplayName,
		user.SubscriptionID,
		status,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var users []*domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Limit(1).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

func (r *repo) FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.User, error) {
	return r.findBySubscriptionID(ctx, db, subscriptionID, false)
}

func (r *repo) LockBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.User, error) {
	return r.findBySubscriptionID(ctx, db, subscriptionID, true)
}

func (r *repo) findBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string, forUpdate bool) (*domain.User, error) {
	if subscriptionID == "" {
		return nil, nil
	}

	stmt := db.WithContext(ctx).Model(&domain.User{})
	if forUpdate {
		// Dialects without row locks (SQLite) drop this clause.
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var users []*domain.User
	if err := stmt.Where("subscription_id = ?", subscriptionID).Limit(1).Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

func (r *repo) UpdateSubscriptionStatus(ctx context.Context, db *gorm.DB, userID snowflake.ID, status subscriptiondomain.Status, at time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET subscription_status = ?, updated_at = ? WHERE id = ?`,
		status,
		at,
		userID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *repo) ActivateFromFree(ctx context.Context, db *gorm.DB, userID snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET subscription_status = ?, updated_at = ? WHERE id = ? AND subscription_status = ?`,
		subscriptiondomain.StatusPro,
		at,
		userID,
		subscriptiondomain.StatusFree,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
