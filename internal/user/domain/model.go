package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/inkwell/internal/subscription/domain"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user_not_found")

// User is the part of the account record that billing reconciliation owns.
type User struct {
	ID                 snowflake.ID              `gorm:"primaryKey" json:"id"`
	Email              string                    `gorm:"not null" json:"email"`
	DisplayName        string                    `gorm:"not null;default:''" json:"display_name"`
	SubscriptionID     *string                   `gorm:"uniqueIndex" json:"subscription_id,omitempty"`
	SubscriptionStatus subscriptiondomain.Status `gorm:"type:text;not null;default:'FREE'" json:"subscription_status"`
	CreatedAt          time.Time                 `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time                 `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Repository is the read side of the user record plus account creation.
// It cannot change a subscription status.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*User, error)
}

// StatusWriter applies arbitrary subscription transitions. Only webhook
// reconciliation receives one.
type StatusWriter interface {
	// LockBySubscriptionID loads the user and holds its row lock for the rest
	// of the transaction. Returns nil, nil when no user matches.
	LockBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*User, error)
	UpdateSubscriptionStatus(ctx context.Context, db *gorm.DB, userID snowflake.ID, status subscriptiondomain.Status, at time.Time) error
}

// PaymentActivator may only move a user from FREE to PRO.
type PaymentActivator interface {
	LockBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*User, error)
	// ActivateFromFree reports whether the row was still FREE and is now PRO.
	ActivateFromFree(ctx context.Context, db *gorm.DB, userID snowflake.ID, at time.Time) (bool, error)
}
