package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/inkwell/internal/subscription/domain"
	userdomain "github.com/smallbiznis/inkwell/internal/user/domain"
)

var (
	ErrInvalidSignature = errors.New("invalid_payment_signature")
	ErrInvalidRequest   = errors.New("invalid_payment_request")
	ErrUserNotFound     = userdomain.ErrUserNotFound
	ErrRateLimited      = errors.New("rate_limited")
)

// VerifyRequest is a client's claim that a checkout completed. The signature
// is the provider's HMAC over "payment_id|subscription_id".
type VerifyRequest struct {
	PaymentID      string `json:"razorpay_payment_id"`
	SubscriptionID string `json:"razorpay_subscription_id"`
	Signature      string `json:"razorpay_signature"`
}

type VerifyResult struct {
	UserID    snowflake.ID              `json:"user_id"`
	Status    subscriptiondomain.Status `json:"subscription_status"`
	Activated bool                      `json:"activated"`
}

type Service interface {
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
}
