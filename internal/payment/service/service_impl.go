package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/inkwell/internal/clock"
	obslogger "github.com/smallbiznis/inkwell/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/inkwell/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/inkwell/internal/payment/domain"
	"github.com/smallbiznis/inkwell/internal/signature"
	subscriptiondomain "github.com/smallbiznis/inkwell/internal/subscription/domain"
	userdomain "github.com/smallbiznis/inkwell/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Verifier   *signature.PaymentVerifier
	Users      userdomain.PaymentActivator
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	verifier   *signature.PaymentVerifier
	users      userdomain.PaymentActivator
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		clock:      clk,
		verifier:   p.Verifier,
		users:      p.Users,
		obsMetrics: p.ObsMetrics,
	}
}

// Verify confirms a client-side checkout. It can only lift a FREE user to
// PRO; every other status belongs to webhook reconciliation.
func (s *Service) Verify(ctx context.Context, req paymentdomain.VerifyRequest) (paymentdomain.VerifyResult, error) {
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.SubscriptionID = strings.TrimSpace(req.SubscriptionID)
	req.Signature = strings.TrimSpace(req.Signature)
	if req.PaymentID == "" || req.SubscriptionID == "" {
		return paymentdomain.VerifyResult{}, paymentdomain.ErrInvalidRequest
	}

	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("payment_id", req.PaymentID),
		zap.String("subscription_id", req.SubscriptionID),
	)

	if !s.verifier.VerifyPaymentSignature(req.PaymentID, req.SubscriptionID, req.Signature) {
		log.Warn("payment signature rejected")
		s.obsMetrics.RecordPaymentVerification(ctx, "rejected")
		return paymentdomain.VerifyResult{}, paymentdomain.ErrInvalidSignature
	}

	var result paymentdomain.VerifyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.users.LockBySubscriptionID(ctx, tx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if user == nil {
			return paymentdomain.ErrUserNotFound
		}
		result.UserID = user.ID
		result.Status = user.SubscriptionStatus

		if user.SubscriptionStatus != subscriptiondomain.StatusFree {
			return nil
		}
		activated, err := s.users.ActivateFromFree(ctx, tx, user.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if activated {
			result.Activated = true
			result.Status = subscriptiondomain.StatusPro
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, paymentdomain.ErrUserNotFound) {
			log.Warn("payment verified for unknown subscription")
			s.obsMetrics.RecordPaymentVerification(ctx, "user_not_found")
		}
		return paymentdomain.VerifyResult{}, err
	}

	outcome := "unchanged"
	if result.Activated {
		outcome = "activated"
		s.obsMetrics.RecordStatusTransition(ctx, subscriptiondomain.StatusPro.String())
	}
	s.obsMetrics.RecordPaymentVerification(ctx, outcome)
	log.Info("payment verified",
		zap.String("user_id", result.UserID.String()),
		zap.String("subscription_status", result.Status.String()),
		zap.Bool("activated", result.Activated),
	)
	return result, nil
}
