package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/inkwell/internal/audit/domain"
	obslogger "github.com/smallbiznis/inkwell/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/inkwell/internal/observability/metrics"
	"github.com/smallbiznis/inkwell/internal/signature"
	subscriptiondomain "github.com/smallbiznis/inkwell/internal/subscription/domain"
	userdomain "github.com/smallbiznis/inkwell/internal/user/domain"
	webhookdomain "github.com/smallbiznis/inkwell/internal/webhook/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProcessWebhook authenticates, records and applies one provider delivery.
// A duplicate delivery is reported as OutcomeDuplicate with a nil error.
func (s *Service) ProcessWebhook(ctx context.Context, req webhookdomain.IngestRequest) (webhookdomain.Outcome, error) {
	start := s.clock.Now()

	src, err := s.sources.Lookup(req.Source)
	if err != nil {
		return webhookdomain.OutcomeRejected, webhookdomain.ErrUnknownSource
	}
	if len(bytes.TrimSpace(req.RawBody)) == 0 {
		return webhookdomain.OutcomeRejected, webhookdomain.ErrEmptyPayload
	}
	signatureHeader := strings.TrimSpace(req.Signature)
	if signatureHeader == "" {
		return webhookdomain.OutcomeRejected, webhookdomain.ErrMissingSignature
	}

	event, parseErr := webhookdomain.ParseEvent(req.RawBody)
	providerEventID := event.ProviderEventID
	if providerEventID == "" {
		providerEventID = strings.TrimSpace(req.EventID)
	}

	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("webhook_source", src.Name),
		zap.String("event_type", event.Type),
		zap.String("provider_event_id", providerEventID),
	)

	if !src.Verifier.VerifyWebhookSignature(req.RawBody, signatureHeader) {
		outcome, err := s.recordRejected(ctx, log, src, event, providerEventID, req.RawBody)
		s.finish(ctx, obsmetrics.StageIngest, src.Name, event.Type, outcome, len(req.RawBody), start)
		return outcome, err
	}

	if parseErr != nil {
		log.Warn("authentic webhook body could not be parsed", zap.Error(parseErr))
		s.finish(ctx, obsmetrics.StageIngest, src.Name, event.Type, webhookdomain.OutcomeRejected, len(req.RawBody), start)
		return webhookdomain.OutcomeRejected, parseErr
	}

	var (
		outcome webhookdomain.Outcome
		target  subscriptiondomain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByProviderEventID(ctx, tx, providerEventID)
		if err != nil {
			return err
		}
		if existing != nil {
			return webhookdomain.ErrDuplicateEvent
		}

		row := &webhookdomain.WebhookEvent{
			ID:         s.genID.Generate(),
			Source:     src.Name,
			EventType:  event.Type,
			Payload:    string(req.RawBody),
			Processed:  false,
			ReceivedAt: s.clock.Now(),
		}
		if providerEventID != "" {
			row.ProviderEventID = &providerEventID
		}
		if err := s.repo.Insert(ctx, tx, row); err != nil {
			return err
		}

		outcome, target, err = s.apply(ctx, tx, log, event)
		if err != nil {
			return err
		}

		return s.repo.MarkProcessed(ctx, tx, row.ID, s.clock.Now())
	})
	if errors.Is(err, webhookdomain.ErrDuplicateEvent) {
		log.Info("duplicate webhook delivery ignored")
		s.finish(ctx, obsmetrics.StageIngest, src.Name, event.Type, webhookdomain.OutcomeDuplicate, len(req.RawBody), start)
		return webhookdomain.OutcomeDuplicate, nil
	}
	if err != nil {
		s.reconcile.RecordTxError(obsmetrics.StageIngest, err)
		log.Error("webhook reconciliation failed", zap.Error(err))
		return webhookdomain.OutcomeRejected, err
	}

	if outcome == webhookdomain.OutcomeApplied {
		s.metrics.RecordStatusTransition(ctx, target.String())
	}
	log.Info("webhook processed",
		zap.String("outcome", string(outcome)),
		zap.String("subscription_id", event.SubscriptionID),
	)
	s.finish(ctx, obsmetrics.StageIngest, src.Name, event.Type, outcome, len(req.RawBody), start)
	return outcome, nil
}

// recordRejected stores a delivery that failed signature verification in
// its own short transaction. The subscription is never touched.
func (s *Service) recordRejected(
	ctx context.Context,
	log *zap.Logger,
	src signature.Source,
	event webhookdomain.Event,
	providerEventID string,
	rawBody []byte,
) (webhookdomain.Outcome, error) {
	reason := webhookdomain.ErrorReasonInvalidSignature
	row := &webhookdomain.WebhookEvent{
		ID:         s.genID.Generate(),
		Source:     src.Name,
		EventType:  event.Type,
		Payload:    string(rawBody),
		Processed:  false,
		Error:      &reason,
		ReceivedAt: s.clock.Now(),
	}
	if providerEventID != "" {
		row.ProviderEventID = &providerEventID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByProviderEventID(ctx, tx, providerEventID)
		if err != nil {
			return err
		}
		if existing != nil {
			return webhookdomain.ErrDuplicateEvent
		}
		return s.repo.Insert(ctx, tx, row)
	})
	if errors.Is(err, webhookdomain.ErrDuplicateEvent) {
		log.Info("duplicate webhook delivery with invalid signature ignored")
		return webhookdomain.OutcomeDuplicate, nil
	}
	if err != nil {
		s.reconcile.RecordTxError(obsmetrics.StageIngest, err)
		log.Error("failed to record rejected webhook", zap.Error(err))
		return webhookdomain.OutcomeRejected, err
	}

	log.Warn("webhook signature rejected", zap.String("webhook_event_id", row.ID.String()))
	s.writeAudit(ctx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeProvider,
		ActorID:    src.Name,
		Action:     auditdomain.ActionWebhookRejected,
		TargetType: auditdomain.TargetTypeWebhookEvent,
		TargetID:   row.ID.String(),
		Metadata: map[string]any{
			"source":            src.Name,
			"event_type":        event.Type,
			"provider_event_id": providerEventID,
			"reason":            reason,
		},
	})
	s.refreshBacklog(ctx)

	return webhookdomain.OutcomeRejected, webhookdomain.ErrInvalidSignature
}

// apply resolves the subscription owner under a row lock and writes the
// transition. It runs inside the caller's transaction.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, log *zap.Logger, event webhookdomain.Event) (webhookdomain.Outcome, subscriptiondomain.Status, error) {
	target, ok := subscriptiondomain.TransitionFor(event.Kind, "")
	if !ok {
		return webhookdomain.OutcomeNoOp, "", nil
	}

	user, err := s.lockUser(ctx, tx, event.SubscriptionID)
	if err != nil {
		return "", "", err
	}
	if user == nil {
		log.Warn("no user owns subscription", zap.String("subscription_id", event.SubscriptionID))
		return webhookdomain.OutcomeUserNotFound, "", nil
	}

	target, ok = subscriptiondomain.TransitionFor(event.Kind, user.SubscriptionStatus)
	if !ok {
		return webhookdomain.OutcomeNoOp, "", nil
	}
	if target == user.SubscriptionStatus {
		return webhookdomain.OutcomeNoOp, target, nil
	}

	if err := s.users.UpdateSubscriptionStatus(ctx, tx, user.ID, target, s.clock.Now()); err != nil {
		return "", "", err
	}
	log.Info("subscription status changed",
		zap.String("user_id", user.ID.String()),
		zap.String("from", user.SubscriptionStatus.String()),
		zap.String("to", target.String()),
	)
	return webhookdomain.OutcomeApplied, target, nil
}

func (s *Service) lockUser(ctx context.Context, tx *gorm.DB, subscriptionID string) (*userdomain.User, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, nil
	}
	waitStart := time.Now()
	user, err := s.users.LockBySubscriptionID(ctx, tx, subscriptionID)
	s.reconcile.ObserveUserLockWait(time.Since(waitStart))
	return user, err
}

func (s *Service) finish(ctx context.Context, stage, source, eventType string, outcome webhookdomain.Outcome, size int, start time.Time) {
	s.metrics.RecordWebhookEvent(ctx, source, eventType, string(outcome), size)
	s.reconcile.ObserveProcess(stage, string(outcome), s.clock.Now().Sub(start))
}
