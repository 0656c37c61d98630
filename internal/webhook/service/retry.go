package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/inkwell/internal/audit/domain"
	obslogger "github.com/smallbiznis/inkwell/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/inkwell/internal/observability/metrics"
	"github.com/smallbiznis/inkwell/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/inkwell/internal/subscription/domain"
	webhookdomain "github.com/smallbiznis/inkwell/internal/webhook/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const retryLockName = "webhook:retry:%s"

// RetryWebhook replays a stored delivery. The stored payload is trusted
// without re-verifying its signature.
func (s *Service) RetryWebhook(ctx context.Context, req webhookdomain.RetryRequest) error {
	start := s.clock.Now()

	id, err := parseEventID(req.EventID)
	if err != nil {
		return err
	}

	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("webhook_event_id", id.String()),
		zap.String("actor", req.Actor),
	)

	release, err := s.acquireRetryLock(ctx, log, id)
	if err != nil {
		return err
	}
	defer release()

	var (
		previousError *string
		outcome       webhookdomain.Outcome
		target        subscriptiondomain.Status
		eventType     string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.repo.FindByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if row == nil {
			return webhookdomain.ErrNotFound
		}
		previousError = row.Error
		eventType = row.EventType
		if row.Error != nil && *row.Error == webhookdomain.ErrorReasonInvalidSignature {
			log.Warn("retrying a delivery whose signature was rejected")
		}

		event, err := webhookdomain.ParseEvent([]byte(row.Payload))
		if err != nil {
			return fmt.Errorf("parse stored payload: %w", err)
		}

		outcome, target, err = s.apply(ctx, tx, log, event)
		if err != nil {
			return err
		}

		return s.repo.MarkProcessed(ctx, tx, row.ID, s.clock.Now())
	})
	if errors.Is(err, webhookdomain.ErrNotFound) {
		return err
	}

	metadata := map[string]any{"event_type": eventType}
	if previousError != nil {
		metadata["previous_error"] = *previousError
	}

	if err != nil {
		s.reconcile.RecordTxError(obsmetrics.StageRetry, err)
		s.markErrored(ctx, log, id, err)
		metadata["outcome"] = "failed"
		metadata["error"] = err.Error()
		s.writeAudit(ctx, retryAudit(id, req.Actor, metadata))
		s.metrics.RecordWebhookRetry(ctx, "failed")
		s.reconcile.ObserveProcess(obsmetrics.StageRetry, "failed", s.clock.Now().Sub(start))
		s.refreshBacklog(ctx)
		log.Error("webhook retry failed", zap.Error(err))
		return err
	}

	if outcome == webhookdomain.OutcomeApplied {
		s.metrics.RecordStatusTransition(ctx, target.String())
	}
	metadata["outcome"] = string(outcome)
	s.writeAudit(ctx, retryAudit(id, req.Actor, metadata))
	s.metrics.RecordWebhookRetry(ctx, string(outcome))
	s.reconcile.ObserveProcess(obsmetrics.StageRetry, string(outcome), s.clock.Now().Sub(start))
	s.refreshBacklog(ctx)
	log.Info("webhook reprocessed", zap.String("outcome", string(outcome)))
	return nil
}

// acquireRetryLock takes the per-row distributed lock when Redis is
// configured. A Redis failure degrades to the database row lock alone.
func (s *Service) acquireRetryLock(ctx context.Context, log *zap.Logger, id snowflake.ID) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	lease, err := s.locker.Acquire(ctx, fmt.Sprintf(retryLockName, id.String()), s.lockTTL)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		return noop, webhookdomain.ErrRetryInProgress
	}
	if err != nil {
		log.Warn("retry lock unavailable, relying on row lock", zap.Error(err))
		return noop, nil
	}

	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release retry lock", zap.Error(err))
		}
	}, nil
}

func (s *Service) markErrored(ctx context.Context, log *zap.Logger, id snowflake.ID, cause error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.MarkErrored(ctx, tx, id, cause.Error())
	})
	if err != nil {
		log.Error("failed to record retry error", zap.Error(err))
	}
}

func retryAudit(id snowflake.ID, actor string, metadata map[string]any) auditdomain.Entry {
	return auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeOperator,
		ActorID:    actor,
		Action:     auditdomain.ActionWebhookRetry,
		TargetType: auditdomain.TargetTypeWebhookEvent,
		TargetID:   id.String(),
		Metadata:   metadata,
	}
}
