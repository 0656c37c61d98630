package service

import (
	"context"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/inkwell/internal/audit/domain"
	"github.com/smallbiznis/inkwell/internal/clock"
	"github.com/smallbiznis/inkwell/internal/config"
	obsmetrics "github.com/smallbiznis/inkwell/internal/observability/metrics"
	"github.com/smallbiznis/inkwell/internal/ratelimit"
	"github.com/smallbiznis/inkwell/internal/signature"
	userdomain "github.com/smallbiznis/inkwell/internal/user/domain"
	webhookdomain "github.com/smallbiznis/inkwell/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Config    config.Config
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      webhookdomain.Repository
	Users     userdomain.StatusWriter
	Sources   *signature.Registry
	AuditSvc  auditdomain.Service          `optional:"true"`
	Locker    *ratelimit.Locker            `optional:"true"`
	Metrics   *obsmetrics.Metrics          `optional:"true"`
	Reconcile *obsmetrics.ReconcileMetrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      webhookdomain.Repository
	users     userdomain.StatusWriter
	sources   *signature.Registry
	auditSvc  auditdomain.Service
	locker    *ratelimit.Locker
	lockTTL   time.Duration
	metrics   *obsmetrics.Metrics
	reconcile *obsmetrics.ReconcileMetrics
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Service{
		db:        p.DB,
		log:       p.Log.Named("webhook.service"),
		genID:     p.GenID,
		clock:     clk,
		repo:      p.Repo,
		users:     p.Users,
		sources:   p.Sources,
		auditSvc:  p.AuditSvc,
		locker:    p.Locker,
		lockTTL:   ratelimit.RetryLockTTL(p.Config),
		metrics:   p.Metrics,
		reconcile: p.Reconcile,
	}
}

// RefreshBacklog publishes the number of unresolved ledger rows.
func (s *Service) RefreshBacklog(ctx context.Context) (int64, error) {
	count, err := s.repo.CountUnresolved(ctx, s.db)
	if err != nil {
		return 0, err
	}
	s.reconcile.SetUnresolved(count)
	return count, nil
}

func (s *Service) refreshBacklog(ctx context.Context) {
	if _, err := s.RefreshBacklog(ctx); err != nil {
		s.log.Warn("failed to refresh unresolved webhook gauge", zap.Error(err))
	}
}

func (s *Service) writeAudit(ctx context.Context, entry auditdomain.Entry) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, entry); err != nil {
		s.log.Warn("failed to write webhook audit log",
			zap.String("action", entry.Action),
			zap.String("webhook_event_id", entry.TargetID),
			zap.Error(err),
		)
	}
}

func parseEventID(raw string) (snowflake.ID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, webhookdomain.ErrNotFound
	}
	return snowflake.ID(id), nil
}
