package webhook

import (
	"context"

	"github.com/smallbiznis/inkwell/internal/webhook/domain"
	"github.com/smallbiznis/inkwell/internal/webhook/repository"
	"github.com/smallbiznis/inkwell/internal/webhook/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const backlogLogLimit = 20

var Module = fx.Module("webhook.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
	fx.Invoke(registerBacklogReport),
)

// registerBacklogReport publishes the unresolved ledger count on startup and
// logs the newest rows that still need an operator.
func registerBacklogReport(lc fx.Lifecycle, svc *service.Service, repo domain.Repository, db *gorm.DB, log *zap.Logger) {
	log = log.Named("webhook.backlog")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			count, err := svc.RefreshBacklog(ctx)
			if err != nil {
				log.Warn("failed to count unresolved webhooks", zap.Error(err))
				return nil
			}
			if count == 0 {
				return nil
			}

			rows, err := repo.ListUnresolved(ctx, db, backlogLogLimit)
			if err != nil {
				log.Warn("failed to list unresolved webhooks", zap.Error(err))
				return nil
			}
			ids := make([]string, 0, len(rows))
			for _, row := range rows {
				ids = append(ids, row.ID.String())
			}
			log.Warn("unresolved webhook deliveries awaiting retry",
				zap.Int64("count", count),
				zap.Strings("newest_ids", ids),
			)
			return nil
		},
	})
}
