package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/inkwell/internal/audit"
	"github.com/smallbiznis/inkwell/internal/authorization"
	"github.com/smallbiznis/inkwell/internal/clock"
	"github.com/smallbiznis/inkwell/internal/config"
	"github.com/smallbiznis/inkwell/internal/migration"
	"github.com/smallbiznis/inkwell/internal/observability"
	"github.com/smallbiznis/inkwell/internal/payment"
	"github.com/smallbiznis/inkwell/internal/ratelimit"
	"github.com/smallbiznis/inkwell/internal/server"
	"github.com/smallbiznis/inkwell/internal/signature"
	"github.com/smallbiznis/inkwell/internal/user"
	"github.com/smallbiznis/inkwell/internal/webhook"
	"github.com/smallbiznis/inkwell/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Schema must exist before anything reads it.
		migration.Module,

		// Functional Domains
		signature.Module,
		ratelimit.Module,
		user.Module,
		audit.Module,
		authorization.Module,
		webhook.Module,
		payment.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
