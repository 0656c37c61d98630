package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/inkwell/internal/audit/domain"
	"github.com/smallbiznis/inkwell/internal/authorization"
	"github.com/smallbiznis/inkwell/internal/config"
	"github.com/smallbiznis/inkwell/internal/observability"
	obsmiddleware "github.com/smallbiznis/inkwell/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/inkwell/internal/observability/metrics"
	obstracing "github.com/smallbiznis/inkwell/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/inkwell/internal/payment/domain"
	"github.com/smallbiznis/inkwell/internal/ratelimit"
	"github.com/smallbiznis/inkwell/internal/signature"
	webhookdomain "github.com/smallbiznis/inkwell/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	webhookSvc     webhookdomain.Service
	paymentSvc     paymentdomain.Service
	auditSvc       auditdomain.Service
	authzSvc       authorization.Service
	authenticator  authorization.Authenticator
	sources        *signature.Registry
	paymentLimiter *ratelimit.PaymentVerifyLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	WebhookSvc     webhookdomain.Service
	PaymentSvc     paymentdomain.Service
	AuditSvc       auditdomain.Service
	AuthzSvc       authorization.Service
	Authenticator  authorization.Authenticator
	Sources        *signature.Registry
	PaymentLimiter *ratelimit.PaymentVerifyLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics             `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.handler"),
		webhookSvc:     p.WebhookSvc,
		paymentSvc:     p.PaymentSvc,
		auditSvc:       p.AuditSvc,
		authzSvc:       p.AuthzSvc,
		authenticator:  p.Authenticator,
		sources:        p.Sources,
		paymentLimiter: p.PaymentLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:source", s.HandleProviderWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/payments/verify", s.PaymentVerifyRateLimit(), s.VerifyPayment)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/system")
	admin.Use(s.OperatorRequired())

	admin.GET("/webhooks", s.authorizeOperator(authorization.ObjectWebhook, authorization.ActionWebhookView), s.ListWebhookEvents)
	admin.GET("/errors", s.authorizeOperator(authorization.ObjectWebhook, authorization.ActionWebhookView), s.ListWebhookErrors)
	admin.GET("/webhooks/:id", s.authorizeOperator(authorization.ObjectWebhook, authorization.ActionWebhookView), s.GetWebhookEvent)
	admin.POST("/webhooks/:id/retry", s.authorizeOperator(authorization.ObjectWebhook, authorization.ActionWebhookRetry), s.RetryWebhookEvent)

	admin.GET("/audit-logs", s.authorizeOperator(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
