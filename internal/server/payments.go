package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/inkwell/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/inkwell/internal/payment/domain"
	"github.com/smallbiznis/inkwell/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitEndpointPaymentVerify = "payment_verify"

// PaymentVerifyRateLimit throttles checkout confirmations per client IP.
// Limiter failures fail open.
func (s *Server) PaymentVerifyRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.paymentLimiter == nil || !s.paymentLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.paymentLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("payment verify rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("payment verify rate limit exceeded",
				zap.String("endpoint", rateLimitEndpointPaymentVerify),
			)
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(ctx, rateLimitEndpointPaymentVerify, "ip-rate")
			}
			c.Header("Retry-After", retryAfterSeconds(result))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) VerifyPayment(c *gin.Context) {
	var req paymentdomain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.SubscriptionID = strings.TrimSpace(req.SubscriptionID)
	req.Signature = strings.TrimSpace(req.Signature)

	result, err := s.paymentSvc.Verify(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

func retryAfterSeconds(result *ratelimit.RateLimitResult) string {
	seconds := int(math.Ceil(result.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
