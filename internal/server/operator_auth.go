package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/inkwell/internal/audit/domain"
	"github.com/smallbiznis/inkwell/internal/authorization"
	obscontext "github.com/smallbiznis/inkwell/internal/observability/context"
)

const contextOperatorKey = "operator"

// OperatorRequired authenticates console requests with an operator bearer key.
func (s *Server) OperatorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if s.authenticator == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		operator, err := s.authenticator.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeOperator), operator.Name)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextOperatorKey, operator)
		c.Next()
	}
}

func (s *Server) authorizeOperator(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		operator, ok := operatorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), operator, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func operatorFromContext(c *gin.Context) (authorization.Operator, bool) {
	value, ok := c.Get(contextOperatorKey)
	if !ok {
		return authorization.Operator{}, false
	}
	operator, ok := value.(authorization.Operator)
	if !ok || operator.Name == "" {
		return authorization.Operator{}, false
	}
	return operator, true
}
