package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/inkwell/internal/observability/logger"
	webhookdomain "github.com/smallbiznis/inkwell/internal/webhook/domain"
	"go.uber.org/zap"
)

// HandleProviderWebhook accepts one provider delivery. The body is read raw
// and handed to the service untouched; the signature covers these exact bytes.
func (s *Server) HandleProviderWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	source, err := s.sources.Lookup(c.Param("source"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body := c.Request.Body
	if limit := s.cfg.Webhook.MaxBodyBytes; limit > 0 {
		body = http.MaxBytesReader(c.Writer, body, limit)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	req := webhookdomain.IngestRequest{
		Source:    source.Name,
		RawBody:   payload,
		Signature: strings.TrimSpace(c.GetHeader(source.SignatureHeader)),
	}
	if source.EventIDHeader != "" {
		req.EventID = strings.TrimSpace(c.GetHeader(source.EventIDHeader))
	}

	outcome, err := s.webhookSvc.ProcessWebhook(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(ctx).Debug("webhook accepted",
		zap.String("source", source.Name),
		zap.String("outcome", string(outcome)),
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}
