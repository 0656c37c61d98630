package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/smallbiznis/inkwell/internal/webhook/domain"
	"github.com/smallbiznis/inkwell/pkg/db/pagination"
)

type listWebhookEventsQuery struct {
	pagination.Pagination
	Source    string `form:"source"`
	EventType string `form:"event_type"`
}

func (s *Server) ListWebhookEvents(c *gin.Context) {
	s.listWebhookEvents(c, false)
}

// ListWebhookErrors shows rows that were never processed or carry an error.
func (s *Server) ListWebhookErrors(c *gin.Context) {
	s.listWebhookEvents(c, true)
}

func (s *Server) listWebhookEvents(c *gin.Context, unresolvedOnly bool) {
	var query listWebhookEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if query.PageSize < 0 {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be positive"))
		return
	}

	req := webhookdomain.ListRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
		Source:    strings.ToLower(strings.TrimSpace(query.Source)),
		EventType: strings.TrimSpace(query.EventType),
	}

	var (
		resp webhookdomain.ListResponse
		err  error
	)
	if unresolvedOnly {
		resp, err = s.webhookSvc.ListErrors(c.Request.Context(), req)
	} else {
		resp, err = s.webhookSvc.List(c.Request.Context(), req)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Events,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetWebhookEvent(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	event, err := s.webhookSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

// RetryWebhookEvent re-applies a stored delivery. The stored payload is
// trusted: it is never re-verified.
func (s *Server) RetryWebhookEvent(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	operator, ok := operatorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.webhookSvc.RetryWebhook(c.Request.Context(), webhookdomain.RetryRequest{
		EventID: id,
		Actor:   operator.Name,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Webhook reprocessed successfully",
	})
}
