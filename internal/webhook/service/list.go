package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	webhookdomain "github.com/smallbiznis/inkwell/internal/webhook/domain"
	"github.com/smallbiznis/inkwell/pkg/db/pagination"
)

func (s *Service) List(ctx context.Context, req webhookdomain.ListRequest) (webhookdomain.ListResponse, error) {
	limit := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}.Limit()

	filter := webhookdomain.ListFilter{
		Source:         strings.ToLower(strings.TrimSpace(req.Source)),
		EventType:      strings.TrimSpace(req.EventType),
		UnresolvedOnly: req.UnresolvedOnly,
		Limit:          limit + 1,
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return webhookdomain.ListResponse{}, webhookdomain.ErrInvalidPageToken
		}
		receivedAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return webhookdomain.ListResponse{}, webhookdomain.ErrInvalidPageToken
		}
		id, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil || id <= 0 {
			return webhookdomain.ListResponse{}, webhookdomain.ErrInvalidPageToken
		}
		filter.BeforeReceivedAt = &receivedAt
		filter.BeforeID = snowflake.ID(id)
	}

	rows, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return webhookdomain.ListResponse{}, err
	}

	rows, pageInfo := pagination.BuildCursorPageInfo(rows, limit, func(row *webhookdomain.WebhookEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        row.ID.String(),
			CreatedAt: row.ReceivedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	if rows == nil {
		rows = []*webhookdomain.WebhookEvent{}
	}
	return webhookdomain.ListResponse{PageInfo: *pageInfo, Events: rows}, nil
}

// ListErrors lists rows that still need operator attention.
func (s *Service) ListErrors(ctx context.Context, req webhookdomain.ListRequest) (webhookdomain.ListResponse, error) {
	req.UnresolvedOnly = true
	return s.List(ctx, req)
}

func (s *Service) Get(ctx context.Context, id string) (*webhookdomain.WebhookEvent, error) {
	eventID, err := parseEventID(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	row, err := s.repo.FindByID(ctx, s.db, eventID, false)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, webhookdomain.ErrNotFound
	}
	return row, nil
}
