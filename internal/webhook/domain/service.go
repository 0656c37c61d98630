package domain

import (
	"context"

	"github.com/smallbiznis/inkwell/pkg/db/pagination"
)

// Outcome classifies how a delivery or retry ended.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeNoOp         Outcome = "noop"
	OutcomeUserNotFound Outcome = "user_not_found"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeRejected     Outcome = "rejected"
)

type IngestRequest struct {
	Source    string
	RawBody   []byte
	Signature string
	// EventID is the provider event id header, used when the body has none.
	EventID string
}

type RetryRequest struct {
	EventID string
	Actor   string
}

type ListRequest struct {
	PageToken      string
	PageSize       int
	Source         string
	EventType      string
	UnresolvedOnly bool
}

type ListResponse struct {
	pagination.PageInfo
	Events []*WebhookEvent `json:"events"`
}

type Service interface {
	ProcessWebhook(ctx context.Context, req IngestRequest) (Outcome, error)
	RetryWebhook(ctx context.Context, req RetryRequest) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	ListErrors(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id string) (*WebhookEvent, error)
}
