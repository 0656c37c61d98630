package domain

import (
	"errors"

	"github.com/smallbiznis/inkwell/internal/signature"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrMissingSignature = errors.New("missing_signature")
	ErrEmptyPayload     = errors.New("empty_payload")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrUnknownSource    = signature.ErrUnknownSource
	ErrNotFound         = errors.New("webhook_event_not_found")
	ErrRetryInProgress  = errors.New("webhook_retry_in_progress")
	ErrInvalidPageToken = errors.New("invalid_page_token")

	// ErrDuplicateEvent never leaves the service: callers see a duplicate
	// delivery as success.
	ErrDuplicateEvent = errors.New("duplicate_event")
)
