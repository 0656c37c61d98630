package signature

import (
	"errors"
	"strings"

	"github.com/smallbiznis/inkwell/internal/config"
)

var ErrUnknownSource = errors.New("unknown_webhook_source")

// Source is a resolved webhook provider with its verifier.
type Source struct {
	Name            string
	SignatureHeader string
	EventIDHeader   string
	Verifier        WebhookVerifier
}

// Registry resolves webhook sources from the live configuration, so
// rotated secrets apply to the next delivery.
type Registry struct {
	holder *config.WebhookSourcesHolder
}

func NewRegistry(holder *config.WebhookSourcesHolder) *Registry {
	return &Registry{holder: holder}
}

func (r *Registry) Lookup(name string) (Source, error) {
	if r == nil || r.holder == nil {
		return Source{}, ErrUnknownSource
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Source{}, ErrUnknownSource
	}
	src, ok := r.holder.Get().Lookup(name)
	if !ok {
		return Source{}, ErrUnknownSource
	}
	return Source{
		Name:            src.Name,
		SignatureHeader: src.SignatureHeader,
		EventIDHeader:   src.EventIDHeader,
		Verifier:        NewWebhookVerifier(src.Secret),
	}, nil
}
