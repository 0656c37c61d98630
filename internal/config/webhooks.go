package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// WebhookSource describes one payment provider allowed to deliver webhooks.
type WebhookSource struct {
	Name            string `mapstructure:"name"`
	SignatureHeader string `mapstructure:"signatureHeader"`
	EventIDHeader   string `mapstructure:"eventIdHeader"`
	Secret          string `mapstructure:"secret"`
	SecretEnv       string `mapstructure:"secretEnv"`
}

type WebhookSources struct {
	Sources []WebhookSource `mapstructure:"sources"`
}

// Lookup returns the source registered under name.
func (w WebhookSources) Lookup(name string) (WebhookSource, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, src := range w.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return WebhookSource{}, false
}

func DefaultWebhookSources(cfg Config) WebhookSources {
	return WebhookSources{
		Sources: []WebhookSource{{
			Name:            cfg.Webhook.DefaultSource,
			SignatureHeader: cfg.Webhook.SignatureHeader,
			EventIDHeader:   "X-Razorpay-Event-Id",
			Secret:          cfg.Webhook.Secret,
		}},
	}
}

// WebhookSourcesHolder keeps the current webhook source table and swaps it
// when webhooks.yml changes on disk, so secrets rotate without a restart.
type WebhookSourcesHolder struct {
	current atomic.Value // holds WebhookSources
}

func NewWebhookSourcesHolder(cfg Config, log *zap.Logger) (*WebhookSourcesHolder, error) {
	v := viper.New()

	v.SetConfigName("webhooks")
	v.SetConfigType("yml")
	for _, path := range cfg.Webhook.ConfigPaths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("INKWELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &WebhookSourcesHolder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		sources := normalizeWebhookSources(DefaultWebhookSources(cfg))
		if err := validateWebhookSources(sources); err != nil {
			return nil, err
		}
		holder.current.Store(sources)
		return holder, nil
	}

	sources, err := decodeWebhookSources(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(sources)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeWebhookSources(v)
		if err != nil {
			log.Warn("webhook source reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("webhook sources reloaded", zap.String("file", e.Name), zap.Int("sources", len(updated.Sources)))
	})

	return holder, nil
}

// NewStaticWebhookSourcesHolder builds a holder that never reloads.
func NewStaticWebhookSourcesHolder(sources WebhookSources) *WebhookSourcesHolder {
	holder := &WebhookSourcesHolder{}
	holder.current.Store(normalizeWebhookSources(sources))
	return holder
}

func (h *WebhookSourcesHolder) Get() WebhookSources {
	return h.current.Load().(WebhookSources)
}

func decodeWebhookSources(v *viper.Viper) (WebhookSources, error) {
	var sources WebhookSources
	if err := v.UnmarshalKey("webhooks", &sources); err != nil {
		return WebhookSources{}, err
	}
	sources = normalizeWebhookSources(sources)
	if err := validateWebhookSources(sources); err != nil {
		return WebhookSources{}, err
	}
	return sources, nil
}

func normalizeWebhookSources(in WebhookSources) WebhookSources {
	out := WebhookSources{Sources: make([]WebhookSource, 0, len(in.Sources))}
	for _, src := range in.Sources {
		src.Name = strings.ToLower(strings.TrimSpace(src.Name))
		src.SignatureHeader = strings.TrimSpace(src.SignatureHeader)
		src.EventIDHeader = strings.TrimSpace(src.EventIDHeader)
		src.Secret = strings.TrimSpace(src.Secret)
		if src.Secret == "" && strings.TrimSpace(src.SecretEnv) != "" {
			src.Secret = strings.TrimSpace(os.Getenv(strings.TrimSpace(src.SecretEnv)))
		}
		out.Sources = append(out.Sources, src)
	}
	return out
}

func validateWebhookSources(sources WebhookSources) error {
	if len(sources.Sources) == 0 {
		return errors.New("webhooks.sources cannot be empty")
	}
	seen := make(map[string]struct{}, len(sources.Sources))
	for _, src := range sources.Sources {
		if src.Name == "" {
			return errors.New("webhooks.sources[].name is required")
		}
		if src.SignatureHeader == "" {
			return fmt.Errorf("webhooks source %q: signatureHeader is required", src.Name)
		}
		if _, ok := seen[src.Name]; ok {
			return fmt.Errorf("webhooks source %q declared twice", src.Name)
		}
		seen[src.Name] = struct{}{}
	}
	return nil
}
