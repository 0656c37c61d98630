package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookSourcesFallBackToEnvDefaults(t *testing.T) {
	cfg := Config{Webhook: WebhookConfig{
		ConfigPaths:     []string{t.TempDir()},
		DefaultSource:   "razorpay",
		SignatureHeader: "X-Razorpay-Signature",
		Secret:          "whsec_env",
	}}

	holder, err := NewWebhookSourcesHolder(cfg, zap.NewNop())
	require.NoError(t, err)

	src, ok := holder.Get().Lookup("RazorPay")
	require.True(t, ok)
	assert.Equal(t, "whsec_env", src.Secret)
	assert.Equal(t, "X-Razorpay-Signature", src.SignatureHeader)
	assert.Equal(t, "X-Razorpay-Event-Id", src.EventIDHeader)
}

func TestWebhookSourcesLoadedFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_PROVIDER_SECRET", "whsec_from_env")

	body := `webhooks:
  sources:
    - name: Razorpay
      signatureHeader: X-Razorpay-Signature
      secret: whsec_file
    - name: sandbox
      signatureHeader: X-Sandbox-Signature
      secretEnv: TEST_PROVIDER_SECRET
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "webhooks.yml"), []byte(body), 0o600))

	cfg := Config{Webhook: WebhookConfig{ConfigPaths: []string{dir}}}
	holder, err := NewWebhookSourcesHolder(cfg, zap.NewNop())
	require.NoError(t, err)

	sources := holder.Get()
	require.Len(t, sources.Sources, 2)

	razorpay, ok := sources.Lookup("razorpay")
	require.True(t, ok)
	assert.Equal(t, "whsec_file", razorpay.Secret)

	sandbox, ok := sources.Lookup("sandbox")
	require.True(t, ok)
	assert.Equal(t, "whsec_from_env", sandbox.Secret)

	_, ok = sources.Lookup("stripe")
	assert.False(t, ok)
}

func TestWebhookSourcesRejectsDuplicateNames(t *testing.T) {
	err := validateWebhookSources(normalizeWebhookSources(WebhookSources{Sources: []WebhookSource{
		{Name: "razorpay", SignatureHeader: "X-A"},
		{Name: " RAZORPAY ", SignatureHeader: "X-B"},
	}}))
	require.Error(t, err)
}
