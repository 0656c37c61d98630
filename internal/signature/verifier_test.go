package signature

import (
	"strings"
	"testing"

	"github.com/smallbiznis/inkwell/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func TestVerifyWebhookSignatureUsesRawBytes(t *testing.T) {
	raw := []byte(`{"id":"evt_1", "event":"subscription.activated"}`)
	v := NewWebhookVerifier(testSecret)

	require.True(t, v.VerifyWebhookSignature(raw, Sign(testSecret, raw)))
	assert.True(t, v.VerifyWebhookSignature(raw, strings.ToUpper(Sign(testSecret, raw))))

	// Same JSON, different whitespace: the digest must not match.
	reserialized := []byte(`{"id":"evt_1","event":"subscription.activated"}`)
	assert.False(t, v.VerifyWebhookSignature(reserialized, Sign(testSecret, raw)))
}

func TestVerifyRejectsBadInput(t *testing.T) {
	raw := []byte(`{}`)
	good := Sign(testSecret, raw)

	cases := []struct {
		name      string
		secret    string
		signature string
	}{
		{name: "empty signature", secret: testSecret, signature: ""},
		{name: "whitespace signature", secret: testSecret, signature: "   "},
		{name: "non hex", secret: testSecret, signature: "zz" + good[2:]},
		{name: "truncated", secret: testSecret, signature: good[:10]},
		{name: "wrong secret", secret: "other", signature: good},
		{name: "empty secret", secret: "", signature: Sign("", raw)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, Verify(tc.secret, raw, tc.signature))
		})
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	v := NewPaymentVerifier(config.Config{Payment: config.PaymentConfig{KeySecret: "key_secret"}})
	sig := Sign("key_secret", []byte("pay_1|sub_1"))

	assert.True(t, v.VerifyPaymentSignature("pay_1", "sub_1", sig))
	assert.False(t, v.VerifyPaymentSignature("pay_1", "sub_2", sig))
	assert.False(t, v.VerifyPaymentSignature("sub_1", "pay_1", sig))
}

func TestRegistryLookup(t *testing.T) {
	holder := config.NewStaticWebhookSourcesHolder(config.WebhookSources{Sources: []config.WebhookSource{{
		Name:            "Razorpay",
		SignatureHeader: "X-Razorpay-Signature",
		EventIDHeader:   "X-Razorpay-Event-Id",
		Secret:          testSecret,
	}}})
	r := NewRegistry(holder)

	src, err := r.Lookup(" RAZORPAY ")
	require.NoError(t, err)
	assert.Equal(t, "razorpay", src.Name)
	assert.Equal(t, "X-Razorpay-Signature", src.SignatureHeader)
	raw := []byte(`{"a":1}`)
	assert.True(t, src.Verifier.VerifyWebhookSignature(raw, Sign(testSecret, raw)))

	_, err = r.Lookup("stripe")
	assert.ErrorIs(t, err, ErrUnknownSource)
	_, err = r.Lookup("")
	assert.ErrorIs(t, err, ErrUnknownSource)
}
