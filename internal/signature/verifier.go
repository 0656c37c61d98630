package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/smallbiznis/inkwell/internal/config"
)

// Sign returns the hex-encoded HMAC-SHA256 of message keyed by secret.
func Sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the HMAC of message under secret.
// Empty secrets, empty signatures and non-hex input never verify.
func Verify(secret string, message []byte, signature string) bool {
	if secret == "" {
		return false
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hmac.Equal(got, mac.Sum(nil))
}

// WebhookVerifier authenticates provider deliveries for one source.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) WebhookVerifier {
	return WebhookVerifier{secret: secret}
}

// VerifyWebhookSignature checks the header against the untouched request
// bytes. Callers must not re-serialize the body before calling.
func (v WebhookVerifier) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	return Verify(v.secret, rawBody, signatureHeader)
}

// PaymentVerifier authenticates client-submitted payment confirmations.
type PaymentVerifier struct {
	secret string
}

func NewPaymentVerifier(cfg config.Config) *PaymentVerifier {
	return &PaymentVerifier{secret: cfg.Payment.KeySecret}
}

func (v *PaymentVerifier) VerifyPaymentSignature(paymentID, subscriptionID, signature string) bool {
	return Verify(v.secret, PaymentMessage(paymentID, subscriptionID), signature)
}

// PaymentMessage is the canonical string the provider signs on checkout.
func PaymentMessage(paymentID, subscriptionID string) []byte {
	return []byte(paymentID + "|" + subscriptionID)
}
