package billing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.created"}`)
	secret := "whsec_test"
	now := time.Now()

	t.Run("valid signature", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now)
		assert.True(t, VerifyStripeWebhookSignature(payload, header, secret, now))
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := SignWebhookPayload(payload, "whsec_other", now)
		assert.False(t, VerifyStripeWebhookSignature(payload, header, secret, now))
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now)
		assert.False(t, VerifyStripeWebhookSignature([]byte(`{"id":"evt_2"}`), header, secret, now))
	})

	t.Run("stale timestamp", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now.Add(-SignatureTolerance-time.Minute))
		assert.False(t, VerifyStripeWebhookSignature(payload, header, secret, now))
	})

	t.Run("future timestamp", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now.Add(SignatureTolerance+time.Minute))
		assert.False(t, VerifyStripeWebhookSignature(payload, header, secret, now))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.False(t, VerifyStripeWebhookSignature(payload, "", secret, now))
	})

	t.Run("missing secret", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now)
		assert.False(t, VerifyStripeWebhookSignature(payload, header, "", now))
	})

	t.Run("garbage header", func(t *testing.T) {
		assert.False(t, VerifyStripeWebhookSignature(payload, "t=abc,v1=zz", secret, now))
	})

	t.Run("extra v1 candidates", func(t *testing.T) {
		header := SignWebhookPayload(payload, secret, now)
		header = fmt.Sprintf("%s,v1=%s", header, "deadbeef")
		assert.True(t, VerifyStripeWebhookSignature(payload, header, secret, now))
	})
}
