package stripe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

const testSecret = "whsec_test_secret"

func sign(t *testing.T, payload string, ts time.Time) ([]byte, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: ts,
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(Config{WebhookSecret: testSecret})
	require.NoError(t, err)
	return a
}

func TestAuthenticateCheckoutCompleted(t *testing.T) {
	t.Parallel()

	payload := `{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_1",
			"object": "checkout.session",
			"customer": "cus_1",
			"subscription": "sub_1",
			"metadata": {"user_id": "u1", "plan": "premium"}
		}}
	}`
	body, header := sign(t, payload, time.Now())

	ev, err := newTestAuthenticator(t).Authenticate(context.Background(), body, header)
	require.NoError(t, err)

	cc, ok := ev.(billing.CheckoutCompleted)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "evt_1", cc.ID)
	assert.Equal(t, billing.EventCheckoutCompleted, cc.Kind)
	assert.Equal(t, "checkout.session.completed", cc.ProviderType)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), cc.OccurredAt)
	assert.Equal(t, "cs_1", cc.SessionID)
	assert.Equal(t, "cus_1", cc.CustomerID)
	assert.Equal(t, "sub_1", cc.SubscriptionID)
	assert.Equal(t, billing.Metadata{UserID: "u1", Plan: billing.PlanPremium}, cc.Metadata)
}

func TestAuthenticateSubscriptionEvents(t *testing.T) {
	t.Parallel()

	tmpl := `{
		"id": "evt_%[1]s",
		"object": "event",
		"type": "customer.subscription.%[1]s",
		"created": 1700000100,
		"data": {"object": {
			"id": "sub_1",
			"object": "subscription",
			"customer": "cus_1",
			"status": "%[2]s",
			"metadata": {"user_id": "u1"},
			"items": {"object": "list", "data": [{
				"current_period_end": 1702592000,
				"price": {"id": "price_pro", "lookup_key": "pro"}
			}]}
		}}
	}`

	t.Run("updated", func(t *testing.T) {
		t.Parallel()
		body, header := sign(t, fmt.Sprintf(tmpl, "updated", "past_due"), time.Now())
		ev, err := newTestAuthenticator(t).Authenticate(context.Background(), body, header)
		require.NoError(t, err)
		up, ok := ev.(billing.SubscriptionUpdated)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "sub_1", up.Subscription.ID)
		assert.Equal(t, "cus_1", up.Subscription.CustomerID)
		assert.Equal(t, billing.StatusPastDue, up.Subscription.Status)
		assert.Equal(t, "pro", up.Subscription.LookupKey)
		assert.Equal(t, "price_pro", up.Subscription.PriceID)
		assert.Equal(t, time.Unix(1702592000, 0).UTC(), up.Subscription.CurrentPeriodEnd)
		assert.Equal(t, "u1", up.Subscription.Metadata.UserID)
	})

	t.Run("deleted", func(t *testing.T) {
		t.Parallel()
		body, header := sign(t, fmt.Sprintf(tmpl, "deleted", "canceled"), time.Now())
		ev, err := newTestAuthenticator(t).Authenticate(context.Background(), body, header)
		require.NoError(t, err)
		del, ok := ev.(billing.SubscriptionDeleted)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, billing.EventSubscriptionDeleted, del.Kind)
		assert.Equal(t, billing.StatusCanceled, del.Subscription.Status)
	})
}

func TestAuthenticateUnhandled(t *testing.T) {
	t.Parallel()
	body, header := sign(t, `{"id":"evt_2","object":"event","type":"invoice.paid","created":1,"data":{"object":{"id":"in_1"}}}`, time.Now())
	ev, err := newTestAuthenticator(t).Authenticate(context.Background(), body, header)
	require.NoError(t, err)
	u, ok := ev.(billing.Unhandled)
	require.True(t, ok)
	assert.Equal(t, "invoice.paid", u.ProviderType)
}

func TestAuthenticateRejects(t *testing.T) {
	t.Parallel()

	payload := `{"id":"evt_1","object":"event","type":"invoice.paid","created":1,"data":{"object":{}}}`
	a := newTestAuthenticator(t)
	ctx := context.Background()

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()
		_, err := a.Authenticate(ctx, []byte(payload), "")
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		t.Parallel()
		body, header := sign(t, payload, time.Now())
		tampered := append([]byte{}, body...)
		tampered[len(tampered)-2] = ' '
		_, err := a.Authenticate(ctx, tampered, header)
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		other, err := NewAuthenticator(Config{WebhookSecret: "whsec_other"})
		require.NoError(t, err)
		body, header := sign(t, payload, time.Now())
		_, err = other.Authenticate(ctx, body, header)
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("expired timestamp", func(t *testing.T) {
		t.Parallel()
		body, header := sign(t, payload, time.Now().Add(-time.Hour))
		_, err := a.Authenticate(ctx, body, header)
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("authentic but malformed", func(t *testing.T) {
		t.Parallel()
		body, header := sign(t, `{"id":`, time.Now())
		_, err := a.Authenticate(ctx, body, header)
		assert.ErrorIs(t, err, billing.ErrMalformedEvent)
		assert.NotErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("authentic event without created time", func(t *testing.T) {
		t.Parallel()
		for _, created := range []string{``, `"created":0,`} {
			body, header := sign(t, `{"id":"evt_4","object":"event",`+created+`"type":"customer.subscription.updated","data":{"object":{"id":"sub_1","status":"active"}}}`, time.Now())
			_, err := a.Authenticate(ctx, body, header)
			assert.ErrorIs(t, err, billing.ErrMalformedEvent)
			assert.NotErrorIs(t, err, billing.ErrInvalidSignature)
		}
	})

	t.Run("authentic subscription without id", func(t *testing.T) {
		t.Parallel()
		body, header := sign(t, `{"id":"evt_3","object":"event","type":"customer.subscription.updated","created":1,"data":{"object":{"status":"active"}}}`, time.Now())
		_, err := a.Authenticate(ctx, body, header)
		assert.ErrorIs(t, err, billing.ErrMalformedEvent)
	})
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	t.Parallel()
	_, err := NewAuthenticator(Config{})
	assert.Error(t, err)
	assert.Equal(t, "Stripe-Signature", newTestAuthenticator(t).SignatureHeader())
}
