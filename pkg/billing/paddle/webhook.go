package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

const SignatureHeader = "Paddle-Signature"

// DefaultWebhookTolerance bounds the signature age when Config leaves it unset.
const DefaultWebhookTolerance = 5 * time.Minute

const (
	eventTransactionCompleted = "transaction.completed"
	eventSubscriptionUpdated  = "subscription.updated"
	eventSubscriptionCanceled = "subscription.canceled"
)

// Authenticator verifies Paddle-Signature headers with the SDK verifier and
// decodes notifications.
type Authenticator struct {
	verifier *paddlesdk.WebhookVerifier
}

var _ billing.Authenticator = (*Authenticator)(nil)

func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.WebhookSecret == "" {
		return nil, errors.New("paddle: webhook secret is required")
	}
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = DefaultWebhookTolerance
	}
	return &Authenticator{
		verifier: paddlesdk.NewWebhookVerifier(cfg.WebhookSecret, paddlesdk.VerifierWithTimestampTolerance(tolerance)),
	}, nil
}

func (a *Authenticator) SignatureHeader() string { return SignatureHeader }

// Authenticate verifies the raw payload, then decodes it. The SDK verifier
// works on requests, so one is rebuilt around the received bytes.
func (a *Authenticator) Authenticate(ctx context.Context, payload []byte, signature string) (billing.Event, error) {
	if signature == "" {
		return nil, errors.Join(billing.ErrInvalidSignature, errors.New("missing signature header"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(billing.ErrInvalidSignature, err)
	}
	req.Header.Set(SignatureHeader, signature)

	ok, err := a.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(billing.ErrInvalidSignature, err)
	}
	if !ok {
		return nil, errors.Join(billing.ErrInvalidSignature, errors.New("signature mismatch"))
	}

	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, errors.Join(billing.ErrMalformedEvent, err)
	}
	if n.EventID == "" || n.EventType == "" {
		return nil, errors.Join(billing.ErrMalformedEvent, errors.New("event_id and event_type are required"))
	}
	return n.decode()
}

type notification struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type transactionData struct {
	ID             string         `json:"id"`
	CustomerID     string         `json:"customer_id"`
	SubscriptionID string         `json:"subscription_id"`
	CustomData     map[string]any `json:"custom_data"`
}

type subscriptionData struct {
	ID                   string         `json:"id"`
	Status               string         `json:"status"`
	CustomerID           string         `json:"customer_id"`
	CustomData           map[string]any `json:"custom_data"`
	CurrentBillingPeriod *struct {
		EndsAt string `json:"ends_at"`
	} `json:"current_billing_period"`
	Items []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"items"`
}

func (s subscriptionData) state() billing.SubscriptionState {
	state := billing.SubscriptionState{
		ID:         s.ID,
		CustomerID: s.CustomerID,
		Status:     billing.ParseStatus(s.Status),
		Metadata:   metadataFromCustomData(s.CustomData),
	}
	if len(s.Items) > 0 {
		state.PriceID = s.Items[0].Price.ID
	}
	if s.CurrentBillingPeriod != nil {
		state.CurrentPeriodEnd = parseTime(s.CurrentBillingPeriod.EndsAt)
	}
	return state
}

func (n notification) decode() (billing.Event, error) {
	occurredAt, err := time.Parse(time.RFC3339Nano, n.OccurredAt)
	if err != nil || occurredAt.IsZero() {
		return nil, errors.Join(billing.ErrMalformedEvent, errors.New("occurred_at is missing or invalid"))
	}
	header := billing.EventHeader{
		ID:           n.EventID,
		ProviderType: n.EventType,
		OccurredAt:   occurredAt.UTC(),
	}

	switch n.EventType {
	case eventTransactionCompleted:
		var txn transactionData
		if err := decodeData(n.Data, &txn); err != nil {
			return nil, err
		}
		header.Kind = billing.EventCheckoutCompleted
		return billing.CheckoutCompleted{
			EventHeader:    header,
			SessionID:      txn.ID,
			CustomerID:     txn.CustomerID,
			SubscriptionID: txn.SubscriptionID,
			Metadata:       metadataFromCustomData(txn.CustomData),
		}, nil

	case eventSubscriptionUpdated, eventSubscriptionCanceled:
		var sub subscriptionData
		if err := decodeData(n.Data, &sub); err != nil {
			return nil, err
		}
		if sub.ID == "" {
			return nil, errors.Join(billing.ErrMalformedEvent, errors.New("subscription id is required"))
		}
		if n.EventType == eventSubscriptionCanceled {
			header.Kind = billing.EventSubscriptionDeleted
			return billing.SubscriptionDeleted{EventHeader: header, Subscription: sub.state()}, nil
		}
		header.Kind = billing.EventSubscriptionUpdated
		return billing.SubscriptionUpdated{EventHeader: header, Subscription: sub.state()}, nil

	default:
		header.Kind = billing.EventUnhandled
		return billing.Unhandled{EventHeader: header}, nil
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.Join(billing.ErrMalformedEvent, errors.New("missing data"))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(billing.ErrMalformedEvent, err)
	}
	return nil
}
