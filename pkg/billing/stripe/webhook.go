package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

const SignatureHeader = "Stripe-Signature"

// Stripe event types acted upon.
const (
	eventCheckoutCompleted   = "checkout.session.completed"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
)

// Authenticator verifies Stripe-Signature headers and decodes events.
type Authenticator struct {
	secret    string
	tolerance time.Duration
}

var _ billing.Authenticator = (*Authenticator)(nil)

func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Authenticator{secret: cfg.WebhookSecret, tolerance: tolerance}, nil
}

func (a *Authenticator) SignatureHeader() string { return SignatureHeader }

// Authenticate checks the signature over the raw payload before decoding it.
// API version mismatches are tolerated since only a stable subset of fields
// is read.
func (a *Authenticator) Authenticate(_ context.Context, payload []byte, signature string) (billing.Event, error) {
	if signature == "" {
		return nil, errors.Join(billing.ErrInvalidSignature, errors.New("missing signature header"))
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, signature, a.secret, a.tolerance); err != nil {
		return nil, errors.Join(billing.ErrInvalidSignature, err)
	}

	var ev stripelib.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, errors.Join(billing.ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, errors.Join(billing.ErrMalformedEvent, errors.New("event id and type are required"))
	}
	if ev.Created <= 0 {
		return nil, errors.Join(billing.ErrMalformedEvent, errors.New("event created time is required"))
	}
	return decodeEvent(&ev)
}

func decodeEvent(ev *stripelib.Event) (billing.Event, error) {
	header := billing.EventHeader{
		ID:           ev.ID,
		ProviderType: string(ev.Type),
		OccurredAt:   time.Unix(ev.Created, 0).UTC(),
	}

	var raw json.RawMessage
	if ev.Data != nil {
		raw = ev.Data.Raw
	}

	switch ev.Type {
	case eventCheckoutCompleted:
		var sess checkoutSession
		if err := decodeObject(raw, &sess); err != nil {
			return nil, err
		}
		header.Kind = billing.EventCheckoutCompleted
		md := billing.MetadataFromMap(sess.Metadata)
		if md.UserID == "" {
			md.UserID = sess.ClientReferenceID
		}
		return billing.CheckoutCompleted{
			EventHeader:    header,
			SessionID:      sess.ID,
			CustomerID:     sess.Customer,
			SubscriptionID: sess.Subscription,
			Metadata:       md,
		}, nil

	case eventSubscriptionUpdated, eventSubscriptionDeleted:
		var sub subscription
		if err := decodeObject(raw, &sub); err != nil {
			return nil, err
		}
		if sub.ID == "" {
			return nil, errors.Join(billing.ErrMalformedEvent, errors.New("subscription id is required"))
		}
		if ev.Type == eventSubscriptionDeleted {
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

func decodeObject(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.Join(billing.ErrMalformedEvent, errors.New("missing data.object"))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(billing.ErrMalformedEvent, fmt.Errorf("decode data.object: %w", err))
	}
	return nil
}

// checkoutSession is the subset of a checkout.session object read from events.
// Expandable fields arrive as plain ids in webhook payloads.
type checkoutSession struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// subscription is the subset of a subscription object read from events.
type subscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID        string `json:"id"`
				LookupKey string `json:"lookup_key"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

func (s subscription) state() billing.SubscriptionState {
	state := billing.SubscriptionState{
		ID:         s.ID,
		CustomerID: s.Customer,
		Status:     billing.ParseStatus(s.Status),
		Metadata:   billing.MetadataFromMap(s.Metadata),
	}
	for _, item := range s.Items.Data {
		if item.Price.ID == "" && item.Price.LookupKey == "" {
			continue
		}
		state.PriceID = item.Price.ID
		state.LookupKey = item.Price.LookupKey
		if item.CurrentPeriodEnd > 0 {
			state.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
		break
	}
	return state
}
