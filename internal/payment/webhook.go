package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const EventCheckoutSessionCompleted = string(stripe.EventTypeCheckoutSessionCompleted)

type Event struct {
	ID      string
	Type    string
	Session *Session // set for checkout.session.* events
}

type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// ParseEvent checks the signature header against the raw payload and decodes
// the event. Nothing is decoded before the signature is verified.
func (v *WebhookVerifier) ParseEvent(payload []byte, signature string) (*Event, error) {
	if v.secret == "" {
		return nil, ErrWebhookSecretNotSet
	}
	if signature == "" {
		return nil, ErrMissingSignature
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type == EventCheckoutSessionCompleted && ev.Data != nil {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Session = toSession(&s)
	}
	return out, nil
}
