package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProcessor implements Processor on the Stripe API. Every call goes
// through a circuit breaker.
type StripeProcessor struct {
	api     *client.API
	breaker *gobreaker.CircuitBreaker[any]
	log     *slog.Logger
}

func NewStripeProcessor(secretKey string, backends *stripe.Backends, cfg BreakerConfig, log *slog.Logger) *StripeProcessor {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeProcessor{
		api:     api,
		breaker: newBreaker(cfg, log),
		log:     log,
	}
}

func (p *StripeProcessor) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	return execute(p.breaker, func() (*Customer, error) {
		params := &stripe.CustomerListParams{Email: stripe.String(email)}
		params.Context = ctx
		params.Limit = stripe.Int64(1)
		params.Single = true

		it := p.api.Customers.List(params)
		if it.Next() {
			c := it.Customer()
			return &Customer{ID: c.ID, Email: c.Email}, nil
		}
		if err := it.Err(); err != nil {
			return nil, fmt.Errorf("list customers: %w", err)
		}
		return nil, nil
	})
}

func (p *StripeProcessor) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx

	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else {
		params.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
		if req.CustomerEmail != "" {
			params.CustomerEmail = stripe.String(req.CustomerEmail)
		}
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	for _, item := range req.Items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(item.Name),
			Metadata: item.Metadata,
		}
		if item.Description != "" {
			productData.Description = stripe.String(item.Description)
		}
		if item.ImageURL != "" {
			productData.Images = []*string{stripe.String(item.ImageURL)}
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(item.Currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: productData,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	return execute(p.breaker, func() (*Session, error) {
		s, err := p.api.CheckoutSessions.New(params)
		if err != nil {
			return nil, fmt.Errorf("create checkout session: %w", err)
		}
		return toSession(s), nil
	})
}

func (p *StripeProcessor) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return execute(p.breaker, func() (*Session, error) {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		s, err := p.api.CheckoutSessions.Get(sessionID, params)
		if err != nil {
			if isResourceMissing(err) {
				return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
			}
			return nil, fmt.Errorf("get checkout session: %w", err)
		}
		return toSession(s), nil
	})
}

// ListLineItems returns every line item of the session with the product
// expanded, so the metadata attached at session creation is available.
func (p *StripeProcessor) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	return execute(p.breaker, func() ([]LineItem, error) {
		params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(sessionID)}
		params.Context = ctx
		params.AddExpand("data.price.product")

		var items []LineItem
		it := p.api.CheckoutSessions.ListLineItems(params)
		for it.Next() {
			items = append(items, toLineItem(it.LineItem()))
		}
		if err := it.Err(); err != nil {
			if isResourceMissing(err) {
				return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
			}
			return nil, fmt.Errorf("list line items: %w", err)
		}
		return items, nil
	})
}

func isResourceMissing(err error) bool {
	var se *stripe.Error
	return errors.As(err, &se) && se.Code == stripe.ErrorCodeResourceMissing
}

func toSession(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		Paid:          s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
		out.CustomerName = s.CustomerDetails.Name
	}
	return out
}

func toLineItem(li *stripe.LineItem) LineItem {
	out := LineItem{
		Description:     li.Description,
		Quantity:        li.Quantity,
		AmountTotal:     li.AmountTotal,
		Currency:        string(li.Currency),
		ProductMetadata: map[string]string{},
	}
	if li.Price != nil {
		out.UnitAmount = li.Price.UnitAmount
		if li.Price.Product != nil {
			out.ProductName = li.Price.Product.Name
			if li.Price.Product.Metadata != nil {
				out.ProductMetadata = li.Price.Product.Metadata
			}
		}
	}
	return out
}
