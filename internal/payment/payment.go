package payment

import (
	"context"
	"errors"
)

var (
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
	ErrSessionNotFound      = errors.New("checkout session not found")
	ErrMissingSignature     = errors.New("missing webhook signature")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrWebhookSecretNotSet  = errors.New("webhook secret not configured")
)

// Metadata keys written on a checkout session and read back by the webhook.
const (
	MetaOrderNumber     = "orderNumber"
	MetaCustomerName    = "customerName"
	MetaCustomerEmail   = "customerEmail"
	MetaCustomerPhone   = "customerPhone"
	MetaCustomerAddress = "customerAddress"
	MetaUserID          = "clerkUserId"

	ProductMetaID    = "id"
	ProductMetaColor = "color"
	ProductMetaSize  = "size"
)

type Customer struct {
	ID    string
	Email string
}

type LineItemRequest struct {
	Name        string
	Description string
	ImageURL    string
	Currency    string
	UnitAmount  int64
	Quantity    int64
	Metadata    map[string]string
}

type SessionRequest struct {
	Items         []LineItemRequest
	Metadata      map[string]string
	CustomerID    string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID              string
	URL             string
	Paid            bool
	PaymentStatus   string
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
	PaymentIntentID string
	CustomerID      string
	CustomerEmail   string
	CustomerName    string
}

// LineItem is one purchased line as recorded by the processor, with the
// product metadata that was attached when the session was created.
type LineItem struct {
	Description     string
	Quantity        int64
	UnitAmount      int64
	AmountTotal     int64
	Currency        string
	ProductName     string
	ProductMetadata map[string]string
}

type Processor interface {
	// FindCustomerByEmail returns nil and no error when no customer matches.
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
}
