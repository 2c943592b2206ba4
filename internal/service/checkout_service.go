package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const unnamedProduct = "Unnamed Product"

// Metadata travels with the payment session and comes back in the webhook.
type Metadata struct {
	OrderNumber     string `json:"orderNumber" validate:"required,max=64"`
	CustomerName    string `json:"customerName" validate:"max=200"`
	CustomerEmail   string `json:"customerEmail" validate:"required,email"`
	CustomerPhone   string `json:"customerPhone" validate:"max=40"`
	CustomerAddress string `json:"customerAddress" validate:"max=500"`
	UserID          string `json:"clerkUserId" validate:"max=128"`
}

func (m Metadata) toMap() map[string]string {
	return map[string]string{
		payment.MetaOrderNumber:     m.OrderNumber,
		payment.MetaCustomerName:    m.CustomerName,
		payment.MetaCustomerEmail:   m.CustomerEmail,
		payment.MetaCustomerPhone:   m.CustomerPhone,
		payment.MetaCustomerAddress: m.CustomerAddress,
		payment.MetaUserID:          m.UserID,
	}
}

type CheckoutConfig struct {
	BaseURL  string
	Currency string
}

type CheckoutResult struct {
	URL         string `json:"url"`
	SessionID   string `json:"sessionId"`
	OrderNumber string `json:"orderNumber"`
}

type CheckoutService struct {
	processor payment.Processor
	stock     StockReader
	carts     cart.Store
	validate  *validator.Validate
	cfg       CheckoutConfig
	log       *slog.Logger
}

func NewCheckoutService(processor payment.Processor, stock StockReader, carts cart.Store, cfg CheckoutConfig, log *slog.Logger) *CheckoutService {
	return &CheckoutService{
		processor: processor,
		stock:     stock,
		carts:     carts,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg,
		log:       log,
	}
}

// Checkout builds a payment session from the owner's stored cart. An empty
// order number is replaced with a generated one.
func (s *CheckoutService) Checkout(ctx context.Context, owner string, meta Metadata) (*CheckoutResult, error) {
	c, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if meta.OrderNumber == "" {
		meta.OrderNumber = NewOrderNumber()
	}
	if meta.UserID == "" {
		meta.UserID = owner
	}
	return s.CreateSession(ctx, c.Items, meta)
}

// CreateSession validates the cart lines and metadata, re-checks stock and
// asks the processor for a hosted payment page. Nothing is persisted locally.
func (s *CheckoutService) CreateSession(ctx context.Context, items []cart.Item, meta Metadata) (*CheckoutResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, item := range items {
		if item.Product.Price == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingPrice, productLabel(item))
		}
		if *item.Product.Price < 0 {
			return nil, fmt.Errorf("%w: negative price for %s", ErrValidation, productLabel(item))
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1 for %s", ErrValidation, productLabel(item))
		}
	}
	if err := s.validate.Struct(meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	for _, item := range items {
		available, err := s.stock.AvailableFresh(ctx, item.Product.ID, item.Selection.Color, item.Selection.Size)
		if err != nil {
			return nil, err
		}
		if item.Quantity > available {
			return nil, &inventory.InsufficientStockError{
				ProductID: item.Product.ID,
				Color:     item.Selection.Color,
				Size:      item.Selection.Size,
				Requested: item.Quantity,
				Available: available,
			}
		}
	}

	req := payment.SessionRequest{
		Metadata:   meta.toMap(),
		SuccessURL: fmt.Sprintf("%s/success?session_id={CHECKOUT_SESSION_ID}&orderNumber=%s", s.cfg.BaseURL, url.QueryEscape(meta.OrderNumber)),
		CancelURL:  fmt.Sprintf("%s/checkout", s.cfg.BaseURL),
	}

	customer, err := s.processor.FindCustomerByEmail(ctx, meta.CustomerEmail)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		req.CustomerID = customer.ID
	} else {
		req.CustomerEmail = meta.CustomerEmail
	}

	for _, item := range items {
		req.Items = append(req.Items, s.lineItem(item))
	}

	session, err := s.processor.CreateSession(ctx, req)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "checkout session created",
		"session_id", session.ID,
		"order_number", meta.OrderNumber,
		"lines", len(items),
	)
	return &CheckoutResult{URL: session.URL, SessionID: session.ID, OrderNumber: meta.OrderNumber}, nil
}

// VerifyPayment reports whether the session has been paid. It has no side
// effects; stock is only adjusted by the webhook.
func (s *CheckoutService) VerifyPayment(ctx context.Context, sessionID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, fmt.Errorf("%w: session id is required", ErrValidation)
	}
	session, err := s.processor.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return session.Paid, nil
}

func (s *CheckoutService) lineItem(item cart.Item) payment.LineItemRequest {
	name := item.Product.Name
	if name == "" {
		name = unnamedProduct
	}
	currency := item.Product.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}

	return payment.LineItemRequest{
		Name:        name,
		Description: LineDescription(item.Selection.Color, item.Selection.Size),
		ImageURL:    item.ImageURL,
		Currency:    strings.ToLower(currency),
		UnitAmount:  *item.Product.Price,
		Quantity:    int64(item.Quantity),
		Metadata: map[string]string{
			payment.ProductMetaID:    item.Product.ID,
			payment.ProductMetaColor: item.Selection.Color,
			payment.ProductMetaSize:  item.Selection.Size,
		},
	}
}

// LineDescription joins the present selection parts with ", ".
func LineDescription(color, size string) string {
	parts := make([]string, 0, 2)
	if color != "" {
		parts = append(parts, color)
	}
	if size != "" {
		parts = append(parts, size)
	}
	return strings.Join(parts, ", ")
}

// NewOrderNumber returns a short, URL-safe order number.
func NewOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:10])
}

func productLabel(item cart.Item) string {
	if item.Product.Name != "" {
		return fmt.Sprintf("%q (%s)", item.Product.Name, item.Product.ID)
	}
	return item.Product.ID
}
