package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/service"
)

const maxWebhookBodySize = 512 << 10 // 512KB

type CheckoutHandler struct {
	checkout     CheckoutService
	materializer OrderMaterializer
	events       EventParser
	timeout      time.Duration
}

func NewCheckoutHandler(checkout CheckoutService, materializer OrderMaterializer, events EventParser, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:     checkout,
		materializer: materializer,
		events:       events,
		timeout:      timeout,
	}
}

type CheckoutRequestDTO struct {
	OrderNumber     string `json:"orderNumber,omitempty"`
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone,omitempty"`
	CustomerAddress string `json:"customerAddress,omitempty"`
}

type CheckoutResponse struct {
	URL         string `json:"url"`
	OrderNumber string `json:"orderNumber"`
}

type VerifyPaymentRequestDTO struct {
	SessionID string `json:"sessionId"`
}

type VerifyPaymentResponse struct {
	Success bool   `json:"success"`
	Paid    bool   `json:"paid"`
	Message string `json:"message,omitempty"`
}

type WebhookResponse struct {
	Received    bool   `json:"received"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := h.checkout.Checkout(ctx, userID, service.Metadata{
		OrderNumber:     req.OrderNumber,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		UserID:          userID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponse{URL: res.URL, OrderNumber: res.OrderNumber})
}

// VerifyPayment only reads the session. Orders and stock are handled by the
// webhook.
func (h *CheckoutHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req VerifyPaymentRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	paid, err := h.checkout.VerifyPayment(ctx, req.SessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := VerifyPaymentResponse{Success: paid, Paid: paid}
	if !paid {
		resp.Message = "Payment not confirmed"
	}
	respondJSON(w, http.StatusOK, resp)
}

// Webhook verifies the processor signature over the raw body and turns a
// completed checkout into an order. A 5xx asks the processor to redeliver.
func (h *CheckoutHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.ErrorContext(r.Context(), "webhook body too large", "limit", tooLarge.Limit)
			respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "unreadable body")
		return
	}

	event, err := h.events.ParseEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.WarnContext(r.Context(), "webhook rejected", "error", err)
		switch {
		case errors.Is(err, payment.ErrMissingSignature):
			respondError(w, http.StatusBadRequest, "missing_signature", "no signature found")
		case errors.Is(err, payment.ErrWebhookSecretNotSet):
			respondError(w, http.StatusBadRequest, "webhook_not_configured", "no webhook secret found")
		default:
			respondError(w, http.StatusBadRequest, "invalid_signature", "invalid signature")
		}
		return
	}

	if event.Type != payment.EventCheckoutSessionCompleted {
		respondJSON(w, http.StatusOK, WebhookResponse{Received: true})
		return
	}
	if event.Session == nil {
		respondError(w, http.StatusBadRequest, "invalid_event", "event has no checkout session")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.materializer.Materialize(ctx, event.Session)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, WebhookResponse{
			Received:    true,
			OrderNumber: res.Order.OrderNumber,
			Duplicate:   res.Duplicate,
		})
	case errors.Is(err, service.ErrMissingOrderNumber), errors.Is(err, service.ErrOrderConflict):
		// redelivery cannot fix these
		log.ErrorContext(r.Context(), "checkout session not materialized", "event_id", event.ID, "session_id", event.Session.ID, "error", err)
		respondJSON(w, http.StatusOK, WebhookResponse{Received: true})
	default:
		log.ErrorContext(r.Context(), "failed to materialize order", "event_id", event.ID, "session_id", event.Session.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "order processing failed")
	}
}
