package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

func TestCheckout_Success(t *testing.T) {
	checkout := &mockCheckout{result: &service.CheckoutResult{URL: "https://pay.example.com/cs_1", SessionID: "cs_1", OrderNumber: "ORD-1"}}
	handler := NewCheckoutHandler(checkout, &mockMaterializer{}, &mockEvents{}, 5*time.Second)

	body := jsonBody(t, CheckoutRequestDTO{CustomerName: "Taro Yamada", CustomerEmail: "taro@example.com"})
	recorder := httptest.NewRecorder()
	handler.Checkout(recorder, authed(httptest.NewRequest("POST", "/checkout", body)))

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp CheckoutResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, CheckoutResponse{URL: "https://pay.example.com/cs_1", OrderNumber: "ORD-1"}, resp)

	assert.Equal(t, "user_1", checkout.owner)
	assert.Equal(t, "user_1", checkout.meta.UserID)
	assert.Equal(t, "taro@example.com", checkout.meta.CustomerEmail)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing price", service.ErrMissingPrice, http.StatusBadRequest, "missing_price"},
		{"empty cart", service.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
		{"bad metadata", service.ErrValidation, http.StatusBadRequest, "invalid_argument"},
		{"processor down", payment.ErrProcessorUnavailable, http.StatusBadGateway, "payment_unavailable"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCheckoutHandler(&mockCheckout{err: tt.err}, &mockMaterializer{}, &mockEvents{}, 5*time.Second)

			body := jsonBody(t, CheckoutRequestDTO{CustomerEmail: "taro@example.com"})
			recorder := httptest.NewRecorder()
			handler.Checkout(recorder, authed(httptest.NewRequest("POST", "/checkout", body)))

			assert.Equal(t, tt.status, recorder.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestVerifyPayment(t *testing.T) {
	checkout := &mockCheckout{paid: true}
	handler := NewCheckoutHandler(checkout, &mockMaterializer{}, &mockEvents{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.VerifyPayment(recorder, httptest.NewRequest("POST", "/verify-payment", jsonBody(t, VerifyPaymentRequestDTO{SessionID: "cs_1"})))

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp VerifyPaymentResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Paid)
	assert.Equal(t, "cs_1", checkout.verified)

	checkout.paid = false
	recorder = httptest.NewRecorder()
	handler.VerifyPayment(recorder, httptest.NewRequest("POST", "/verify-payment", jsonBody(t, VerifyPaymentRequestDTO{SessionID: "cs_1"})))
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.False(t, resp.Paid)
	assert.Equal(t, "Payment not confirmed", resp.Message)

	checkout.err = payment.ErrSessionNotFound
	recorder = httptest.NewRecorder()
	handler.VerifyPayment(recorder, httptest.NewRequest("POST", "/verify-payment", jsonBody(t, VerifyPaymentRequestDTO{SessionID: "cs_x"})))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

const testWebhookSecret = "whsec_test"

func signedWebhook(t *testing.T, eventType string) *http.Request {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": "2023-10-16",
		"data": map[string]any{"object": map[string]any{
			"id":             "cs_1",
			"object":         "checkout.session",
			"payment_status": "paid",
			"metadata":       map[string]string{"orderNumber": "ORD-1"},
		}},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestWebhook_MaterializesCompletedCheckout(t *testing.T) {
	m := &mockMaterializer{result: &service.MaterializeResult{Order: &domain.Order{OrderNumber: "ORD-1"}}}
	handler := NewCheckoutHandler(&mockCheckout{}, m, payment.NewWebhookVerifier(testWebhookSecret), 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.Webhook(recorder, signedWebhook(t, payment.EventCheckoutSessionCompleted))

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp WebhookResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.True(t, resp.Received)
	assert.Equal(t, "ORD-1", resp.OrderNumber)
	assert.Equal(t, []string{"cs_1"}, m.sessions)
}

func TestWebhook_InvalidSignatureHasNoSideEffects(t *testing.T) {
	m := &mockMaterializer{}
	handler := NewCheckoutHandler(&mockCheckout{}, m, payment.NewWebhookVerifier(testWebhookSecret), 5*time.Second)

	req := signedWebhook(t, payment.EventCheckoutSessionCompleted)
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	recorder := httptest.NewRecorder()
	handler.Webhook(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, 0, m.calls())

	req = signedWebhook(t, payment.EventCheckoutSessionCompleted)
	req.Header.Del("Stripe-Signature")
	recorder = httptest.NewRecorder()
	handler.Webhook(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "missing_signature", resp.Code)
	assert.Equal(t, 0, m.calls())
}

func TestWebhook_OtherEventsAreAcknowledged(t *testing.T) {
	m := &mockMaterializer{}
	handler := NewCheckoutHandler(&mockCheckout{}, m, payment.NewWebhookVerifier(testWebhookSecret), 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.Webhook(recorder, signedWebhook(t, "payment_intent.created"))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 0, m.calls())
}

func TestWebhook_MaterializerErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"missing order number", service.ErrMissingOrderNumber, http.StatusOK},
		{"order number conflict", service.ErrOrderConflict, http.StatusOK},
		{"in progress", service.ErrSessionInProgress, http.StatusInternalServerError},
		{"processor down", payment.ErrProcessorUnavailable, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &mockEvents{event: &payment.Event{
				ID:      "evt_1",
				Type:    payment.EventCheckoutSessionCompleted,
				Session: &payment.Session{ID: "cs_1"},
			}}
			handler := NewCheckoutHandler(&mockCheckout{}, &mockMaterializer{err: tt.err}, events, 5*time.Second)

			recorder := httptest.NewRecorder()
			handler.Webhook(recorder, httptest.NewRequest("POST", "/webhook", bytes.NewBufferString("{}")))

			assert.Equal(t, tt.status, recorder.Code)
		})
	}
}

func TestWebhook_SecretNotConfigured(t *testing.T) {
	handler := NewCheckoutHandler(&mockCheckout{}, &mockMaterializer{}, payment.NewWebhookVerifier(""), 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.Webhook(recorder, signedWebhook(t, payment.EventCheckoutSessionCompleted))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestWebhook_OversizedBody(t *testing.T) {
	m := &mockMaterializer{}
	handler := NewCheckoutHandler(&mockCheckout{}, m, payment.NewWebhookVerifier(testWebhookSecret), 5*time.Second)

	// a legitimately large event is accepted
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_big",
		"object":      "event",
		"type":        "customer.updated",
		"api_version": "2023-10-16",
		"data": map[string]any{"object": map[string]any{
			"id":          "cus_1",
			"object":      "customer",
			"description": strings.Repeat("x", 100<<10),
		}},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	recorder := httptest.NewRecorder()
	handler.Webhook(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	req = httptest.NewRequest("POST", "/webhook", strings.NewReader(strings.Repeat("x", maxWebhookBodySize+1)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	recorder = httptest.NewRecorder()
	handler.Webhook(recorder, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "payload_too_large", resp.Code)
	assert.Equal(t, 0, m.calls())
}
