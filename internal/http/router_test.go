package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

func token(t *testing.T, secret, subject string) string {
	t.Helper()
	return tokenWithRole(t, secret, subject, "")
}

func tokenWithRole(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func testRouter(carts *mockCarts) http.Handler {
	return testRouterWithOrders(carts, &mockOrders{})
}

func testRouterWithOrders(carts *mockCarts, orders *mockOrders) http.Handler {
	timeout := 5 * time.Second
	h := Handlers{
		Products: NewProductHandler(&mockCatalog{products: []domain.Product{{ID: "p1"}}}, &mockStock{}, timeout),
		Cart:     NewCartHandler(carts, timeout),
		Checkout: NewCheckoutHandler(&mockCheckout{}, &mockMaterializer{}, &mockEvents{}, timeout),
		Orders:   NewOrdersHandler(orders, timeout),
	}
	return NewRouter(h, RouterConfig{JWTSecret: testJWTSecret, RequestTimeout: timeout}, logger.Discard())
}

func TestRouter_Health(t *testing.T) {
	recorder := httptest.NewRecorder()
	testRouter(&mockCarts{}).ServeHTTP(recorder, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}

func TestRouter_PublicCatalog(t *testing.T) {
	recorder := httptest.NewRecorder()
	testRouter(&mockCarts{}).ServeHTTP(recorder, httptest.NewRequest("GET", "/api/products", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_CartRequiresToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + token(t, "other-secret", "user_1")},
		{"no subject", "Bearer " + token(t, testJWTSecret, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/cart", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()
			testRouter(&mockCarts{cart: testCart()}).ServeHTTP(recorder, req)

			assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		})
	}
}

func TestRouter_CartWithToken(t *testing.T) {
	carts := &mockCarts{cart: testCart()}

	req := httptest.NewRequest("GET", "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, testJWTSecret, "user_42"))
	recorder := httptest.NewRecorder()
	testRouter(carts).ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "user_42", carts.owner)
}

func TestRouter_RejectsNoneAlgorithm(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user_1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+unsigned)
	recorder := httptest.NewRecorder()
	testRouter(&mockCarts{cart: testCart()}).ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRouter_OrderStatusRequiresAdmin(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"buyer", "Bearer " + token(t, testJWTSecret, "user_1"), http.StatusForbidden},
		{"other role", "Bearer " + tokenWithRole(t, testJWTSecret, "user_1", "support"), http.StatusForbidden},
		{"admin", "Bearer " + tokenWithRole(t, testJWTSecret, "staff_1", RoleAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrders{order: &domain.Order{OrderNumber: "A1", Status: domain.OrderStatusProcessing}}
			req := httptest.NewRequest("PATCH", "/api/orders/A1/status", strings.NewReader(`{"status":"Processing"}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()
			testRouterWithOrders(&mockCarts{}, orders).ServeHTTP(recorder, req)

			assert.Equal(t, tt.want, recorder.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, domain.OrderStatusProcessing, orders.status)
			} else {
				assert.Empty(t, orders.status)
			}
		})
	}
}

func TestRouter_BuyerStillReadsOwnOrders(t *testing.T) {
	orders := &mockOrders{orders: []domain.Order{{OrderNumber: "A1"}}}
	req := httptest.NewRequest("GET", "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, testJWTSecret, "user_1"))
	recorder := httptest.NewRecorder()
	testRouterWithOrders(&mockCarts{}, orders).ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}
