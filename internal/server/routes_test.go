package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopcore/internal/config"
	"shopcore/internal/handler"
	"shopcore/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sessionValidatorMock struct{ mock.Mock }

func (m *sessionValidatorMock) ValidateSession(ctx context.Context, userID int64, tokenVersion int, jti string) error {
	return m.Called(userID, tokenVersion, jti).Error(0)
}

const testSecret = "route-test-secret"

// usecaseはnilのまま。ガードで止まるルートだけを叩く。
func newTestServer(t *testing.T, sessions *sessionValidatorMock) *echo.Echo {
	t.Helper()
	e := New(zaptest.NewLogger(t))
	RegisterRoutes(e, config.Config{JWTSecret: testSecret}, sessions, Handlers{
		Auth:         handler.NewAuthHandler(nil),
		Product:      handler.NewProductHandler(nil),
		Cart:         handler.NewCartHandler(nil),
		Order:        handler.NewOrderHandler(nil, nil),
		Wallet:       handler.NewWalletHandler(nil),
		Address:      handler.NewAddressHandler(nil),
		AdminOrder:   handler.NewAdminOrderHandler(nil),
		AdminProduct: handler.NewAdminProductHandler(nil),
		AdminCoupon:  handler.NewAdminCouponHandler(nil, nil),
		AdminUser:    handler.NewAdminUserHandler(nil),
	})
	return e
}

func signed(t *testing.T, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "7",
		"role": role,
		"tv":   0,
		"jti":  "jti-7",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func serve(e *echo.Echo, method, path, token string) (*httptest.ResponseRecorder, handler.Response) {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var res handler.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	return rec, res
}

func TestRoutes_Health(t *testing.T) {
	e := newTestServer(t, new(sessionValidatorMock))

	rec, res := serve(e, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, res.Success)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRoutes_ProtectedNeedToken(t *testing.T) {
	e := newTestServer(t, new(sessionValidatorMock))

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/orders/checkout"},
		{http.MethodPost, "/api/v1/orders/1/cancel"},
		{http.MethodGet, "/api/v1/transactions"},
		{http.MethodGet, "/api/v1/users/wallet"},
		{http.MethodGet, "/api/v1/admin/orders"},
	}
	for _, p := range paths {
		rec, res := serve(e, p.method, p.path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, p.path)
		assert.Equal(t, "Unauthorized", res.Code, p.path)
	}
}

func TestRoutes_RevokedSessionRejected(t *testing.T) {
	sessions := new(sessionValidatorMock)
	sessions.On("ValidateSession", int64(7), 0, "jti-7").
		Return(usecase.NewHTTPError(http.StatusUnauthorized, usecase.CodeUnauthorized, "unauthorized")).Once()
	e := newTestServer(t, sessions)

	rec, res := serve(e, http.MethodGet, "/api/v1/cart", signed(t, "USER"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, usecase.CodeUnauthorized, res.Code)
	sessions.AssertExpectations(t)
}

func TestRoutes_AdminNeedsAdminRole(t *testing.T) {
	sessions := new(sessionValidatorMock)
	sessions.On("ValidateSession", int64(7), 0, "jti-7").Return(nil)
	e := newTestServer(t, sessions)

	rec, res := serve(e, http.MethodGet, "/api/v1/admin/orders", signed(t, "USER"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", res.Code)
}
