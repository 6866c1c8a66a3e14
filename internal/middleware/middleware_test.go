package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopcore/internal/config"
	"shopcore/internal/middleware"
	"shopcore/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret"

type mwErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	TokenID      string `json:"token_id"`
	ExpiresAt    int64  `json:"expires_at"`
}

// =====================
// SessionValidator モック
// =====================

type SessionValidatorMock struct{ mock.Mock }

func (m *SessionValidatorMock) ValidateSession(ctx context.Context, userID int64, tokenVersion int, jti string) error {
	args := m.Called(ctx, userID, tokenVersion, jti)
	return args.Error(0)
}

// =====================
// helper
// =====================

func makeClaims(sub int64, role string, tv int, jti string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"tv":   tv,
		"jti":  jti,
		"iat":  1,
		"exp":  9999999999,
	}
}

func mustSign(t *testing.T, secret string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func runRequest(t *testing.T, e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r
}

func okHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_Rejects(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	expired := makeClaims(1, "USER", 0, "j1")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	noJTI := makeClaims(1, "USER", 0, "")

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"bad scheme", "Token abc.def.ghi"},
		{"bad signature", "Bearer " + mustSign(t, "wrong-secret", makeClaims(1, "USER", 0, "j1"), jwt.SigningMethodHS256)},
		{"wrong alg", "Bearer " + mustSign(t, testSecret, makeClaims(1, "USER", 0, "j1"), jwt.SigningMethodHS512)},
		{"expired", "Bearer " + mustSign(t, testSecret, expired, jwt.SigningMethodHS256)},
		{"missing jti", "Bearer " + mustSign(t, testSecret, noJTI, jwt.SigningMethodHS256)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/protected", okHandler, middleware.AuthJWT(cfg))

			rec := runRequest(t, e, tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			body := decodeMWError(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, "Unauthorized", body.Code)
		})
	}
}

// 正常：ctxに値が入る
func TestAuthJWT_SetsContext(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	raw := mustSign(t, testSecret, makeClaims(123, "USER", 7, "jti-123"), jwt.SigningMethodHS256)

	e.GET("/protected", func(c echo.Context) error {
		userID, _ := c.Get(middleware.CtxUserIDKey).(int64)
		role, _ := c.Get(middleware.CtxUserRoleKey).(string)
		tv, _ := c.Get(middleware.CtxTokenVersionKey).(int)
		jti, _ := c.Get(middleware.CtxTokenIDKey).(string)
		exp, _ := c.Get(middleware.CtxTokenExpKey).(time.Time)
		return c.JSON(http.StatusOK, mwOKResponse{UserID: userID, Role: role, TokenVersion: tv, TokenID: jti, ExpiresAt: exp.Unix()})
	}, middleware.AuthJWT(cfg))

	rec := runRequest(t, e, "Bearer "+raw)
	require.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(123), body.UserID)
	assert.Equal(t, "USER", body.Role)
	assert.Equal(t, 7, body.TokenVersion)
	assert.Equal(t, "jti-123", body.TokenID)
	assert.Equal(t, int64(9999999999), body.ExpiresAt)
}

// =====================
// SessionGuard
// =====================

func TestSessionGuard_MissingContext(t *testing.T) {
	e := echo.New()
	v := new(SessionValidatorMock)
	e.GET("/protected", okHandler, middleware.SessionGuard(v))

	rec := runRequest(t, e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	v.AssertNotCalled(t, "ValidateSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}
	raw := mustSign(t, testSecret, makeClaims(1, "USER", 5, "jti-1"), jwt.SigningMethodHS256)

	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"valid", nil, http.StatusOK},
		{"revoked or stale", usecase.NewHTTPError(http.StatusUnauthorized, usecase.CodeUnauthorized, "unauthorized"), http.StatusUnauthorized},
		{"store down", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			v := new(SessionValidatorMock)
			v.On("ValidateSession", mock.Anything, int64(1), 5, "jti-1").Return(tc.err)
			e.GET("/protected", okHandler, middleware.AuthJWT(cfg), middleware.SessionGuard(v))

			rec := runRequest(t, e, "Bearer "+raw)
			assert.Equal(t, tc.wantCode, rec.Code)
			v.AssertExpectations(t)
		})
	}
}

// =====================
// AdminRoleGuard
// =====================

func TestAdminRoleGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	cases := []struct {
		role     string
		wantCode int
	}{
		{"ADMIN", http.StatusOK},
		{"USER", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			e := echo.New()
			e.GET("/protected", okHandler, middleware.AuthJWT(cfg), middleware.AdminRoleGuard())

			raw := mustSign(t, testSecret, makeClaims(1, tc.role, 0, "j"), jwt.SigningMethodHS256)
			rec := runRequest(t, e, "Bearer "+raw)
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}

	// AuthJWTなし
	e := echo.New()
	e.GET("/protected", okHandler, middleware.AdminRoleGuard())
	rec := runRequest(t, e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// RequestLogger
// =====================

func TestRequestLogger_WritesAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(middleware.RequestLogger(zap.New(core)))
	e.GET("/protected", okHandler)

	rec := runRequest(t, e, "")
	require.Equal(t, http.StatusOK, rec.Code)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/protected", fields["uri"])
	assert.EqualValues(t, 200, fields["status"])
}
