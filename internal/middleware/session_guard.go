package middleware

import (
	"context"
	"net/http"

	"shopcore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// SessionValidator はtoken_versionとjtiの失効を確認する
type SessionValidator interface {
	ValidateSession(ctx context.Context, userID int64, tokenVersion int, jti string) error
}

// JWTのtvとDBのtoken_versionの一致、jtiがログアウト済みでないかを確認。
func SessionGuard(v SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//AuthJWTが入れた値を取得する
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, unauthorizedJSON())
			}
			tv, ok := c.Get(CtxTokenVersionKey).(int)
			if !ok || tv < 0 {
				return c.JSON(http.StatusUnauthorized, unauthorizedJSON())
			}
			jti, _ := c.Get(CtxTokenIDKey).(string)

			if err := v.ValidateSession(c.Request().Context(), userID, tv, jti); err != nil {
				if he, ok := usecase.AsHTTPError(err); ok {
					return c.JSON(he.Status, errorJSON(he.Code, he.Message))
				}
				return c.JSON(http.StatusInternalServerError, errorJSON(usecase.CodeInternal, "internal error"))
			}

			return next(c)
		}
	}
}
