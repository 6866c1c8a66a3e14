package handler

import (
	"net/http"
	"time"

	"shopcore/internal/middleware"
	"shopcore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	uc *usecase.AuthUsecase
}

// DIコンストラクタ
func NewAuthHandler(uc *usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{uc: uc}
}

// /auth と /users/profile を登録。session はAuthJWT+SessionGuard。
func (h *AuthHandler) RegisterRoutes(api *echo.Group, session ...echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout, session...)
	g.POST("/logout-all", h.LogoutAll, session...)
	g.GET("/me", h.Me, session...)

	api.GET("/users/profile", h.Me, session...)
}

// RegisterはPOST /auth/registerのハンドラ
func (h *AuthHandler) Register(c echo.Context) error {
	var req usecase.AuthRegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	user, err := h.uc.Register(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusCreated, "registered", map[string]any{"user": user})
}

// LoginはPOST /auth/login のハンドラ。
func (h *AuthHandler) Login(c echo.Context) error {
	var req usecase.AuthLoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.Login(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, http.StatusOK, out)
}

// このトークンだけ失効させる
func (h *AuthHandler) Logout(c echo.Context) error {
	jti, _ := c.Get(middleware.CtxTokenIDKey).(string)
	exp, _ := c.Get(middleware.CtxTokenExpKey).(time.Time)

	if err := h.uc.Logout(c.Request().Context(), jti, exp); err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.uc.LogoutAll(c.Request().Context(), userID); err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusOK, "logged out from all sessions", nil)
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.uc.Me(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, http.StatusOK, map[string]any{"user": user})
}
