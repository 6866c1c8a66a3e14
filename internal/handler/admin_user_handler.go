package handler

import (
	"net/http"

	"shopcore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminUserHandler struct {
	uc *usecase.AuthUsecase
}

func NewAdminUserHandler(uc *usecase.AuthUsecase) *AdminUserHandler {
	return &AdminUserHandler{uc: uc}
}

// admin は AuthJWT + SessionGuard + AdminRoleGuard 済みのグループ
func (h *AdminUserHandler) RegisterRoutes(admin *echo.Group) {
	admin.POST("/users/:id/force-logout", h.ForceLogout)
}

// 対象ユーザーの発行済みトークンを全部無効にする
func (h *AdminUserHandler) ForceLogout(c echo.Context) error {
	userID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	if err := h.uc.ForceLogout(c.Request().Context(), userID); err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusOK, "sessions revoked", map[string]int64{"user_id": userID})
}
