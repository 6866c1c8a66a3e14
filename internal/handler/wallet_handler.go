package handler

import (
	"net/http"

	"shopcore/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	uc *usecase.WalletUsecase
}

func NewWalletHandler(uc *usecase.WalletUsecase) *WalletHandler {
	return &WalletHandler{uc: uc}
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *WalletHandler) RegisterRoutes(api *echo.Group, session ...echo.MiddlewareFunc) {
	api.GET("/users/wallet", h.get, session...)
	api.POST("/users/wallet/add", h.topUp, session...)
	api.GET("/transactions", h.transactions, session...)
}

func (h *WalletHandler) get(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.GetWallet(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, http.StatusOK, out)
}

func (h *WalletHandler) topUp(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req TopUpRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.TopUp(c.Request().Context(), userID, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusOK, "wallet topped up", out)
}

func (h *WalletHandler) transactions(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	perPage, ok := queryInt(c, "per_page", 20)
	if !ok {
		return badRequest(c, "invalid per_page")
	}

	out, err := h.uc.ListTransactions(c.Request().Context(), userID, c.QueryParam("type"), page, perPage)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, http.StatusOK, out)
}
