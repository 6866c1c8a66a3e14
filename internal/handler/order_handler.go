package handler

import (
	"net/http"

	"shopcore/internal/domain/model"
	"shopcore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc      *usecase.OrderUsecase
	coupons *usecase.CouponUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase, coupons *usecase.CouponUsecase) *OrderHandler {
	return &OrderHandler{uc: uc, coupons: coupons}
}

type CheckoutRequest struct {
	ShippingAddress *model.ShippingAddress `json:"shipping_address"`
	// 保存済み住所を使うとき
	AddressID     int64  `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
	CouponCode    string `json:"coupon_code"`
	CustomerNotes string `json:"customer_notes"`
}

type ValidateCouponRequest struct {
	Code string `json:"code"`
}

func (h *OrderHandler) RegisterRoutes(api *echo.Group, session ...echo.MiddlewareFunc) {
	g := api.Group("/orders", session...)

	g.POST("/checkout", h.checkout)
	g.POST("/validate-coupon", h.validateCoupon)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.POST("/:id/cancel", h.cancel)
}

func (h *OrderHandler) checkout(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.Checkout(c.Request().Context(), userID, usecase.CheckoutInput{
		ShippingAddress: req.ShippingAddress,
		AddressID:       req.AddressID,
		PaymentMethod:   req.PaymentMethod,
		CouponCode:      req.CouponCode,
		CustomerNotes:   req.CustomerNotes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusCreated, "order placed", out)
}

// プレビューだけ。used_countは変えない。
func (h *OrderHandler) validateCoupon(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ValidateCouponRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.coupons.Preview(c.Request().Context(), userID, req.Code)
	if err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusOK, "coupon applied", out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	perPage, ok := queryInt(c, "per_page", 10)
	if !ok {
		return badRequest(c, "invalid per_page")
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID, c.QueryParam("status"), page, perPage)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, http.StatusOK, map[string]any{"order": out})
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Cancel(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusOK, "order cancelled", out)
}
