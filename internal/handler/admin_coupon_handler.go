package handler

import (
	"net/http"
	"time"

	"shopcore/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type CouponCreateRequest struct {
	Code              string           `json:"code"`
	Description       string           `json:"description"`
	DiscountType      string           `json:"discount_type"`
	DiscountValue     decimal.Decimal  `json:"discount_value"`
	MinOrderAmount    decimal.Decimal  `json:"min_order_amount"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount"`
	UsageLimit        *int64           `json:"usage_limit"`
	PerUserLimit      *int64           `json:"per_user_limit"`
	IsActive          *bool            `json:"is_active"`
	StartsAt          *time.Time       `json:"starts_at"`
	ExpiresAt         *time.Time       `json:"expires_at"`
}

// /admin/coupons と /admin/audit-logs
type AdminCouponHandler struct {
	coupons *usecase.CouponUsecase
	audits  *usecase.AuditLogUsecase
}

func NewAdminCouponHandler(coupons *usecase.CouponUsecase, audits *usecase.AuditLogUsecase) *AdminCouponHandler {
	return &AdminCouponHandler{coupons: coupons, audits: audits}
}

func (h *AdminCouponHandler) RegisterRoutes(admin *echo.Group) {
	admin.POST("/coupons", h.create)
	admin.GET("/coupons", h.list)
	admin.GET("/audit-logs", h.auditLogs)
}

func (h *AdminCouponHandler) create(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req CouponCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	created, err := h.coupons.AdminCreate(c.Request().Context(), adminID, usecase.AdminCreateCouponInput{
		Code:              req.Code,
		Description:       req.Description,
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		UsageLimit:        req.UsageLimit,
		PerUserLimit:      req.PerUserLimit,
		IsActive:          active,
		StartsAt:          req.StartsAt,
		ExpiresAt:         req.ExpiresAt,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusCreated, "coupon created", map[string]any{"coupon": created})
}

func (h *AdminCouponHandler) list(c echo.Context) error {
	list, err := h.coupons.AdminList(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, http.StatusOK, map[string]any{"coupons": list})
}

func (h *AdminCouponHandler) auditLogs(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	actor, ok := queryInt64Ptr(c, "actor_user_id")
	if !ok {
		return badRequest(c, "invalid actor_user_id")
	}
	resourceID, ok := queryInt64Ptr(c, "resource_id")
	if !ok {
		return badRequest(c, "invalid resource_id")
	}
	from, ok := queryTimePtr(c, "from")
	if !ok {
		return badRequest(c, "invalid from")
	}
	to, ok := queryTimePtr(c, "to")
	if !ok {
		return badRequest(c, "invalid to")
	}

	logs, err := h.audits.List(c.Request().Context(), adminID, usecase.AuditLogListInput{
		ActorUserID:  actor,
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   resourceID,
		From:         from,
		To:           to,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, http.StatusOK, map[string]any{"audit_logs": logs})
}
