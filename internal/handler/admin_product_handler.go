package handler

import (
	"net/http"

	"shopcore/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ProductCreateRequest struct {
	Name            string          `json:"name"`
	SKU             string          `json:"sku"`
	Description     string          `json:"description"`
	Thumbnail       string          `json:"thumbnail"`
	Price           decimal.Decimal `json:"price"`
	StockQuantity   int64           `json:"stock_quantity"`
	TracksInventory *bool           `json:"tracks_inventory"`
	IsActive        *bool           `json:"is_active"`
}

// InventoryUpdateRequest は在庫更新の入力です。
type InventoryUpdateRequest struct {
	StockQuantity *int64 `json:"stock_quantity"`
	Reason        string `json:"reason"`
}

// /admin/products をまとめる
type AdminProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase) *AdminProductHandler {
	return &AdminProductHandler{uc: uc}
}

func (h *AdminProductHandler) RegisterRoutes(admin *echo.Group) {
	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id/inventory", h.updateInventory)
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ProductCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	//未指定なら公開
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	p, err := h.uc.AdminCreateProduct(c.Request().Context(), adminID, usecase.AdminCreateProductInput{
		Name:            req.Name,
		SKU:             req.SKU,
		Description:     req.Description,
		Thumbnail:       req.Thumbnail,
		Price:           req.Price,
		Stock:           req.StockQuantity,
		TracksInventory: req.TracksInventory,
		IsActive:        active,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusCreated, "product created", map[string]any{"product": p})
}

func (h *AdminProductHandler) updateInventory(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	productID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid product id")
	}

	var req InventoryUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.StockQuantity == nil {
		return badRequest(c, "stock_quantity is required")
	}

	out, err := h.uc.AdminUpdateInventory(c.Request().Context(), adminID, productID, *req.StockQuantity, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return writeOKMessage(c, http.StatusOK, "stock updated", out)
}
