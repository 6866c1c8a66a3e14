package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
	tx          repo.TransactionManager
	clock       Clock
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository, tx repo.TransactionManager, clock Clock) *ProductUsecase {
	return &ProductUsecase{
		productRepo: productRepo,
		tx:          tx,
		clock:       clock,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
}

type ProductListOutput struct {
	Products []model.Product `json:"products"`
	Pagination
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	page, limit := normalizePage(in.Page, in.Limit)

	if len(in.Q) > 100 {
		return ProductListOutput{}, badRequest(CodeValidation, "q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, badRequest(CodeValidation, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, badRequest(CodeValidation, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, badRequest(CodeValidation, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc", "popular":
	default:
		return ProductListOutput{}, badRequest(CodeValidation, "invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     page,
		Limit:    limit,
		Q:        strings.TrimSpace(in.Q),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, storeError(err)
	}

	return ProductListOutput{
		Products:   items,
		Pagination: newPagination(page, limit, total),
	}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, badRequest(CodeValidation, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, notFound("product not found")
	}
	if err != nil {
		return model.Product{}, storeError(err)
	}

	//非公開は存在しない扱い
	if !p.IsActive {
		return model.Product{}, notFound("product not found")
	}
	return p, nil
}

type AdminCreateProductInput struct {
	Name            string
	SKU             string
	Description     string
	Thumbnail       string
	Price           decimal.Decimal
	Stock           int64
	TracksInventory *bool
	IsActive        bool
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in AdminCreateProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, unauthorized()
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.Product{}, badRequest(CodeValidation, "name required")
	}
	if in.Price.IsNegative() {
		return model.Product{}, badRequest(CodeValidation, "price must be >= 0")
	}
	if in.Stock < 0 {
		return model.Product{}, badRequest(CodeValidation, "stock must be >= 0")
	}

	tracks := true
	if in.TracksInventory != nil {
		tracks = *in.TracksInventory
	}

	now := u.clock.Now()
	var created model.Product

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().Create(ctx, model.Product{
			Name:            strings.TrimSpace(in.Name),
			SKU:             strings.TrimSpace(in.SKU),
			Description:     in.Description,
			ThumbnailURL:    strings.TrimSpace(in.Thumbnail),
			Price:           in.Price.Round(2),
			StockQuantity:   in.Stock,
			TracksInventory: tracks,
			IsActive:        in.IsActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, CodeConflict, "sku already exists")
		}
		if err != nil {
			return err
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionCreateProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   p.ID,
			AfterJSON: auditJSON(map[string]any{
				"name":  p.Name,
				"sku":   p.SKU,
				"price": p.Price,
				"stock": p.StockQuantity,
			}),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		created = p
		return nil
	})
	if err != nil {
		return model.Product{}, storeError(err)
	}
	return created, nil
}

type AdminUpdateInventoryOutput struct {
	ProductID int64 `json:"product_id"`
	Before    int64 `json:"before"`
	After     int64 `json:"after"`
}

// 在庫の現在値を上書きして履歴・監査ログを残す
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) (AdminUpdateInventoryOutput, error) {
	if adminUserID <= 0 {
		return AdminUpdateInventoryOutput{}, unauthorized()
	}
	if productID <= 0 {
		return AdminUpdateInventoryOutput{}, badRequest(CodeValidation, "invalid product id")
	}
	if newStock < 0 {
		return AdminUpdateInventoryOutput{}, badRequest(CodeValidation, "stock must be >= 0")
	}
	if strings.TrimSpace(reason) == "" {
		return AdminUpdateInventoryOutput{}, badRequest(CodeValidation, "reason required")
	}

	now := u.clock.Now()
	var out AdminUpdateInventoryOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("product not found")
		}
		if err != nil {
			return err
		}

		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return notFound("product not found")
			}
			return err
		}

		//履歴を作成（差分）
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			AdminUserID: adminUserID,
			Delta:       newStock - p.StockQuantity,
			Reason:      strings.TrimSpace(reason),
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   auditJSON(map[string]any{"stock": p.StockQuantity}),
			AfterJSON:    auditJSON(map[string]any{"stock": newStock}),
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		out = AdminUpdateInventoryOutput{ProductID: productID, Before: p.StockQuantity, After: newStock}
		return nil
	})
	if err != nil {
		return AdminUpdateInventoryOutput{}, storeError(err)
	}
	return out, nil
}
