package usecase

import (
	"context"
	"errors"
	"fmt"

	"shopcore/internal/domain/model"
	"shopcore/internal/domain/pricing"
	repo "shopcore/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartUsecase は /cart の業務ロジック。
// ここでの在庫チェックは画面用。確定はチェックアウト時の条件付き減算。
type CartUsecase struct {
	cartItems repo.CartItemRepository
	products  repo.ProductRepository
	logger    *zap.Logger
}

func NewCartUsecase(cartItems repo.CartItemRepository, products repo.ProductRepository, logger *zap.Logger) *CartUsecase {
	return &CartUsecase{cartItems: cartItems, products: products, logger: logger}
}

type CartProductOutput struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	SKU             string          `json:"sku"`
	Price           decimal.Decimal `json:"price"`
	Thumbnail       string          `json:"thumbnail"`
	StockQuantity   int64           `json:"stock_quantity"`
	TracksInventory bool            `json:"tracks_inventory"`
}

type CartLineOutput struct {
	ID        int64              `json:"id"`
	ProductID int64              `json:"product_id"`
	Quantity  int64              `json:"quantity"`
	Product   *CartProductOutput `json:"product"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	// 非公開・削除された商品は集計に入れない
	Available bool `json:"available"`
}

type CartOutput struct {
	Items   []CartLineOutput `json:"items"`
	Summary pricing.Summary  `json:"summary"`
}

type AddToCartInput struct {
	ProductID int64
	Quantity  int64
}

type AddToCartOutput struct {
	Item      CartLineOutput `json:"item"`
	CartCount int64          `json:"cart_count"`
	// 新規行なら201
	Created bool `json:"-"`
}

type UpdateCartItemOutput struct {
	Item      *CartLineOutput `json:"item,omitempty"`
	Removed   bool            `json:"removed"`
	CartCount int64           `json:"cart_count"`
}

type CartCountOutput struct {
	Count int64 `json:"count"`
}

func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, unauthorized()
	}

	items, err := u.cartItems.ListByUserID(ctx, userID)
	if err != nil {
		return CartOutput{}, storeError(err)
	}

	out := CartOutput{Items: make([]CartLineOutput, 0, len(items))}
	lines := make([]pricing.Line, 0, len(items))

	for _, it := range items {
		p, err := u.products.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			u.logger.Debug("cart line references a deleted product",
				zap.Int64("cart_item_id", it.ID), zap.Int64("product_id", it.ProductID))
			out.Items = append(out.Items, CartLineOutput{ID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity, Subtotal: decimal.Zero})
			continue
		}
		if err != nil {
			return CartOutput{}, storeError(err)
		}

		line := toCartLineOutput(it, p)
		out.Items = append(out.Items, line)
		if line.Available {
			lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: it.Quantity})
		}
	}

	out.Summary = pricing.ComputeSummary(lines)
	return out, nil
}

// 同一商品は数量加算。累計が在庫を超えたらエラー。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddToCartInput) (AddToCartOutput, error) {
	if userID <= 0 {
		return AddToCartOutput{}, unauthorized()
	}
	if in.ProductID <= 0 {
		return AddToCartOutput{}, badRequest(CodeValidation, "product_id is required")
	}
	if in.Quantity < 1 {
		return AddToCartOutput{}, badRequest(CodeInvalidQuantity, "quantity must be at least 1")
	}

	p, err := u.products.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return AddToCartOutput{}, notFound("product not found")
	}
	if err != nil {
		return AddToCartOutput{}, storeError(err)
	}
	if !p.IsActive {
		return AddToCartOutput{}, badRequest(CodeProductUnavailable, "product is not available")
	}

	existing, found, err := u.cartItems.FindByUserAndProduct(ctx, userID, in.ProductID)
	if err != nil {
		return AddToCartOutput{}, storeError(err)
	}

	if !p.HasStockFor(existing.Quantity + in.Quantity) {
		return AddToCartOutput{}, badRequest(CodeInsufficientStock, fmt.Sprintf("only %d items of %s available", p.StockQuantity, p.Name))
	}

	item, err := u.cartItems.UpsertAddQuantity(ctx, userID, in.ProductID, in.Quantity)
	if err != nil {
		return AddToCartOutput{}, storeError(err)
	}

	count, err := u.cartItems.CountQuantityByUserID(ctx, userID)
	if err != nil {
		return AddToCartOutput{}, storeError(err)
	}

	return AddToCartOutput{Item: toCartLineOutput(item, p), CartCount: count, Created: !found}, nil
}

// 数量を上書き。0なら行を削除。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, qty int64) (UpdateCartItemOutput, error) {
	if userID <= 0 {
		return UpdateCartItemOutput{}, unauthorized()
	}
	if qty < 0 {
		return UpdateCartItemOutput{}, badRequest(CodeInvalidQuantity, "quantity must not be negative")
	}

	item, err := u.findOwnedItem(ctx, userID, cartItemID)
	if err != nil {
		return UpdateCartItemOutput{}, err
	}

	if qty == 0 {
		if err := u.cartItems.DeleteByID(ctx, item.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return UpdateCartItemOutput{}, storeError(err)
		}
		count, err := u.cartItems.CountQuantityByUserID(ctx, userID)
		if err != nil {
			return UpdateCartItemOutput{}, storeError(err)
		}
		return UpdateCartItemOutput{Removed: true, CartCount: count}, nil
	}

	p, err := u.products.FindByID(ctx, item.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return UpdateCartItemOutput{}, badRequest(CodeProductUnavailable, "product is not available")
	}
	if err != nil {
		return UpdateCartItemOutput{}, storeError(err)
	}
	if !p.IsActive {
		return UpdateCartItemOutput{}, badRequest(CodeProductUnavailable, "product is not available")
	}
	if !p.HasStockFor(qty) {
		return UpdateCartItemOutput{}, badRequest(CodeInsufficientStock, fmt.Sprintf("only %d items of %s available", p.StockQuantity, p.Name))
	}

	if err := u.cartItems.UpdateQuantity(ctx, item.ID, qty); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return UpdateCartItemOutput{}, notFound("cart item not found")
		}
		return UpdateCartItemOutput{}, storeError(err)
	}
	item.Quantity = qty

	count, err := u.cartItems.CountQuantityByUserID(ctx, userID)
	if err != nil {
		return UpdateCartItemOutput{}, storeError(err)
	}

	line := toCartLineOutput(item, p)
	return UpdateCartItemOutput{Item: &line, CartCount: count}, nil
}

func (u *CartUsecase) RemoveCartItem(ctx context.Context, userID int64, cartItemID int64) (CartCountOutput, error) {
	if userID <= 0 {
		return CartCountOutput{}, unauthorized()
	}

	item, err := u.findOwnedItem(ctx, userID, cartItemID)
	if err != nil {
		return CartCountOutput{}, err
	}
	if err := u.cartItems.DeleteByID(ctx, item.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartCountOutput{}, notFound("cart item not found")
		}
		return CartCountOutput{}, storeError(err)
	}
	return u.CartCount(ctx, userID)
}

func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return unauthorized()
	}
	if err := u.cartItems.ClearByUserID(ctx, userID); err != nil {
		return storeError(err)
	}
	return nil
}

func (u *CartUsecase) CartCount(ctx context.Context, userID int64) (CartCountOutput, error) {
	if userID <= 0 {
		return CartCountOutput{}, unauthorized()
	}
	n, err := u.cartItems.CountQuantityByUserID(ctx, userID)
	if err != nil {
		return CartCountOutput{}, storeError(err)
	}
	return CartCountOutput{Count: n}, nil
}

// 他人の明細は「存在しない扱い」
func (u *CartUsecase) findOwnedItem(ctx context.Context, userID, cartItemID int64) (model.CartItem, error) {
	if cartItemID <= 0 {
		return model.CartItem{}, badRequest(CodeValidation, "invalid id")
	}
	item, err := u.cartItems.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, notFound("cart item not found")
	}
	if err != nil {
		return model.CartItem{}, storeError(err)
	}
	if item.UserID != userID {
		return model.CartItem{}, notFound("cart item not found")
	}
	return item, nil
}

func toCartLineOutput(it model.CartItem, p model.Product) CartLineOutput {
	return CartLineOutput{
		ID:        it.ID,
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
		Product: &CartProductOutput{
			ID:              p.ID,
			Name:            p.Name,
			SKU:             p.SKU,
			Price:           p.Price,
			Thumbnail:       p.ThumbnailURL,
			StockQuantity:   p.StockQuantity,
			TracksInventory: p.TracksInventory,
		},
		Subtotal:  p.Price.Mul(decimal.NewFromInt(it.Quantity)),
		Available: p.IsActive,
	}
}
