package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shopcore/internal/domain/coupon"
	"shopcore/internal/domain/model"
	"shopcore/internal/domain/pricing"
	repo "shopcore/internal/repository"

	"github.com/shopspring/decimal"
)

// CouponUsecase はクーポンのプレビューと管理。
// プレビューは何も書き込まない（used_countはチェックアウトでだけ増える）。
type CouponUsecase struct {
	tx    repo.TransactionManager
	clock Clock
}

func NewCouponUsecase(tx repo.TransactionManager, clock Clock) *CouponUsecase {
	return &CouponUsecase{tx: tx, clock: clock}
}

type CouponPreviewOutput struct {
	Coupon         model.Coupon    `json:"coupon"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Total          decimal.Decimal `json:"total"`
}

func (u *CouponUsecase) Preview(ctx context.Context, userID int64, code string) (CouponPreviewOutput, error) {
	if userID <= 0 {
		return CouponPreviewOutput{}, unauthorized()
	}
	code = coupon.NormalizeCode(code)
	if code == "" {
		return CouponPreviewOutput{}, badRequest(CodeValidation, "code is required")
	}

	now := u.clock.Now()
	var out CouponPreviewOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := r.Coupons().FindByCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("coupon not found")
		}
		if err != nil {
			return err
		}

		used, err := r.Coupons().CountActiveRedemptions(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		if err := coupon.ValidateForUser(c, now, used); err != nil {
			return couponError(err)
		}

		summary, err := cartSummary(ctx, r, userID)
		if err != nil {
			return err
		}
		if summary.Subtotal.LessThan(c.MinOrderAmount) {
			return minOrderNotMet(c)
		}

		discount := coupon.ComputeDiscount(c, summary.Subtotal)
		out = CouponPreviewOutput{
			Coupon:         c,
			DiscountAmount: discount,
			Subtotal:       summary.Subtotal,
			Total:          pricing.OrderTotal(summary, discount),
		}
		return nil
	})
	if err != nil {
		return CouponPreviewOutput{}, storeError(err)
	}
	return out, nil
}

type AdminCreateCouponInput struct {
	Code              string
	Description       string
	DiscountType      string
	DiscountValue     decimal.Decimal
	MinOrderAmount    decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        *int64
	PerUserLimit      *int64
	IsActive          bool
	StartsAt          *time.Time
	ExpiresAt         *time.Time
}

func (u *CouponUsecase) AdminCreate(ctx context.Context, adminUserID int64, in AdminCreateCouponInput) (model.Coupon, error) {
	if adminUserID <= 0 {
		return model.Coupon{}, unauthorized()
	}

	code := coupon.NormalizeCode(in.Code)
	if code == "" {
		return model.Coupon{}, badRequest(CodeValidation, "code is required")
	}

	dt := model.DiscountType(strings.ToLower(strings.TrimSpace(in.DiscountType)))
	switch dt {
	case model.DiscountTypePercentage:
		if !in.DiscountValue.IsPositive() || in.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
			return model.Coupon{}, badRequest(CodeValidation, "percentage discount must be between 0 and 100")
		}
	case model.DiscountTypeFixed:
		if !in.DiscountValue.IsPositive() {
			return model.Coupon{}, badRequest(CodeValidation, "discount_value must be > 0")
		}
	default:
		return model.Coupon{}, badRequest(CodeValidation, "discount_type must be percentage or fixed")
	}

	if in.MinOrderAmount.IsNegative() {
		return model.Coupon{}, badRequest(CodeValidation, "min_order_amount must be >= 0")
	}
	if in.MaxDiscountAmount != nil && in.MaxDiscountAmount.IsNegative() {
		return model.Coupon{}, badRequest(CodeValidation, "max_discount_amount must be >= 0")
	}
	usageLimit := in.UsageLimit
	if usageLimit != nil && *usageLimit < 0 {
		return model.Coupon{}, badRequest(CodeValidation, "usage_limit must be >= 0")
	}
	// 0は無制限
	if usageLimit != nil && *usageLimit == 0 {
		usageLimit = nil
	}
	if in.StartsAt != nil && in.ExpiresAt != nil && !in.StartsAt.Before(*in.ExpiresAt) {
		return model.Coupon{}, badRequest(CodeValidation, "starts_at must be before expires_at")
	}

	perUser := int64(1)
	if in.PerUserLimit != nil {
		if *in.PerUserLimit < 0 {
			return model.Coupon{}, badRequest(CodeValidation, "per_user_limit must be >= 0")
		}
		perUser = *in.PerUserLimit
	}

	now := u.clock.Now()
	var created model.Coupon

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := r.Coupons().Create(ctx, model.Coupon{
			Code:              code,
			Description:       strings.TrimSpace(in.Description),
			DiscountType:      dt,
			DiscountValue:     in.DiscountValue,
			MinOrderAmount:    in.MinOrderAmount,
			MaxDiscountAmount: in.MaxDiscountAmount,
			UsageLimit:        usageLimit,
			PerUserLimit:      perUser,
			IsActive:          in.IsActive,
			StartsAt:          in.StartsAt,
			ExpiresAt:         in.ExpiresAt,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, CodeConflict, "coupon code already exists")
		}
		if err != nil {
			return err
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionCreateCoupon,
			ResourceType: model.AuditResourceCoupon,
			ResourceID:   c.ID,
			AfterJSON: auditJSON(map[string]any{
				"code":           c.Code,
				"discount_type":  c.DiscountType,
				"discount_value": c.DiscountValue,
			}),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		created = c
		return nil
	})
	if err != nil {
		return model.Coupon{}, storeError(err)
	}
	return created, nil
}

func (u *CouponUsecase) AdminList(ctx context.Context) ([]model.Coupon, error) {
	var list []model.Coupon
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		list, err = r.Coupons().List(ctx)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	if list == nil {
		list = []model.Coupon{}
	}
	return list, nil
}

// 画面と同じ集計（非公開・削除済みの行は除外）。空カートはエラー。
func cartSummary(ctx context.Context, r repo.TxRepos, userID int64) (pricing.Summary, error) {
	items, err := r.CartItems().ListByUserID(ctx, userID)
	if err != nil {
		return pricing.Summary{}, err
	}

	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return pricing.Summary{}, err
		}
		if !p.IsActive {
			continue
		}
		lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: it.Quantity})
	}
	if len(lines) == 0 {
		return pricing.Summary{}, badRequest(CodeEmptyCart, "cart is empty")
	}
	return pricing.ComputeSummary(lines), nil
}

func minOrderNotMet(c model.Coupon) error {
	return badRequest(CodeCouponInvalid, fmt.Sprintf("min-order-not-met: minimum order amount of %s required", c.MinOrderAmount.StringFixed(2)))
}
