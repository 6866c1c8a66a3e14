// Package coupon はクーポンの有効性判定と割引額計算を行う。
// どちらも副作用なし。used_countの加算はチェックアウト側でやる。
package coupon

import (
	"errors"
	"strings"
	"time"

	"shopcore/internal/domain/model"

	"github.com/shopspring/decimal"
)

var (
	ErrInactive            = errors.New("coupon is not active")
	ErrNotYetStarted       = errors.New("coupon is not yet valid")
	ErrExpired             = errors.New("coupon has expired")
	ErrUsageLimitReached   = errors.New("coupon usage limit reached")
	ErrPerUserLimitReached = errors.New("coupon already used the maximum number of times by this user")
)

var hundred = decimal.NewFromInt(100)

// NormalizeCode は大文字・前後空白除去
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate は一番具体的な理由を1つ返す
func Validate(c model.Coupon, now time.Time) error {
	if !c.IsActive {
		return ErrInactive
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return ErrNotYetStarted
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// ValidateForUser はper_user_limitも見る（0以下は無制限）
func ValidateForUser(c model.Coupon, now time.Time, usedByUser int64) error {
	if err := Validate(c, now); err != nil {
		return err
	}
	if c.PerUserLimit > 0 && usedByUser >= c.PerUserLimit {
		return ErrPerUserLimitReached
	}
	return nil
}

// ComputeDiscount は割引額。小計を超えない。
func ComputeDiscount(c model.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.LessThan(c.MinOrderAmount) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case model.DiscountTypePercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
			discount = *c.MaxDiscountAmount
		}
	case model.DiscountTypeFixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}

// Reason はAPIで返す機械可読な理由
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrNotYetStarted):
		return "not-yet-started"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrUsageLimitReached):
		return "usage-limit-reached"
	case errors.Is(err, ErrPerUserLimitReached):
		return "per-user-limit-reached"
	}
	return ""
}
