package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"shopcore/internal/domain/coupon"
	"shopcore/internal/domain/ledger"
	"shopcore/internal/domain/model"
	"shopcore/internal/domain/pricing"
	repo "shopcore/internal/repository"
	"shopcore/internal/validator"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderUsecase struct {
	tx     repo.TransactionManager
	clock  Clock
	events orderEvents
	logger *zap.Logger
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	clock Clock,
	publisher EventPublisher,
	topics OrderEventTopics,
	logger *zap.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:     tx,
		clock:  clock,
		events: orderEvents{pub: publisher, topics: topics, logger: logger},
		logger: logger,
	}
}

type CheckoutInput struct {
	// どちらか一方。両方あればインラインを優先。
	ShippingAddress *model.ShippingAddress
	AddressID       int64

	PaymentMethod string
	CouponCode    string
	CustomerNotes string
}

type OrderOutput struct {
	model.Order
	ItemCount int64             `json:"item_count"`
	Items     []model.OrderItem `json:"items,omitempty"`
}

type CheckoutOutput struct {
	Order         OrderOutput     `json:"order"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
}

type CancelOutput struct {
	Order         OrderOutput     `json:"order"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
}

type OrderListOutput struct {
	Orders []OrderOutput `json:"orders"`
	Pagination
}

type checkoutLine struct {
	item    model.CartItem
	product model.Product
}

type checkoutQuote struct {
	summary  pricing.Summary
	coupon   *model.Coupon
	discount decimal.Decimal
	total    decimal.Decimal
}

// Checkout はカートを注文に変える。
// 事前チェック（ロックなし）→ 本処理（ユーザー行ロック＋全部1トランザクション）の2段。
// 事前チェックは早く失敗させるためだけで、本処理で同じ判定をやり直す。
func (u *OrderUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, unauthorized()
	}

	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		method = model.PaymentMethodWallet
	}
	if method != model.PaymentMethodWallet {
		return CheckoutOutput{}, badRequest(CodeValidation, "unsupported payment method: "+method)
	}

	couponCode := coupon.NormalizeCode(in.CouponCode)
	checkedAt := u.clock.Now()

	var addr model.ShippingAddress

	//事前チェック
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := r.Users().FindByID(ctx, userID)
		if err != nil {
			return userLookupError(err)
		}

		cart, err := loadCartItems(ctx, r, userID)
		if err != nil {
			return err
		}

		//住所はカートが空でないと分かった直後に見る
		addr, err = resolveShippingAddress(ctx, r, userID, in)
		if err != nil {
			return err
		}

		lines, err := loadCheckoutLines(ctx, r, cart)
		if err != nil {
			return err
		}

		_, err = quoteCheckout(ctx, r, user, lines, couponCode, checkedAt)
		return err
	})
	if err != nil {
		u.logRejected(userID, "precheck", err)
		return CheckoutOutput{}, storeError(err)
	}

	var (
		placed  model.Order
		items   []model.OrderItem
		balance decimal.Decimal
	)

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//ユーザー行をロック（同じユーザーの決済はここで直列）
		user, err := r.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return userLookupError(err)
		}
		//台帳の時刻はロック取得後に取る（コミット順と揃える）
		now := u.clock.Now()

		cart, err := loadCartItems(ctx, r, userID)
		if err != nil {
			return err
		}
		lines, err := loadCheckoutLines(ctx, r, cart)
		if err != nil {
			return err
		}

		q, err := quoteCheckout(ctx, r, user, lines, couponCode, now)
		if err != nil {
			return err
		}

		//クーポン利用回数（上限を超える加算はDBが弾く）
		if q.coupon != nil {
			ok, err := r.Coupons().IncrementUsage(ctx, q.coupon.ID)
			if err != nil {
				return err
			}
			if !ok {
				return couponError(coupon.ErrUsageLimitReached)
			}
		}

		after, err := ledger.Debit(user.WalletBalance, q.total)
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return insufficientFunds(user.WalletBalance, q.total)
		}
		if err != nil {
			return err
		}

		order := model.Order{
			OrderNumber:     ledger.NewOrderNumber(now),
			UserID:          userID,
			Status:          model.OrderStatusConfirmed,
			PaymentMethod:   method,
			PaymentStatus:   model.PaymentStatusPaid,
			Subtotal:        q.summary.Subtotal,
			DiscountAmount:  q.discount,
			ShippingCost:    q.summary.Shipping,
			TaxAmount:       q.summary.Tax,
			TotalAmount:     q.total,
			ShippingAddress: addr,
			CustomerNotes:   strings.TrimSpace(in.CustomerNotes),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if q.coupon != nil {
			order.CouponID = &q.coupon.ID
			order.CouponCode = q.coupon.Code
		}

		order, err = r.Orders().Create(ctx, order)
		if err != nil {
			return err
		}

		//在庫はここが本当の判定（条件付き減算）
		orderItems := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, l.product.ID, l.item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return insufficientStock(l.product)
			}

			//購入時点の名前・SKU・画像・単価を焼き付ける
			orderItems = append(orderItems, model.OrderItem{
				ProductID:    l.product.ID,
				ProductName:  l.product.Name,
				ProductSKU:   l.product.SKU,
				ProductImage: l.product.ThumbnailURL,
				Quantity:     l.item.Quantity,
				UnitPrice:    l.product.Price,
				Discount:     decimal.Zero,
				CreatedAt:    now,
			})
		}
		if err := r.OrderItems().CreateBulk(ctx, order.ID, orderItems); err != nil {
			return err
		}

		ok, err := r.Users().UpdateWalletBalance(ctx, userID, user.WalletBalance, after)
		if err != nil {
			return err
		}
		if !ok {
			// ロック中なので通常起きない
			return fmt.Errorf("wallet balance changed during checkout: %w", repo.ErrRetryable)
		}

		orderID := order.ID
		if _, err := r.Ledger().Create(ctx, ledger.NewEntry(ledger.EntryInput{
			UserID:        userID,
			OrderID:       &orderID,
			Type:          model.TransactionTypePurchase,
			Amount:        q.total,
			BalanceBefore: user.WalletBalance,
			BalanceAfter:  after,
			Description:   "Payment for order " + order.OrderNumber,
		}, now)); err != nil {
			return err
		}

		if q.coupon != nil {
			if err := r.Coupons().CreateRedemption(ctx, model.CouponRedemption{
				CouponID:  q.coupon.ID,
				UserID:    userID,
				OrderID:   order.ID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		if err := r.CartItems().ClearByUserID(ctx, userID); err != nil {
			return err
		}

		placed = order
		items = orderItems
		balance = after
		return nil
	})
	if err != nil {
		u.logRejected(userID, "commit", err)
		return CheckoutOutput{}, storeError(err)
	}

	u.logger.Info("order placed",
		zap.String("order_number", placed.OrderNumber),
		zap.Int64("user_id", userID),
		zap.String("total", placed.TotalAmount.StringFixed(2)),
	)
	u.events.emit(ctx, EventOrderPlaced, placed, placed.CreatedAt)

	return CheckoutOutput{
		Order:         toOrderOutput(placed, items),
		WalletBalance: balance,
	}, nil
}

// Cancel は本人の注文をキャンセルして返金する
func (u *OrderUsecase) Cancel(ctx context.Context, userID int64, orderID int64) (CancelOutput, error) {
	if userID <= 0 {
		return CancelOutput{}, unauthorized()
	}
	if orderID <= 0 {
		return CancelOutput{}, badRequest(CodeValidation, "invalid id")
	}

	var out CancelOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//ステータス判定はロックを取ってから
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("order not found")
		}
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return notFound("order not found")
		}

		res, err := refundOrder(ctx, r, o, u.clock, nil)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		u.logRejected(userID, "cancel", err)
		return CancelOutput{}, storeError(err)
	}

	u.logger.Info("order cancelled",
		zap.String("order_number", out.Order.OrderNumber),
		zap.Int64("user_id", userID),
		zap.String("refund", out.RefundAmount.StringFixed(2)),
	)
	u.events.emit(ctx, EventOrderCancelled, out.Order.Order, *out.Order.CancelledAt)

	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, status string, page, perPage int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, unauthorized()
	}
	if status != "" {
		if _, ok := model.ParseOrderStatus(status); !ok {
			return OrderListOutput{}, badRequest(CodeValidation, "invalid status")
		}
	}
	page, perPage = normalizePage(page, perPage)

	var out OrderListOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, status, page, perPage)
		if err != nil {
			return err
		}
		out.Orders, err = withItems(ctx, r, orders)
		if err != nil {
			return err
		}
		out.Pagination = newPagination(page, perPage, total)
		return nil
	})
	if err != nil {
		return OrderListOutput{}, storeError(err)
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, unauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, badRequest(CodeValidation, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("order not found")
		}
		if err != nil {
			return err
		}
		//他人の注文は「存在しない扱い」にする
		if o.UserID != userID {
			return notFound("order not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, storeError(err)
	}
	return out, nil
}

func resolveShippingAddress(ctx context.Context, r repo.TxRepos, userID int64, in CheckoutInput) (model.ShippingAddress, error) {
	var addr model.ShippingAddress

	switch {
	case in.ShippingAddress != nil:
		addr = *in.ShippingAddress
	case in.AddressID > 0:
		saved, err := r.Addresses().FindByID(ctx, in.AddressID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && saved.UserID != userID) {
			return model.ShippingAddress{}, badRequest(CodeInvalidAddress, "address not found")
		}
		if err != nil {
			return model.ShippingAddress{}, err
		}
		addr = saved.Snapshot()
	default:
		return model.ShippingAddress{}, badRequest(CodeInvalidAddress, "shipping_address is required")
	}

	addr = validator.NormalizeShippingAddress(addr)
	if err := validator.ValidateShippingAddress(addr); err != nil {
		return model.ShippingAddress{}, badRequest(CodeInvalidAddress, err.Error())
	}
	return addr, nil
}

func (u *OrderUsecase) logRejected(userID int64, stage string, err error) {
	if he, ok := AsHTTPError(err); ok {
		u.logger.Info("order request rejected",
			zap.Int64("user_id", userID),
			zap.String("stage", stage),
			zap.String("code", he.Code),
			zap.String("reason", he.Message),
		)
		return
	}
	u.logger.Error("order request failed",
		zap.Int64("user_id", userID),
		zap.String("stage", stage),
		zap.Error(err),
	)
}

func loadCartItems(ctx context.Context, r repo.TxRepos, userID int64) ([]model.CartItem, error) {
	items, err := r.CartItems().ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, badRequest(CodeEmptyCart, "cart is empty")
	}
	return items, nil
}

// カート行の現在の商品を読む。商品ID順に並べてロック順を揃える。
func loadCheckoutLines(ctx context.Context, r repo.TxRepos, items []model.CartItem) ([]checkoutLine, error) {
	lines := make([]checkoutLine, 0, len(items))
	for _, it := range items {
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, badRequest(CodeProductUnavailable, fmt.Sprintf("product %d is no longer available", it.ProductID))
		}
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			return nil, badRequest(CodeProductUnavailable, p.Name+" is no longer available")
		}
		if !p.HasStockFor(it.Quantity) {
			return nil, insufficientStock(p)
		}
		lines = append(lines, checkoutLine{item: it, product: p})
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].product.ID < lines[j].product.ID })
	return lines, nil
}

// 金額計算・クーポン判定・残高判定（書き込みなし）
func quoteCheckout(ctx context.Context, r repo.TxRepos, user *model.User, lines []checkoutLine, couponCode string, now time.Time) (checkoutQuote, error) {
	pl := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		pl = append(pl, pricing.Line{UnitPrice: l.product.Price, Quantity: l.item.Quantity})
	}

	q := checkoutQuote{summary: pricing.ComputeSummary(pl), discount: decimal.Zero}

	if couponCode != "" {
		c, err := r.Coupons().FindByCode(ctx, couponCode)
		if errors.Is(err, repo.ErrNotFound) {
			return checkoutQuote{}, badRequest(CodeCouponInvalid, "invalid coupon code")
		}
		if err != nil {
			return checkoutQuote{}, err
		}

		used, err := r.Coupons().CountActiveRedemptions(ctx, c.ID, user.ID)
		if err != nil {
			return checkoutQuote{}, err
		}
		if err := coupon.ValidateForUser(c, now, used); err != nil {
			return checkoutQuote{}, couponError(err)
		}

		//最低金額に届かなければ割引0で適用（利用回数は数える）
		q.coupon = &c
		q.discount = coupon.ComputeDiscount(c, q.summary.Subtotal)
	}

	q.total = pricing.OrderTotal(q.summary, q.discount)

	if user.WalletBalance.LessThan(q.total) {
		return checkoutQuote{}, insufficientFunds(user.WalletBalance, q.total)
	}
	return q, nil
}

// refundOrder は在庫戻し・返金・ステータス更新をまとめてやる。
// 呼び出し側で注文行をロック済みであること。時刻はユーザー行のロック後に取る。
func refundOrder(ctx context.Context, r repo.TxRepos, o model.Order, clock Clock, adminNotes *string) (CancelOutput, error) {
	if !o.Status.IsCancellable() {
		return CancelOutput{}, badRequest(CodeInvalidTransition, fmt.Sprintf("order cannot be cancelled when %s", o.Status))
	}

	//ロック順はチェックアウトと同じ（ユーザー→商品）
	user, err := r.Users().FindByIDForUpdate(ctx, o.UserID)
	if err != nil {
		return CancelOutput{}, userLookupError(err)
	}
	balance := user.WalletBalance
	now := clock.Now()

	refunded := model.PaymentStatusRefunded
	upd := repo.OrderStatusUpdate{
		Status:      model.OrderStatusCancelled,
		AdminNotes:  adminNotes,
		CancelledAt: &now,
		UpdatedAt:   now,
	}
	refund := decimal.Zero
	if o.PaymentStatus == model.PaymentStatusPaid {
		refund = o.TotalAmount
		upd.PaymentStatus = &refunded
	}

	//WHERE status IN (...) で再確認（二重返金防止）
	ok, err := r.Orders().TransitionStatus(ctx, o.ID, model.CancellableStatuses(), upd)
	if err != nil {
		return CancelOutput{}, err
	}
	if !ok {
		return CancelOutput{}, badRequest(CodeInvalidTransition, "order status changed, cannot be cancelled")
	}

	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return CancelOutput{}, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	//在庫戻し（sold_countは戻さない）
	for _, it := range items {
		err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity)
		// 在庫管理しない商品・物理削除された商品は戻し先がない
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return CancelOutput{}, err
		}
	}

	if refund.IsPositive() {
		after, err := ledger.Credit(balance, refund)
		if err != nil {
			return CancelOutput{}, err
		}
		ok, err := r.Users().UpdateWalletBalance(ctx, user.ID, balance, after)
		if err != nil {
			return CancelOutput{}, err
		}
		if !ok {
			return CancelOutput{}, fmt.Errorf("wallet balance changed during refund: %w", repo.ErrRetryable)
		}

		orderID := o.ID
		if _, err := r.Ledger().Create(ctx, ledger.NewEntry(ledger.EntryInput{
			UserID:        user.ID,
			OrderID:       &orderID,
			Type:          model.TransactionTypeRefund,
			Amount:        refund,
			BalanceBefore: balance,
			BalanceAfter:  after,
			Description:   "Refund for cancelled order " + o.OrderNumber,
		}, now)); err != nil {
			return CancelOutput{}, err
		}
		balance = after
	}

	o.Status = model.OrderStatusCancelled
	if upd.PaymentStatus != nil {
		o.PaymentStatus = *upd.PaymentStatus
	}
	if adminNotes != nil {
		o.AdminNotes = *adminNotes
	}
	o.CancelledAt = &now
	o.UpdatedAt = now

	return CancelOutput{
		Order:         toOrderOutput(o, items),
		RefundAmount:  refund,
		WalletBalance: balance,
	}, nil
}

func withItems(ctx context.Context, r repo.TxRepos, orders []model.Order) ([]OrderOutput, error) {
	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return outs, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	var count int64
	for _, it := range items {
		count += it.Quantity
	}
	return OrderOutput{Order: o, ItemCount: count, Items: items}
}

func userLookupError(err error) error {
	if errors.Is(err, repo.ErrUserNotFound) {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	return err
}

func insufficientStock(p model.Product) error {
	return badRequest(CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s (available: %d)", p.Name, p.StockQuantity))
}

func insufficientFunds(balance, total decimal.Decimal) error {
	return badRequest(CodeInsufficientFunds, fmt.Sprintf("insufficient wallet balance: available %s, required %s", balance.StringFixed(2), total.StringFixed(2)))
}

func couponError(err error) error {
	return NewHTTPError(http.StatusBadRequest, CodeCouponInvalid, coupon.Reason(err)+": "+err.Error())
}
