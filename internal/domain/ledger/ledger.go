// Package ledger はウォレット残高の加減算と台帳IDの採番。
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"shopcore/internal/domain/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	// 台帳の前後残高がつながっていない
	ErrBrokenChain = errors.New("ledger chain is inconsistent")
)

const idTimeLayout = "20060102150405"

// ORD-20260301120000-1A2B3C4D
func NewOrderNumber(now time.Time) string {
	return newID("ORD", now, 8)
}

// TXN-20260301120000-1A2B3C4D5E6F
func NewTransactionID(now time.Time) string {
	return newID("TXN", now, 12)
}

// 時刻だけだと同一秒で衝突するのでuuidの乱数部分を足す
func newID(prefix string, now time.Time, n int) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format(idTimeLayout), strings.ToUpper(raw[:n]))
}

// Debit は残高不足ならエラー
func Debit(balance, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return balance, ErrInvalidAmount
	}
	if balance.LessThan(amount) {
		return balance, ErrInsufficientFunds
	}
	return balance.Sub(amount), nil
}

// Credit は上限なし
func Credit(balance, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return balance, ErrInvalidAmount
	}
	return balance.Add(amount), nil
}

type EntryInput struct {
	UserID        int64
	OrderID       *int64
	Type          model.TransactionType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
}

// NewEntry は完了済みの台帳行を組み立てる
func NewEntry(in EntryInput, now time.Time) model.Transaction {
	return model.Transaction{
		TransactionID:   NewTransactionID(now),
		UserID:          in.UserID,
		OrderID:         in.OrderID,
		TransactionType: in.Type,
		Amount:          in.Amount,
		BalanceBefore:   in.BalanceBefore,
		BalanceAfter:    in.BalanceAfter,
		Status:          model.TransactionStatusCompleted,
		Description:     in.Description,
		CreatedAt:       now,
	}
}

// Replay は作成順の台帳から残高を再計算する。
// 各行のbefore/afterが前の行とつながっているかも確認する。
func Replay(initial decimal.Decimal, txs []model.Transaction) (decimal.Decimal, error) {
	balance := initial
	for _, t := range txs {
		if t.Status != model.TransactionStatusCompleted {
			continue
		}
		if !t.BalanceBefore.Equal(balance) {
			return balance, fmt.Errorf("%w: %s before=%s expected=%s", ErrBrokenChain, t.TransactionID, t.BalanceBefore, balance)
		}
		var err error
		if t.TransactionType.IsCredit() {
			balance, err = Credit(balance, t.Amount)
		} else {
			balance, err = Debit(balance, t.Amount)
		}
		if err != nil {
			return balance, fmt.Errorf("%s: %w", t.TransactionID, err)
		}
		if !t.BalanceAfter.Equal(balance) {
			return balance, fmt.Errorf("%w: %s after=%s expected=%s", ErrBrokenChain, t.TransactionID, t.BalanceAfter, balance)
		}
	}
	return balance, nil
}
