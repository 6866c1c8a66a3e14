package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypePurchase     TransactionType = "purchase"
	TransactionTypeRefund       TransactionType = "refund"
	TransactionTypeWalletCredit TransactionType = "wallet_credit"
	TransactionTypeWalletDebit  TransactionType = "wallet_debit"
)

// 残高を増やす種別か
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeRefund || t == TransactionTypeWalletCredit
}

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// ウォレット台帳（追記のみ）
type Transaction struct {
	ID              int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID   string            `gorm:"type:varchar(50);not null;uniqueIndex" json:"transaction_id"`
	UserID          int64             `gorm:"not null;index" json:"user_id"`
	OrderID         *int64            `gorm:"index" json:"order_id"`
	TransactionType TransactionType   `gorm:"type:varchar(20);not null;index" json:"transaction_type"`
	Amount          decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	BalanceBefore   decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"balance_before"`
	BalanceAfter    decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"balance_after"`
	Status          TransactionStatus `gorm:"type:varchar(20);not null" json:"status"`
	Description     string            `gorm:"type:varchar(255)" json:"description"`
	CreatedAt       time.Time         `gorm:"not null;index" json:"created_at"`
}
