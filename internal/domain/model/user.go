package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ウォレット残高はdebit/creditを通してだけ変える
type User struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Email         string          `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string          `gorm:"column:password_hash;not null" json:"-"`
	FirstName     string          `gorm:"type:varchar(100)" json:"first_name"`
	LastName      string          `gorm:"type:varchar(100)" json:"last_name"`
	Role          Role            `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`
	TokenVersion  int             `gorm:"not null;default:0" json:"-"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	WalletBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"wallet_balance"`
	LastLoginAt   *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
