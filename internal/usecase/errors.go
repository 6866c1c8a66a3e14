package usecase

import (
	"errors"
	"fmt"
	"net/http"

	repo "shopcore/internal/repository"
)

// 機械可読なエラー種別（レスポンスのcodeに入る）
const (
	CodeValidation         = "Validation"
	CodeUnauthorized       = "Unauthorized"
	CodeForbidden          = "Forbidden"
	CodeNotFound           = "NotFound"
	CodeConflict           = "Conflict"
	CodeEmptyCart          = "EmptyCart"
	CodeInvalidAddress     = "InvalidAddress"
	CodeInvalidQuantity    = "InvalidQuantity"
	CodeProductUnavailable = "ProductUnavailable"
	CodeInsufficientStock  = "InsufficientStock"
	CodeInsufficientFunds  = "InsufficientFunds"
	CodeCouponInvalid      = "CouponInvalid"
	CodeInvalidTransition  = "InvalidTransition"
	CodeRetryable          = "Retryable"
	CodeInternal           = "Internal"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func NewHTTPError(status int, code, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func badRequest(code, message string) error {
	return NewHTTPError(http.StatusBadRequest, code, message)
}

func notFound(message string) error {
	return NewHTTPError(http.StatusNotFound, CodeNotFound, message)
}

func unauthorized() error {
	return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
}

// storeError はrepoのエラーを500系に寄せる。
// ロック待ちなどは再試行可能として返す（書き込みはロールバック済み）。
func storeError(err error) error {
	if he, ok := AsHTTPError(err); ok {
		return he
	}
	if errors.Is(err, repo.ErrRetryable) {
		return NewHTTPError(http.StatusInternalServerError, CodeRetryable, "service temporarily unavailable, please retry")
	}
	return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
}
