package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反
	ErrConflict = errors.New("conflict")
	// ロック待ちタイムアウト・デッドロックなど。呼び出し側は再試行してよい。
	ErrRetryable = errors.New("retryable store error")
)
