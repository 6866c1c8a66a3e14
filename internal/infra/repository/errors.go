package repository

import (
	"errors"
	"fmt"

	infradb "shopcore/internal/infra/db"
	repo "shopcore/internal/repository"

	"gorm.io/gorm"
)

// DBのエラーをrepo層のセンチネルに寄せる
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	if infradb.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", repo.ErrConflict, err)
	}
	if infradb.IsRetryable(err) {
		return fmt.Errorf("%w: %v", repo.ErrRetryable, err)
	}
	return err
}
