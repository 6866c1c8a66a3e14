package usecase

import (
	"context"
	"errors"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"
	"shopcore/internal/validator"
)

type AddressCreateRequest struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	IsDefault    bool   `json:"is_default"`
}

type AddressUsecase struct {
	addresses repo.AddressRepository
	clock     Clock
}

func NewAddressUsecase(addresses repo.AddressRepository, clock Clock) *AddressUsecase {
	return &AddressUsecase{addresses: addresses, clock: clock}
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]model.Address, error) {
	if userID <= 0 {
		return nil, unauthorized()
	}

	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	if list == nil {
		list = []model.Address{}
	}
	return list, nil
}

func (u *AddressUsecase) Create(ctx context.Context, userID int64, req AddressCreateRequest) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, unauthorized()
	}

	//入力チェック（チェックアウトの配送先と同じ規則）
	snap := validator.NormalizeShippingAddress(model.ShippingAddress{
		FullName:     req.FullName,
		Phone:        req.Phone,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		PostalCode:   req.PostalCode,
		Country:      req.Country,
	})
	if err := validator.ValidateShippingAddress(snap); err != nil {
		return model.Address{}, badRequest(CodeValidation, err.Error())
	}

	now := u.clock.Now()
	created, err := u.addresses.Create(ctx, model.Address{
		UserID:       userID,
		FullName:     snap.FullName,
		Phone:        snap.Phone,
		AddressLine1: snap.AddressLine1,
		AddressLine2: snap.AddressLine2,
		City:         snap.City,
		State:        snap.State,
		PostalCode:   snap.PostalCode,
		Country:      snap.Country,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return model.Address{}, storeError(err)
	}

	if req.IsDefault {
		if err := u.addresses.SetDefault(ctx, userID, created.ID); err != nil {
			return model.Address{}, storeError(err)
		}
		created.IsDefault = true
	}
	return created, nil
}

func (u *AddressUsecase) Delete(ctx context.Context, userID int64, addressID int64) error {
	if _, err := u.findOwned(ctx, userID, addressID); err != nil {
		return err
	}

	if err := u.addresses.Delete(ctx, addressID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("address not found")
		}
		return storeError(err)
	}
	return nil
}

func (u *AddressUsecase) SetDefault(ctx context.Context, userID int64, addressID int64) error {
	if _, err := u.findOwned(ctx, userID, addressID); err != nil {
		return err
	}

	//user内でdefaultは1つ
	if err := u.addresses.SetDefault(ctx, userID, addressID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("address not found")
		}
		return storeError(err)
	}
	return nil
}

// 他人の住所は「存在しない扱い」
func (u *AddressUsecase) findOwned(ctx context.Context, userID, addressID int64) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, unauthorized()
	}
	if addressID <= 0 {
		return model.Address{}, badRequest(CodeValidation, "invalid id")
	}

	a, err := u.addresses.FindByID(ctx, addressID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Address{}, notFound("address not found")
	}
	if err != nil {
		return model.Address{}, storeError(err)
	}
	if a.UserID != userID {
		return model.Address{}, notFound("address not found")
	}
	return a, nil
}
