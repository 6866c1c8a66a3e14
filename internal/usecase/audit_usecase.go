package usecase

import (
	"context"
	"encoding/json"
	"time"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"
)

type AuditLogUsecase struct {
	auditRepo repo.AuditLogRepository
}

func NewAuditLogUsecase(auditRepo repo.AuditLogRepository) *AuditLogUsecase {
	return &AuditLogUsecase{auditRepo: auditRepo}
}

type AuditLogListInput struct {
	ActorUserID  *int64
	Action       string
	ResourceType string
	ResourceID   *int64
	From         *time.Time
	To           *time.Time
	Page         int
	Limit        int
}

func (u *AuditLogUsecase) List(ctx context.Context, adminUserID int64, in AuditLogListInput) ([]model.AuditLog, error) {
	if adminUserID <= 0 {
		return nil, unauthorized()
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return nil, badRequest(CodeValidation, "from must be <= to")
	}

	page, limit := normalizePage(in.Page, in.Limit)
	f := repo.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		ResourceID:  in.ResourceID,
		CreatedFrom: in.From,
		CreatedTo:   in.To,
		Limit:       limit,
		Offset:      (page - 1) * limit,
	}
	if in.Action != "" {
		a := model.AuditAction(in.Action)
		f.Action = &a
	}
	if in.ResourceType != "" {
		rt := model.AuditResourceType(in.ResourceType)
		f.ResourceType = &rt
	}

	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return nil, storeError(err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}

// 監査ログのbefore/afterをJSON文字列にする
func auditJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
