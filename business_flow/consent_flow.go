package businessflow

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/udyogsetu/messaging-core/app/dto"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/repository"
	"github.com/udyogsetu/messaging-core/utils"
)

// ConsentFlow manages opt-in records for (tenant, phone) pairs
type ConsentFlow interface {
	OptIn(ctx context.Context, req *dto.OptInRequest, metadata *ClientMetadata) (*dto.OptInDTO, error)
	OptOut(ctx context.Context, req *dto.OptOutRequest, metadata *ClientMetadata) (*dto.OptInDTO, error)
	GetOptIn(ctx context.Context, tenantUUID, phoneNumber string) (*dto.OptInDTO, error)
}

// ConsentFlowImpl implements the consent business flow
type ConsentFlowImpl struct {
	tenantRepo repository.TenantRepository
	optInRepo  repository.OptInRepository
	db         *gorm.DB
}

// NewConsentFlow creates a new consent flow instance
func NewConsentFlow(tenantRepo repository.TenantRepository, optInRepo repository.OptInRepository, db *gorm.DB) ConsentFlow {
	return &ConsentFlowImpl{tenantRepo: tenantRepo, optInRepo: optInRepo, db: db}
}

// OptIn records consent. Re-opting-in after an opt-out reactivates the
// existing row; the historical message count survives.
func (s *ConsentFlowImpl) OptIn(ctx context.Context, req *dto.OptInRequest, metadata *ClientMetadata) (*dto.OptInDTO, error) {
	tenant, err := s.resolveTenant(ctx, req.TenantUUID)
	if err != nil {
		return nil, err
	}

	phone := utils.NormalizePhoneNumber(req.PhoneNumber)
	if !utils.IsValidPhoneNumber(phone) {
		return nil, NewBusinessError("INVALID_PHONE_NUMBER", "Invalid phone number", ErrInvalidPhoneNumber)
	}

	optIn, err := s.optInRepo.ByTenantAndPhone(ctx, tenant.ID, phone)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to lookup opt-in", err)
	}

	now := utils.UTCNow()
	if optIn == nil {
		optIn = &models.OptIn{
			TenantID:    tenant.ID,
			PhoneNumber: phone,
			IsActive:    true,
			OptInAt:     now,
		}
		if err := s.optInRepo.Save(ctx, optIn); err != nil {
			return nil, NewBusinessError(CodeInternalError, "Failed to persist opt-in", err)
		}
	} else if !optIn.IsActive {
		optIn.IsActive = true
		optIn.OptInAt = now
		optIn.OptOutAt = nil
		if err := s.optInRepo.Update(ctx, optIn); err != nil {
			return nil, NewBusinessError(CodeInternalError, "Failed to reactivate opt-in", err)
		}
	}

	return toOptInDTO(optIn), nil
}

// OptOut deactivates consent; subsequent dispatches fail with NO_OPTIN
func (s *ConsentFlowImpl) OptOut(ctx context.Context, req *dto.OptOutRequest, metadata *ClientMetadata) (*dto.OptInDTO, error) {
	tenant, err := s.resolveTenant(ctx, req.TenantUUID)
	if err != nil {
		return nil, err
	}

	phone := utils.NormalizePhoneNumber(req.PhoneNumber)
	optIn, err := s.optInRepo.ByTenantAndPhone(ctx, tenant.ID, phone)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to lookup opt-in", err)
	}
	if optIn == nil {
		return nil, NewBusinessError("OPTIN_NOT_FOUND", "Opt-in record not found", ErrOptInNotFound)
	}

	if optIn.IsActive {
		now := utils.UTCNow()
		if err := s.optInRepo.Deactivate(ctx, tenant.ID, phone, now); err != nil {
			return nil, NewBusinessError(CodeInternalError, "Failed to deactivate opt-in", err)
		}
		optIn.IsActive = false
		optIn.OptOutAt = &now
	}

	return toOptInDTO(optIn), nil
}

// GetOptIn returns the consent record for a (tenant, phone) pair
func (s *ConsentFlowImpl) GetOptIn(ctx context.Context, tenantUUID, phoneNumber string) (*dto.OptInDTO, error) {
	tenant, err := s.resolveTenant(ctx, tenantUUID)
	if err != nil {
		return nil, err
	}

	phone := utils.NormalizePhoneNumber(phoneNumber)
	optIn, err := s.optInRepo.ByTenantAndPhone(ctx, tenant.ID, phone)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to lookup opt-in", err)
	}
	if optIn == nil {
		return nil, NewBusinessError("OPTIN_NOT_FOUND", "Opt-in record not found", ErrOptInNotFound)
	}
	return toOptInDTO(optIn), nil
}

func (s *ConsentFlowImpl) resolveTenant(ctx context.Context, tenantUUID string) (*models.Tenant, error) {
	tenant, err := s.tenantRepo.ByUUID(ctx, tenantUUID)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to lookup tenant", err)
	}
	if tenant == nil {
		return nil, NewBusinessError(CodeTenantNotFound, "Tenant not found", ErrTenantNotFound)
	}
	return tenant, nil
}

func toOptInDTO(o *models.OptIn) *dto.OptInDTO {
	out := &dto.OptInDTO{
		PhoneNumber:  o.PhoneNumber,
		IsActive:     o.IsActive,
		OptInAt:      o.OptInAt.Format(time.RFC3339),
		MessageCount: int(o.MessageCount),
	}
	if o.OptOutAt != nil {
		out.OptOutAt = o.OptOutAt.Format(time.RFC3339)
	}
	if o.LastMessageAt != nil {
		out.LastMessageAt = o.LastMessageAt.Format(time.RFC3339)
	}
	return out
}
