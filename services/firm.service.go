package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"brokerdesk/apperror"
	"brokerdesk/logger"
	"brokerdesk/models"
	"brokerdesk/stores"
)

type FirmService struct {
	stores *stores.Stores
}

func NewFirmService(db *gorm.DB) *FirmService {
	return &FirmService{stores: stores.New(db)}
}

// Create stores a new firm owned by createdBy.
func (s *FirmService) Create(ctx context.Context, input models.FirmInput, createdBy string) (*models.Firm, string, error) {
	if createdBy == "" {
		return nil, "", apperror.Validation("createdBy is required")
	}
	firm, err := input.ToFirm(createdBy)
	if err != nil {
		return nil, "", err
	}
	if err := s.stores.Firms.Create(ctx, firm); err != nil {
		return nil, "", err
	}
	logger.FromContext(ctx).Info("Firm created",
		zap.String("firm_id", firm.ID),
		zap.String("firm_type", string(firm.FirmType)),
	)
	return firm, fmt.Sprintf("Firm with name %s created successfully", firm.Name), nil
}

func (s *FirmService) Get(ctx context.Context, id string) (*models.Firm, error) {
	return s.stores.Firms.FindByID(ctx, id)
}

// List returns one page of firms matching filter and the number of matches.
func (s *FirmService) List(ctx context.Context, filter stores.FirmFilter, page stores.Page) ([]models.Firm, int64, error) {
	return s.stores.Firms.FindAll(ctx, filter, page)
}
