package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
)

// OrganizationService stores the legal entities customers order on behalf of.
type OrganizationService struct {
	db *gorm.DB
}

// NewOrganizationService constructs OrganizationService.
func NewOrganizationService(db *gorm.DB) *OrganizationService {
	return &OrganizationService{db: db}
}

// Create stores an organization owned by userID.
func (s *OrganizationService) Create(ctx context.Context, userID uuid.UUID, in OrganizationInput) (*models.Organization, error) {
	organization := &models.Organization{
		UserID: &userID,
		Title:  strings.TrimSpace(in.Title),
		INN:    strings.TrimSpace(in.INN),
		KPP:    strings.TrimSpace(in.KPP),
	}
	if err := s.db.WithContext(ctx).Create(organization).Error; err != nil {
		return nil, err
	}
	return organization, nil
}

// ListForUser returns the organizations owned by userID, newest first.
func (s *OrganizationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	var organizations []models.Organization
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&organizations).Error
	return organizations, err
}
