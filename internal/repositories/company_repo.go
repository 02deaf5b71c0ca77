package repositories

import (
	"context"

	"chatboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Company Repository GORM Implementation
// ===========================================================================

// companyRepo triển khai CompanyRepository với GORM
type companyRepo struct {
	db *gorm.DB
}

// NewCompanyRepository tạo instance mới của CompanyRepository
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepo{db: db}
}

// FindByID tìm company theo ID
func (r *companyRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).First(&company, id).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

// FindBySlug tìm company theo slug
func (r *companyRepo) FindBySlug(ctx context.Context, slug string) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

// Create tạo company mới
func (r *companyRepo) Create(ctx context.Context, company *models.Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}

// Update cập nhật company
func (r *companyRepo) Update(ctx context.Context, company *models.Company) error {
	return r.db.WithContext(ctx).Save(company).Error
}
