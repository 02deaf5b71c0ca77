package repositories

import (
	"context"

	"chatboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Oven Repository GORM Implementation
// ===========================================================================

// ovenRepo triển khai OvenRepository với GORM
type ovenRepo struct {
	db *gorm.DB
}

// NewOvenRepository tạo instance mới của OvenRepository
func NewOvenRepository(db *gorm.DB) OvenRepository {
	return &ovenRepo{db: db}
}

// FindByID tìm oven theo ID
func (r *ovenRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Oven, error) {
	var oven models.Oven
	if err := r.db.WithContext(ctx).First(&oven, id).Error; err != nil {
		return nil, err
	}
	return &oven, nil
}

// FindByCompany lấy danh sách ovens trong company
func (r *ovenRepo) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Oven, error) {
	var ovens []models.Oven
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&ovens).Error
	return ovens, err
}

// FindByInstance tìm oven theo channel instance
func (r *ovenRepo) FindByInstance(ctx context.Context, instanceID uuid.UUID) (*models.Oven, error) {
	var oven models.Oven
	err := r.db.WithContext(ctx).
		Where("channel_instance_id = ?", instanceID).
		First(&oven).Error
	if err != nil {
		return nil, err
	}
	return &oven, nil
}

// FindAll lấy tất cả ovens (cho bake sweep định kỳ)
func (r *ovenRepo) FindAll(ctx context.Context) ([]models.Oven, error) {
	var ovens []models.Oven
	err := r.db.WithContext(ctx).Find(&ovens).Error
	return ovens, err
}

// Create tạo oven mới
func (r *ovenRepo) Create(ctx context.Context, oven *models.Oven) error {
	return r.db.WithContext(ctx).Create(oven).Error
}

// Update cập nhật oven (last writer wins)
func (r *ovenRepo) Update(ctx context.Context, oven *models.Oven) error {
	return r.db.WithContext(ctx).Save(oven).Error
}

// Delete soft delete oven
func (r *ovenRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Oven{}, id).Error
}
