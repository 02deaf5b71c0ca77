package repositories

import (
	"context"

	"chatboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// ChannelInstance Repository GORM Implementation
// ===========================================================================

// instanceRepo triển khai ChannelInstanceRepository với GORM
type instanceRepo struct {
	db *gorm.DB
}

// NewChannelInstanceRepository tạo instance mới của ChannelInstanceRepository
func NewChannelInstanceRepository(db *gorm.DB) ChannelInstanceRepository {
	return &instanceRepo{db: db}
}

// FindByID tìm instance theo ID
func (r *instanceRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ChannelInstance, error) {
	var instance models.ChannelInstance
	if err := r.db.WithContext(ctx).First(&instance, id).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// FindByCompany lấy danh sách instances trong company
func (r *instanceRepo) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.ChannelInstance, error) {
	var instances []models.ChannelInstance
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&instances).Error
	return instances, err
}

// FindActive lấy tất cả instances đang active (mọi company)
func (r *instanceRepo) FindActive(ctx context.Context) ([]models.ChannelInstance, error) {
	var instances []models.ChannelInstance
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&instances).Error
	return instances, err
}

// Create tạo instance mới
func (r *instanceRepo) Create(ctx context.Context, instance *models.ChannelInstance) error {
	return r.db.WithContext(ctx).Create(instance).Error
}

// Update cập nhật instance
func (r *instanceRepo) Update(ctx context.Context, instance *models.ChannelInstance) error {
	return r.db.WithContext(ctx).Save(instance).Error
}

// Delete soft delete instance
func (r *instanceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ChannelInstance{}, id).Error
}
