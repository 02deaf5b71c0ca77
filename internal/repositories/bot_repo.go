package repositories

import (
	"context"

	"chatboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Bot Repository GORM Implementation
// Flow graph và conversation state sống trong JSONB, write là whole-entity
// ===========================================================================

// botRepo triển khai BotRepository với GORM
type botRepo struct {
	db *gorm.DB
}

// NewBotRepository tạo instance mới của BotRepository
func NewBotRepository(db *gorm.DB) BotRepository {
	return &botRepo{db: db}
}

// FindByID tìm bot theo ID
func (r *botRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Bot, error) {
	var bot models.Bot
	if err := r.db.WithContext(ctx).First(&bot, id).Error; err != nil {
		return nil, err
	}
	return &bot, nil
}

// FindByCompany lấy danh sách bots trong company
func (r *botRepo) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Bot, error) {
	var bots []models.Bot
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&bots).Error
	return bots, err
}

// FindAll lấy tất cả bots (cho sweep định kỳ)
func (r *botRepo) FindAll(ctx context.Context) ([]models.Bot, error) {
	var bots []models.Bot
	err := r.db.WithContext(ctx).Find(&bots).Error
	return bots, err
}

// Create tạo bot mới
func (r *botRepo) Create(ctx context.Context, bot *models.Bot) error {
	return r.db.WithContext(ctx).Create(bot).Error
}

// Update cập nhật bot (last writer wins)
func (r *botRepo) Update(ctx context.Context, bot *models.Bot) error {
	return r.db.WithContext(ctx).Save(bot).Error
}

// Delete soft delete bot
func (r *botRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Bot{}, id).Error
}
