package repositories

import (
	"context"

	"chatboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Board Repository GORM Implementation
// Rooms/chats sống trong JSONB nên mọi write là whole-entity upsert
// ===========================================================================

// boardRepo triển khai BoardRepository với GORM
type boardRepo struct {
	db *gorm.DB
}

// NewBoardRepository tạo instance mới của BoardRepository
func NewBoardRepository(db *gorm.DB) BoardRepository {
	return &boardRepo{db: db}
}

// FindByID tìm board theo ID
func (r *boardRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	var board models.Board
	if err := r.db.WithContext(ctx).First(&board, id).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

// FindByCompany lấy danh sách boards trong company
func (r *boardRepo) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Board, error) {
	var boards []models.Board
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&boards).Error
	return boards, err
}

// Create tạo board mới
func (r *boardRepo) Create(ctx context.Context, board *models.Board) error {
	return r.db.WithContext(ctx).Create(board).Error
}

// Update cập nhật board (last writer wins)
func (r *boardRepo) Update(ctx context.Context, board *models.Board) error {
	return r.db.WithContext(ctx).Save(board).Error
}

// Delete soft delete board
func (r *boardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Board{}, id).Error
}
