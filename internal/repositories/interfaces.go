package repositories

import (
	"context"

	"chatboard/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Company Repository Interface
// Quản lý CRUD cho companies (tenants)
// ===========================================================================

// CompanyRepository interface cho company data access
type CompanyRepository interface {
	// FindByID tìm company theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.Company, error)

	// FindBySlug tìm company theo slug
	FindBySlug(ctx context.Context, slug string) (*models.Company, error)

	// Create tạo company mới
	Create(ctx context.Context, company *models.Company) error

	// Update cập nhật company
	Update(ctx context.Context, company *models.Company) error
}

// ===========================================================================
// User Repository Interface
// Quản lý CRUD cho users
// ===========================================================================

// UserRepository interface cho user data access
type UserRepository interface {
	// FindByID tìm user theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// FindByEmail tìm user theo email trong company
	FindByEmail(ctx context.Context, companyID uuid.UUID, email string) (*models.User, error)

	// FindByCompany lấy danh sách users trong company
	FindByCompany(ctx context.Context, companyID uuid.UUID, opts FindOptions) ([]models.User, int64, error)

	// Create tạo user mới
	Create(ctx context.Context, user *models.User) error

	// Update cập nhật user
	Update(ctx context.Context, user *models.User) error
}

// ===========================================================================
// ChannelInstance Repository Interface
// Quản lý CRUD cho channel instances
// ===========================================================================

// ChannelInstanceRepository interface cho channel instance data access
type ChannelInstanceRepository interface {
	// FindByID tìm instance theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.ChannelInstance, error)

	// FindByCompany lấy danh sách instances trong company
	FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.ChannelInstance, error)

	// FindActive lấy tất cả instances đang active (mọi company)
	FindActive(ctx context.Context) ([]models.ChannelInstance, error)

	// Create tạo instance mới
	Create(ctx context.Context, instance *models.ChannelInstance) error

	// Update cập nhật instance
	Update(ctx context.Context, instance *models.ChannelInstance) error

	// Delete soft delete instance
	Delete(ctx context.Context, id uuid.UUID) error
}

// ===========================================================================
// Board Repository Interface
// Quản lý CRUD cho boards
// ===========================================================================

// BoardRepository interface cho board data access
type BoardRepository interface {
	// FindByID tìm board theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.Board, error)

	// FindByCompany lấy danh sách boards trong company
	FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Board, error)

	// Create tạo board mới
	Create(ctx context.Context, board *models.Board) error

	// Update cập nhật board (whole-entity upsert, last writer wins)
	Update(ctx context.Context, board *models.Board) error

	// Delete soft delete board
	Delete(ctx context.Context, id uuid.UUID) error
}

// ===========================================================================
// Bot Repository Interface
// Quản lý CRUD cho bots
// ===========================================================================

// BotRepository interface cho bot data access
type BotRepository interface {
	// FindByID tìm bot theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.Bot, error)

	// FindByCompany lấy danh sách bots trong company
	FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Bot, error)

	// FindAll lấy tất cả bots (cho sweep định kỳ)
	FindAll(ctx context.Context) ([]models.Bot, error)

	// Create tạo bot mới
	Create(ctx context.Context, bot *models.Bot) error

	// Update cập nhật bot (whole-entity upsert, last writer wins)
	Update(ctx context.Context, bot *models.Bot) error

	// Delete soft delete bot
	Delete(ctx context.Context, id uuid.UUID) error
}

// ===========================================================================
// Oven Repository Interface
// Quản lý CRUD cho ovens
// ===========================================================================

// OvenRepository interface cho oven data access
type OvenRepository interface {
	// FindByID tìm oven theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.Oven, error)

	// FindByCompany lấy danh sách ovens trong company
	FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Oven, error)

	// FindByInstance tìm oven theo channel instance
	FindByInstance(ctx context.Context, instanceID uuid.UUID) (*models.Oven, error)

	// FindAll lấy tất cả ovens (cho bake sweep định kỳ)
	FindAll(ctx context.Context) ([]models.Oven, error)

	// Create tạo oven mới
	Create(ctx context.Context, oven *models.Oven) error

	// Update cập nhật oven (whole-entity upsert, last writer wins)
	Update(ctx context.Context, oven *models.Oven) error

	// Delete soft delete oven
	Delete(ctx context.Context, id uuid.UUID) error
}
