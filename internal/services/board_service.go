package services

import (
	"context"

	"chatboard/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Board Service Interface
// Định tuyến chat vào boards/rooms: merge-or-create, subscription gate,
// forwarding, bulk sync/unsync, transfer/clone
// ===========================================================================

// PlacementResult kết quả đặt một chat vào board
type PlacementResult struct {
	// Placed chat đã được đặt/merge vào board
	Placed bool

	// Created chat mới được tạo (false = merge vào chat có sẵn)
	Created bool

	// RoomID room chứa chat sau khi đặt
	RoomID uuid.UUID

	// ChatID ID chat sau khi đặt
	ChatID uuid.UUID
}

// BoardService interface cho chat registry
type BoardService interface {
	// CreateBoard tạo board mới với một entry room tự sinh
	CreateBoard(ctx context.Context, companyID uuid.UUID, name string) (*models.Board, error)

	// GetBoard lấy board theo ID
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)

	// ListBoards lấy danh sách boards của company
	ListBoards(ctx context.Context, companyID uuid.UUID) ([]models.Board, error)

	// DeleteBoard xóa board, unsync consumers và đánh dấu misconfigured
	// các bot actions tham chiếu board này
	DeleteBoard(ctx context.Context, id uuid.UUID) error

	// AddRoom thêm room vào board
	AddRoom(ctx context.Context, boardID uuid.UUID, name string) (*models.Board, error)

	// DeleteRoom xóa room (không cho xóa entry room)
	DeleteRoom(ctx context.Context, boardID, roomID uuid.UUID) error

	// HandleMessage đặt/merge một chat snapshot vào board
	// Board không subscribe instance của chat thì message bị bỏ qua im lặng
	HandleMessage(ctx context.Context, board *models.Board, incoming models.Chat) (*PlacementResult, error)

	// HandleSubscriptionChange diff subscriptions: unsync chats của
	// subscription bị gỡ, bulk import cho subscription mới thêm
	HandleSubscriptionChange(ctx context.Context, boardID uuid.UUID, subs models.Subscriptions) error

	// TransferChat chuyển (hoặc clone khi keepCopy) một chat sang board/room khác
	TransferChat(ctx context.Context, srcBoardID uuid.UUID, chatID uuid.UUID, dstBoardID uuid.UUID, dstRoomID *uuid.UUID, keepCopy bool) error

	// RouteChat tạo/định tuyến hội thoại của ref vào board đích (node action)
	RouteChat(ctx context.Context, boardID uuid.UUID, roomID *uuid.UUID, ref models.ChannelRef, senderName string) error
}
