package services

import (
	"context"

	"chatboard/internal/channel"

	"github.com/google/uuid"
)

// ===========================================================================
// Message Service Interface
// Entry point cho mọi inbound event: bots có quyền từ chối trước,
// board placement chạy vô điều kiện cho mọi board của company
// ===========================================================================

// RouteResult kết quả định tuyến một inbound event
type RouteResult struct {
	// CompanyID company sở hữu channel instance
	CompanyID uuid.UUID

	// BotHandled có ít nhất một bot intercept message
	BotHandled bool

	// BoardsPlaced số boards đã nhận/merge chat
	BoardsPlaced int
}

// MessageService interface cho message routing
type MessageService interface {
	// ProcessInbound định tuyến một normalized inbound event
	// Thứ tự: bot interception (replies gửi đồng bộ) rồi board fan-out;
	// board placement không bao giờ bị skip dù bot đã xử lý trọn
	ProcessInbound(ctx context.Context, ev channel.InboundEvent) (*RouteResult, error)
}
