package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ===========================================================================
// Request DTOs (Data Transfer Objects)
// Các struct dùng để validate và parse request body/query
// ===========================================================================

// PaginationRequest phân trang cho các API list
type PaginationRequest struct {
	// Page số trang hiện tại (bắt đầu từ 1)
	Page int `form:"page" binding:"min=0"`

	// Limit số record mỗi trang (tối đa 100)
	Limit int `form:"limit" binding:"min=0,max=100"`
}

// SetDefaults set giá trị mặc định cho pagination
func (p *PaginationRequest) SetDefaults() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
}

// Offset tính offset cho database query
func (p *PaginationRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ===========================================================================
// Auth Requests
// ===========================================================================

// LoginRequest request đăng nhập
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// RefreshRequest request refresh token (nếu không dùng cookie)
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ===========================================================================
// Board Requests
// ===========================================================================

// CreateBoardRequest request tạo board mới
type CreateBoardRequest struct {
	// Name tên board (bắt buộc)
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// CreateRoomRequest request thêm room vào board
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// SubscriptionInput một subscription trong request cập nhật
type SubscriptionInput struct {
	// Kind loại kênh: waweb hoặc cloud
	Kind string `json:"kind" binding:"required,oneof=waweb cloud"`

	// InstanceID channel instance
	InstanceID uuid.UUID `json:"instance_id" binding:"required"`

	// RoomID room đích cho chat mới (nil = entry room)
	RoomID *uuid.UUID `json:"room_id"`

	// UnreadOnly bulk import chỉ lấy hội thoại còn tin chưa đọc
	UnreadOnly bool `json:"unread_only"`
}

// UpdateSubscriptionsRequest request thay thế danh sách subscriptions
type UpdateSubscriptionsRequest struct {
	Subscriptions []SubscriptionInput `json:"subscriptions" binding:"dive"`
}

// TransferChatRequest request chuyển chat sang board/room khác
type TransferChatRequest struct {
	// TargetBoardID board đích
	TargetBoardID uuid.UUID `json:"target_board_id" binding:"required"`

	// TargetRoomID room đích (nil = entry room của board đích)
	TargetRoomID *uuid.UUID `json:"target_room_id"`

	// KeepCopy giữ bản sao ở board nguồn
	KeepCopy bool `json:"keep_copy"`
}

// ===========================================================================
// Bot Requests
// ===========================================================================

// CreateBotRequest request tạo bot mới
type CreateBotRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`

	// Trigger danh sách từ khóa kích hoạt, phân tách bằng ";"
	Trigger string `json:"trigger" binding:"required,max=500"`

	// FuzzyThreshold tỉ lệ fuzzy match cho phép, 0..1 (0 = exact)
	FuzzyThreshold float64 `json:"fuzzy_threshold" binding:"min=0,max=1"`

	// ExpiryMinutes hội thoại hết hạn sau bao nhiêu phút không tương tác
	ExpiryMinutes int `json:"expiry_minutes" binding:"min=0"`

	// IdleMinutes nhắc nhở sau bao nhiêu phút im lặng (0 = tắt)
	IdleMinutes int `json:"idle_minutes" binding:"min=0"`

	// ExpiryMessage tin nhắn khi hội thoại hết hạn (rỗng = mặc định)
	ExpiryMessage string `json:"expiry_message" binding:"max=1000"`

	// IdleMessage tin nhắn nhắc nhở (rỗng = mặc định)
	IdleMessage string `json:"idle_message" binding:"max=1000"`

	// Flow đồ thị hội thoại (nodes + edges), giữ nguyên raw để parse sau
	Flow json.RawMessage `json:"flow"`

	// Channels các channel instances bot lắng nghe
	Channels []ChannelBindingInput `json:"channels" binding:"dive"`
}

// ChannelBindingInput một binding kênh trong request
type ChannelBindingInput struct {
	Kind       string    `json:"kind" binding:"required,oneof=waweb cloud"`
	InstanceID uuid.UUID `json:"instance_id" binding:"required"`
}

// PauseBotRequest request tạm dừng bot cho một hội thoại
type PauseBotRequest struct {
	// ChatKey key hội thoại trên kênh gốc
	ChatKey string `json:"chat_key" binding:"required"`

	// CooldownMinutes tự bật lại sau bao nhiêu phút (0 = vô thời hạn)
	CooldownMinutes int `json:"cooldown_minutes" binding:"min=0"`
}

// UnpauseBotRequest request bật lại bot cho một hội thoại
type UnpauseBotRequest struct {
	ChatKey string `json:"chat_key" binding:"required"`
}

// ===========================================================================
// Oven Requests
// ===========================================================================

// CreateOvenRequest request tạo oven mới
type CreateOvenRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`

	// ChannelInstanceID cloud instance dùng để gửi
	ChannelInstanceID uuid.UUID `json:"channel_instance_id" binding:"required"`

	// BatchSize số tin mỗi chu kỳ
	BatchSize int `json:"batch_size" binding:"min=1,max=1000"`

	// FrequencyMinutes khoảng cách giữa hai chu kỳ
	FrequencyMinutes int `json:"frequency_minutes" binding:"min=1"`

	// BlacklistTrigger từ khóa opt-out
	BlacklistTrigger string `json:"blacklist_trigger" binding:"max=100"`
}

// QueueMessagesRequest request nạp tin vào queue
type QueueMessagesRequest struct {
	Messages []TemplateMessageInput `json:"messages" binding:"required,min=1,dive"`
}

// TemplateMessageInput một template message trong request
type TemplateMessageInput struct {
	To           string          `json:"to" binding:"required"`
	TemplateName string          `json:"template_name" binding:"required"`
	Language     string          `json:"language" binding:"required"`
	Components   json.RawMessage `json:"components"`
}

// SetPausedRequest request bật/tắt oven
type SetPausedRequest struct {
	Paused *bool `json:"paused" binding:"required"`
}

// BlacklistRequest request thêm/xóa số khỏi blacklist
type BlacklistRequest struct {
	Number string `json:"number" binding:"required"`
	Name   string `json:"name"`
}
