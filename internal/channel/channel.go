package channel

import (
	"context"

	"chatboard/internal/models"
)

// ===========================================================================
// Các interfaces cho hệ thống channel messaging
// Adapter là cổng gửi/nhận cho đúng một channel instance đã kết nối
// (một phiên WhatsApp Web hoặc một số Cloud API)
// ===========================================================================

// EventType loại sự kiện inbound
type EventType string

const (
	// EventMessage tin nhắn mới từ khách
	EventMessage EventType = "message"

	// EventAck cập nhật trạng thái giao nhận của tin đã gửi
	EventAck EventType = "ack"
)

// InboundMedia media đính kèm một inbound event
type InboundMedia struct {
	// URL địa chỉ download hoặc data URI
	URL string `json:"url"`

	// MimeType MIME type
	MimeType string `json:"mimetype"`

	// Type phân loại: audio, image, video, document
	Type string `json:"type"`

	// Name tên file
	Name string `json:"name,omitempty"`
}

// InboundEvent sự kiện chuẩn hóa từ một channel, bất kể kênh nào
type InboundEvent struct {
	// Type loại sự kiện (message/ack)
	Type EventType `json:"type"`

	// Channel ref trỏ đến hội thoại nguồn
	Channel models.ChannelRef `json:"channel"`

	// MessageID ID tin nhắn trên kênh gốc
	MessageID string `json:"message_id,omitempty"`

	// SenderName tên hiển thị người gửi
	SenderName string `json:"sender_name,omitempty"`

	// Text nội dung text
	Text string `json:"text"`

	// Media media đính kèm nếu có
	Media *InboundMedia `json:"media,omitempty"`

	// Timestamp thời điểm gửi (unix ms)
	Timestamp int64 `json:"timestamp"`

	// FromMe sự kiện do chính instance phát ra
	FromMe bool `json:"from_me,omitempty"`

	// IsGroup hội thoại nhóm
	IsGroup bool `json:"is_group,omitempty"`

	// ProfilePic URL avatar người gửi nếu kênh cung cấp
	ProfilePic string `json:"profile_pic,omitempty"`

	// AckStatus trạng thái giao nhận (chỉ EventAck): sent, delivered, read
	AckStatus string `json:"ack_status,omitempty"`
}

// SendResult kết quả gửi tin nhắn
type SendResult struct {
	// MessageID ID tin nhắn được kênh tạo ra
	MessageID string

	// Timestamp thời điểm gửi (unix ms)
	Timestamp int64
}

// ===========================================================================
// Interfaces chính
// ===========================================================================

// Adapter cổng gửi/nhận cho một channel instance
// Mỗi kind (waweb/cloud) có implementation riêng, giữ credentials của instance
type Adapter interface {
	// Kind trả về loại kênh
	Kind() models.ChannelKind

	// InstanceID trả về ID của channel instance
	InstanceID() string

	// SendText gửi tin nhắn text đến hội thoại của ref
	SendText(ctx context.Context, ref models.ChannelRef, text string) (*SendResult, error)

	// SendMedia gửi media kèm caption đến hội thoại của ref
	SendMedia(ctx context.Context, ref models.ChannelRef, media *models.NodeMedia, caption string) (*SendResult, error)

	// FetchHistory lấy danh sách hội thoại hiện có trên instance
	// (dùng cho bulk import khi board subscribe instance)
	FetchHistory(ctx context.Context, unreadOnly bool) ([]models.Chat, error)
}

// TemplateSender gửi template message đã duyệt (chỉ kênh cloud)
type TemplateSender interface {
	// SendTemplate gửi một template message từ oven queue
	SendTemplate(ctx context.Context, msg models.TemplateMessage) (*SendResult, error)
}

// SignatureVerifier xác thực chữ ký webhook
// Đảm bảo webhook đến từ đúng nguồn và không bị tamper
type SignatureVerifier interface {
	// Verify kiểm tra chữ ký của request
	// signature là giá trị từ header (X-Hub-Signature-256)
	// body là raw body của request
	Verify(signature string, body []byte) bool
}
