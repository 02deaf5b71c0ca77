package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// ===========================================================================
// Board (Quadro kanban)
// Container định tuyến hội thoại theo company, chứa danh sách Rooms
// Mỗi Board khai báo subscriptions cho các channel instances mà nó nhận tin
// ===========================================================================

// ChannelKind loại kênh WhatsApp
type ChannelKind string

const (
	// ChannelWAWeb kênh browser-automation (WhatsApp Web client)
	ChannelWAWeb ChannelKind = "waweb"

	// ChannelCloud kênh WhatsApp Cloud/Graph API
	ChannelCloud ChannelKind = "cloud"
)

// ChannelRef tham chiếu đến một hội thoại trên đúng một kênh
// Tagged variant: ChatID chỉ dùng cho waweb, Phone chỉ dùng cho cloud,
// không bao giờ cả hai cùng có nghĩa. Luôn tạo qua NewWebRef/NewCloudRef.
type ChannelRef struct {
	// Kind loại kênh (waweb/cloud)
	Kind ChannelKind `json:"kind"`

	// InstanceID ID của channel instance
	InstanceID uuid.UUID `json:"instance_id"`

	// ChatID ID hội thoại trên WhatsApp Web (VD: "5511999@c.us") - chỉ waweb
	ChatID string `json:"chat_id,omitempty"`

	// Phone số điện thoại người gửi - chỉ cloud
	Phone string `json:"phone,omitempty"`
}

// NewWebRef tạo ChannelRef cho kênh waweb
func NewWebRef(instanceID uuid.UUID, chatID string) ChannelRef {
	return ChannelRef{Kind: ChannelWAWeb, InstanceID: instanceID, ChatID: chatID}
}

// NewCloudRef tạo ChannelRef cho kênh cloud
func NewCloudRef(instanceID uuid.UUID, phone string) ChannelRef {
	return ChannelRef{Kind: ChannelCloud, InstanceID: instanceID, Phone: phone}
}

// ConversationKey trả về external conversation key theo kênh
func (r ChannelRef) ConversationKey() string {
	if r.Kind == ChannelWAWeb {
		return r.ChatID
	}
	return r.Phone
}

// SameConversation kiểm tra hai refs có trỏ đến cùng một hội thoại không
func (r ChannelRef) SameConversation(other ChannelRef) bool {
	return r.Kind == other.Kind &&
		r.InstanceID == other.InstanceID &&
		r.ConversationKey() == other.ConversationKey()
}

// Valid kiểm tra ref có đầy đủ thông tin định tuyến không
func (r ChannelRef) Valid() bool {
	if r.InstanceID == uuid.Nil {
		return false
	}
	switch r.Kind {
	case ChannelWAWeb:
		return r.ChatID != ""
	case ChannelCloud:
		return r.Phone != ""
	}
	return false
}

// MessageSnapshot bản chụp tin nhắn cuối của một chat
type MessageSnapshot struct {
	// ID ID tin nhắn trên kênh gốc
	ID string `json:"id,omitempty"`

	// Text nội dung text
	Text string `json:"text"`

	// Author tên người gửi
	Author string `json:"author,omitempty"`

	// FromMe tin nhắn do chính instance gửi
	FromMe bool `json:"from_me,omitempty"`

	// Timestamp thời điểm gửi (unix milliseconds)
	Timestamp int64 `json:"timestamp"`
}

// Chat một hội thoại logic nằm trong Room
type Chat struct {
	// ID ID nội bộ
	ID uuid.UUID `json:"id"`

	// Name tên hiển thị
	Name string `json:"name"`

	// Phone số điện thoại
	Phone string `json:"phone,omitempty"`

	// IsGroup hội thoại nhóm
	IsGroup bool `json:"is_group,omitempty"`

	// ProfilePic URL avatar đã cache
	ProfilePic string `json:"profile_pic,omitempty"`

	// LastMessage bản chụp tin nhắn cuối
	LastMessage MessageSnapshot `json:"last_message"`

	// UnreadCount số tin chưa đọc
	UnreadCount int `json:"unread_count"`

	// Channel tham chiếu hội thoại trên kênh gốc
	Channel ChannelRef `json:"channel"`
}

// Merge cập nhật các trường mutable từ một snapshot mới
// Giữ nguyên ID và Channel: merge, không duplicate
func (c *Chat) Merge(incoming *Chat) {
	c.UnreadCount = incoming.UnreadCount
	c.LastMessage = incoming.LastMessage
	if incoming.ProfilePic != "" {
		c.ProfilePic = incoming.ProfilePic
	}
	if incoming.Name != "" {
		c.Name = incoming.Name
	}
}

// ApplyMessage cập nhật chat khi có tin nhắn mới đến
// Tin của chính instance (from_me) reset unread, tin của khách tăng unread
func (c *Chat) ApplyMessage(snapshot MessageSnapshot) {
	c.LastMessage = snapshot
	if snapshot.FromMe {
		c.UnreadCount = 0
	} else {
		c.UnreadCount++
	}
}

// ChatForward rule chuyển tiếp chat mới sang board/room khác
type ChatForward struct {
	// BoardID board đích
	BoardID uuid.UUID `json:"board_id"`

	// RoomID room đích (nil = entry room của board đích)
	RoomID *uuid.UUID `json:"room_id,omitempty"`
}

// Room một cột trong Board, chứa danh sách Chats (mới nhất trước)
type Room struct {
	// ID ID room
	ID uuid.UUID `json:"id"`

	// Name tên room
	Name string `json:"name"`

	// EntryPoint đánh dấu room nhận chat mới (informational)
	EntryPoint bool `json:"entry_point,omitempty"`

	// OnNewChat rule chuyển tiếp khi có chat mới (cross-board automation)
	OnNewChat *ChatForward `json:"on_new_chat,omitempty"`

	// Chats danh sách chats, sắp xếp theo hoạt động gần nhất
	Chats []Chat `json:"chats"`
}

// PushFront thêm chat vào đầu danh sách
func (r *Room) PushFront(chat Chat) {
	r.Chats = append([]Chat{chat}, r.Chats...)
}

// MoveToFront đưa chat lên đầu danh sách (khi có tin nhắn mới)
func (r *Room) MoveToFront(chatID uuid.UUID) {
	for i, c := range r.Chats {
		if c.ID == chatID {
			chat := r.Chats[i]
			r.Chats = append(r.Chats[:i], r.Chats[i+1:]...)
			r.Chats = append([]Chat{chat}, r.Chats...)
			return
		}
	}
}

// RemoveChat xóa chat theo ID, trả về true nếu có xóa
func (r *Room) RemoveChat(chatID uuid.UUID) bool {
	for i, c := range r.Chats {
		if c.ID == chatID {
			r.Chats = append(r.Chats[:i], r.Chats[i+1:]...)
			return true
		}
	}
	return false
}

// Rooms danh sách rooms, lưu JSONB như original schema
type Rooms []Room

// Value implement driver.Valuer cho JSONB
func (r Rooms) Value() (driver.Value, error) {
	if r == nil {
		return json.Marshal([]Room{})
	}
	return json.Marshal(r)
}

// Scan implement sql.Scanner cho JSONB
func (r *Rooms) Scan(value interface{}) error {
	if value == nil {
		*r = []Room{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, r)
}

// ChannelSubscription khai báo Board nhận traffic từ một channel instance
type ChannelSubscription struct {
	// Kind loại kênh
	Kind ChannelKind `json:"kind"`

	// InstanceID ID channel instance
	InstanceID uuid.UUID `json:"instance_id"`

	// RoomID room đích cho chat mới (nil = entry room)
	RoomID *uuid.UUID `json:"room_id,omitempty"`

	// UnreadOnly khi bulk import chỉ lấy hội thoại còn tin chưa đọc
	UnreadOnly bool `json:"unread_only,omitempty"`
}

// Subscriptions danh sách subscriptions cho JSONB
type Subscriptions []ChannelSubscription

// Value implement driver.Valuer cho JSONB
func (s Subscriptions) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]ChannelSubscription{})
	}
	return json.Marshal(s)
}

// Scan implement sql.Scanner cho JSONB
func (s *Subscriptions) Scan(value interface{}) error {
	if value == nil {
		*s = []ChannelSubscription{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, s)
}

// Board đại diện cho một quadro kanban
type Board struct {
	BaseModel

	// CompanyID ID company sở hữu board
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`

	// Name tên board
	Name string `gorm:"size:255;not null" json:"name"`

	// EntryRoomID room mặc định nhận chat mới
	EntryRoomID uuid.UUID `gorm:"type:uuid;not null" json:"entry_room_id"`

	// Rooms danh sách rooms (JSONB, giữ thứ tự)
	Rooms Rooms `gorm:"type:jsonb;not null;default:'[]'" json:"rooms"`

	// Subscriptions các channel instances board này nhận tin
	Subscriptions Subscriptions `gorm:"type:jsonb;not null;default:'[]'" json:"subscriptions"`

	// Relations
	Company Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

// TableName trả về tên bảng
func (Board) TableName() string {
	return "boards"
}

// Room tìm room theo ID, trả về pointer vào slice để mutate tại chỗ
func (b *Board) Room(id uuid.UUID) *Room {
	for i := range b.Rooms {
		if b.Rooms[i].ID == id {
			return &b.Rooms[i]
		}
	}
	return nil
}

// EntryRoom trả về entry room; nếu entry_room_id không còn tồn tại
// (board bị sửa tay) thì dùng room đầu tiên
func (b *Board) EntryRoom() *Room {
	if room := b.Room(b.EntryRoomID); room != nil {
		return room
	}
	if len(b.Rooms) > 0 {
		return &b.Rooms[0]
	}
	return nil
}

// ResolveRoom trả về room theo ID với fallback về entry room
// Đây là fallback có chủ đích: room_id cũ trong subscription/forward
// không được làm hỏng việc định tuyến
func (b *Board) ResolveRoom(id *uuid.UUID) *Room {
	if id != nil {
		if room := b.Room(*id); room != nil {
			return room
		}
	}
	return b.EntryRoom()
}

// SubscriptionFor tìm subscription khớp với channel instance của ref
func (b *Board) SubscriptionFor(ref ChannelRef) *ChannelSubscription {
	for i := range b.Subscriptions {
		sub := &b.Subscriptions[i]
		if sub.Kind == ref.Kind && sub.InstanceID == ref.InstanceID {
			return sub
		}
	}
	return nil
}

// FindChat tìm chat theo channel ref trong tất cả rooms
// Trả về room chứa chat và pointer vào chat đó
func (b *Board) FindChat(ref ChannelRef) (*Room, *Chat) {
	for i := range b.Rooms {
		room := &b.Rooms[i]
		for j := range room.Chats {
			if room.Chats[j].Channel.SameConversation(ref) {
				return room, &room.Chats[j]
			}
		}
	}
	return nil, nil
}

// RemoveInstanceChats xóa mọi chat thuộc một channel instance ("unsync")
// Trả về số chat đã xóa
func (b *Board) RemoveInstanceChats(instanceID uuid.UUID) int {
	removed := 0
	for i := range b.Rooms {
		room := &b.Rooms[i]
		kept := room.Chats[:0]
		for _, chat := range room.Chats {
			if chat.Channel.InstanceID == instanceID {
				removed++
				continue
			}
			kept = append(kept, chat)
		}
		room.Chats = kept
	}
	return removed
}

// AddRoom thêm room mới vào cuối danh sách
func (b *Board) AddRoom(name string) *Room {
	room := Room{ID: uuid.New(), Name: name, Chats: []Chat{}}
	b.Rooms = append(b.Rooms, room)
	return &b.Rooms[len(b.Rooms)-1]
}

// DeleteRoom xóa room theo ID; không cho xóa entry room
func (b *Board) DeleteRoom(id uuid.UUID) bool {
	if id == b.EntryRoomID {
		return false
	}
	for i := range b.Rooms {
		if b.Rooms[i].ID == id {
			b.Rooms = append(b.Rooms[:i], b.Rooms[i+1:]...)
			return true
		}
	}
	return false
}
