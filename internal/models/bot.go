package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Bot (Flow bot)
// Định nghĩa một bot hội thoại dạng graph: message nodes gửi đi,
// response nodes chờ khách trả lời. Trạng thái hội thoại đang chạy
// (active/paused) được lưu ngay trên model, giống original schema
// ===========================================================================

// NodeType loại node trong flow graph
type NodeType string

const (
	// NodeMessage node gửi nội dung đi
	NodeMessage NodeType = "message"

	// NodeResponse node chờ khách trả lời, value là giá trị cần match
	NodeResponse NodeType = "response"
)

// NodeMedia media đính kèm một message node
type NodeMedia struct {
	// URL địa chỉ file đã host
	URL string `json:"url"`

	// MimeType MIME type của file
	MimeType string `json:"mimetype"`

	// Type phân loại: audio, image, video, document
	Type string `json:"type"`

	// Name tên file
	Name string `json:"name,omitempty"`
}

// ActionKind loại side-effect action gắn trên message node
type ActionKind string

const (
	// ActionRouteChat tạo/định tuyến chat vào một board
	ActionRouteChat ActionKind = "board:room:chat:new"

	// ActionEndConversation kết thúc hội thoại với cooldown (pause)
	ActionEndConversation ActionKind = "bot:end"

	// ActionBlacklist thêm người gửi vào blacklist (chỉ kênh cloud)
	ActionBlacklist ActionKind = "cloud:blacklist:add"
)

// RouteChatSettings cấu hình cho ActionRouteChat
type RouteChatSettings struct {
	// BoardID board đích
	BoardID uuid.UUID `json:"board_id"`

	// RoomID room đích (nil = entry room)
	RoomID *uuid.UUID `json:"room_id,omitempty"`
}

// EndConversationSettings cấu hình cho ActionEndConversation
type EndConversationSettings struct {
	// CooldownMinutes thời gian pause sau khi kết thúc (0 = vô thời hạn)
	CooldownMinutes int `json:"cooldown_minutes"`
}

// NodeActionSpec một action gắn trên node, tagged theo Kind
// Mỗi kind có settings payload riêng; Misconfigured = true khi tham chiếu
// không còn hợp lệ (VD board đã bị xóa), khi đó action là no-op, không lỗi
type NodeActionSpec struct {
	// Kind loại action
	Kind ActionKind `json:"kind"`

	// Misconfigured action bị hỏng cấu hình, bỏ qua khi chạy
	Misconfigured bool `json:"misconfigured,omitempty"`

	// RouteChat settings cho ActionRouteChat
	RouteChat *RouteChatSettings `json:"route_chat,omitempty"`

	// EndConversation settings cho ActionEndConversation
	EndConversation *EndConversationSettings `json:"end_conversation,omitempty"`
}

// FlowNode một node trong flow graph
type FlowNode struct {
	// ID ID node, duy nhất trong graph
	ID string `json:"id"`

	// Type loại node (message/response)
	Type NodeType `json:"type"`

	// Value nội dung gửi đi (message) hoặc giá trị cần match (response)
	Value string `json:"value"`

	// Media media đính kèm (chỉ message node)
	Media *NodeMedia `json:"media,omitempty"`

	// Actions side-effects chạy sau khi gửi node này
	Actions []NodeActionSpec `json:"actions,omitempty"`

	// NextNodeID override node kế tiếp, bỏ qua edge traversal (cho phép loop)
	NextNodeID string `json:"next_node_id,omitempty"`
}

// IsMessage kiểm tra node là message node
func (n *FlowNode) IsMessage() bool { return n.Type == NodeMessage }

// IsResponse kiểm tra node là response node
func (n *FlowNode) IsResponse() bool { return n.Type == NodeResponse }

// FlowEdge cạnh có hướng source -> target
type FlowEdge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// FlowGraph directed graph của một bot
type FlowGraph struct {
	Nodes []FlowNode `json:"nodes"`
	Edges []FlowEdge `json:"edges"`
}

// Value implement driver.Valuer cho JSONB
func (g FlowGraph) Value() (driver.Value, error) {
	return json.Marshal(g)
}

// Scan implement sql.Scanner cho JSONB
func (g *FlowGraph) Scan(value interface{}) error {
	if value == nil {
		*g = FlowGraph{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, g)
}

// Node tìm node theo ID
func (g *FlowGraph) Node(id string) *FlowNode {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Root trả về node gốc (node đầu tiên của graph)
func (g *FlowGraph) Root() *FlowNode {
	if len(g.Nodes) == 0 {
		return nil
	}
	return &g.Nodes[0]
}

// ===========================================================================
// Trạng thái hội thoại
// ===========================================================================

// ActiveConversation vị trí hiện tại của một chat trong flow
// Deadline expiry/idle được lưu luôn ở đây để sweep dựng lại được
// working set từ storage sau khi process restart
type ActiveConversation struct {
	// ChatKey external conversation key (chat id hoặc phone)
	ChatKey string `json:"chat_key"`

	// Channel ref để gửi expiry/idle message khi deadline tới
	Channel ChannelRef `json:"channel"`

	// CurrentNodeID node hiện tại; rỗng = vừa trigger, chưa gửi root
	CurrentNodeID string `json:"current_node_id"`

	// StartedAt thời điểm bắt đầu (unix ms)
	StartedAt int64 `json:"started_at"`

	// LastInteraction lần tương tác cuối (unix ms)
	LastInteraction int64 `json:"last_interaction"`

	// ExpiresAt deadline hết hạn hội thoại (unix ms, 0 = không hết hạn)
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// IdleAt deadline nhắc khách đang im lặng (unix ms, 0 = không nhắc)
	IdleAt int64 `json:"idle_at,omitempty"`

	// IdleNotified đã gửi idle nudge cho vị trí hiện tại chưa
	IdleNotified bool `json:"idle_notified,omitempty"`
}

// ActiveConversations danh sách cho JSONB
type ActiveConversations []ActiveConversation

// Value implement driver.Valuer cho JSONB
func (a ActiveConversations) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal([]ActiveConversation{})
	}
	return json.Marshal(a)
}

// Scan implement sql.Scanner cho JSONB
func (a *ActiveConversations) Scan(value interface{}) error {
	if value == nil {
		*a = []ActiveConversation{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, a)
}

// PausedConversation chặn bot xử lý một chat đến khi hết hạn/unpause
type PausedConversation struct {
	// ChatKey external conversation key
	ChatKey string `json:"chat_key"`

	// ExpiresAt hết hạn pause (unix ms, nil = vô thời hạn)
	ExpiresAt *int64 `json:"expires_at,omitempty"`
}

// Expired kiểm tra pause đã hết hạn chưa (nil = không bao giờ)
func (p *PausedConversation) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.UnixMilli() >= *p.ExpiresAt
}

// PausedConversations danh sách cho JSONB
type PausedConversations []PausedConversation

// Value implement driver.Valuer cho JSONB
func (p PausedConversations) Value() (driver.Value, error) {
	if p == nil {
		return json.Marshal([]PausedConversation{})
	}
	return json.Marshal(p)
}

// Scan implement sql.Scanner cho JSONB
func (p *PausedConversations) Scan(value interface{}) error {
	if value == nil {
		*p = []PausedConversation{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, p)
}

// ChannelBinding gắn bot với một channel instance
type ChannelBinding struct {
	Kind       ChannelKind `json:"kind"`
	InstanceID uuid.UUID   `json:"instance_id"`
}

// ChannelBindings danh sách cho JSONB
type ChannelBindings []ChannelBinding

// Value implement driver.Valuer cho JSONB
func (c ChannelBindings) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal([]ChannelBinding{})
	}
	return json.Marshal(c)
}

// Scan implement sql.Scanner cho JSONB
func (c *ChannelBindings) Scan(value interface{}) error {
	if value == nil {
		*c = []ChannelBinding{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, c)
}

// ===========================================================================
// Bot model
// ===========================================================================

// Bot đại diện cho một flow bot
type Bot struct {
	BaseModel

	// CompanyID ID company sở hữu bot
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`

	// Name tên bot
	Name string `gorm:"size:255;not null" json:"name"`

	// Trigger trigger spec: các alternatives phân cách bằng dấu chấm phẩy
	Trigger string `gorm:"size:500;not null" json:"trigger"`

	// FuzzyThreshold ngưỡng fuzzy matching 0..1 (0 = so sánh exact)
	FuzzyThreshold float64 `gorm:"not null;default:0" json:"fuzzy_threshold"`

	// ExpiryMinutes hội thoại hết hạn sau bao nhiêu phút (0 = không)
	ExpiryMinutes int `gorm:"not null;default:0" json:"expiry_minutes"`

	// IdleMinutes nhắc khách im lặng sau bao nhiêu phút (0 = không)
	IdleMinutes int `gorm:"not null;default:0" json:"idle_minutes"`

	// ExpiryMessage nội dung báo hết hạn (rỗng = dùng mặc định)
	ExpiryMessage string `gorm:"size:500" json:"expiry_message,omitempty"`

	// IdleMessage nội dung idle nudge (rỗng = dùng mặc định)
	IdleMessage string `gorm:"size:500" json:"idle_message,omitempty"`

	// Triggered số lần bot được kích hoạt
	Triggered int64 `gorm:"not null;default:0" json:"triggered"`

	// Flow graph định nghĩa hội thoại
	Flow FlowGraph `gorm:"type:jsonb;not null;default:'{}'" json:"flow"`

	// ActiveOn các hội thoại đang chạy
	ActiveOn ActiveConversations `gorm:"type:jsonb;not null;default:'[]'" json:"active_on"`

	// PausedOn các chat đang bị pause
	PausedOn PausedConversations `gorm:"type:jsonb;not null;default:'[]'" json:"paused_on"`

	// Channels các channel instances bot này lắng nghe
	Channels ChannelBindings `gorm:"type:jsonb;not null;default:'[]'" json:"channels"`

	// Relations
	Company Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

// TableName trả về tên bảng
func (Bot) TableName() string {
	return "bots"
}

// ActiveConversationFor tìm hội thoại đang chạy theo chat key
// Trả về pointer vào slice để mutate tại chỗ
func (b *Bot) ActiveConversationFor(chatKey string) *ActiveConversation {
	for i := range b.ActiveOn {
		if b.ActiveOn[i].ChatKey == chatKey {
			return &b.ActiveOn[i]
		}
	}
	return nil
}

// StartConversation tạo hội thoại mới cho chat key, tăng triggered counter
// CurrentNodeID để rỗng: lượt advance đầu tiên sẽ phát root node
func (b *Bot) StartConversation(ref ChannelRef, now time.Time) *ActiveConversation {
	if existing := b.ActiveConversationFor(ref.ConversationKey()); existing != nil {
		return existing
	}

	conv := ActiveConversation{
		ChatKey:         ref.ConversationKey(),
		Channel:         ref,
		StartedAt:       now.UnixMilli(),
		LastInteraction: now.UnixMilli(),
	}
	b.ActiveOn = append(b.ActiveOn, conv)
	b.Triggered++
	return &b.ActiveOn[len(b.ActiveOn)-1]
}

// CloseConversation xóa hội thoại theo chat key, trả về true nếu có xóa
func (b *Bot) CloseConversation(chatKey string) bool {
	for i := range b.ActiveOn {
		if b.ActiveOn[i].ChatKey == chatKey {
			b.ActiveOn = append(b.ActiveOn[:i], b.ActiveOn[i+1:]...)
			return true
		}
	}
	return false
}

// RefreshDeadlines cập nhật deadline expiry/idle sau mỗi lượt tương tác
func (b *Bot) RefreshDeadlines(conv *ActiveConversation, now time.Time) {
	conv.LastInteraction = now.UnixMilli()
	conv.IdleNotified = false
	if b.ExpiryMinutes > 0 {
		conv.ExpiresAt = now.Add(time.Duration(b.ExpiryMinutes) * time.Minute).UnixMilli()
	}
	if b.IdleMinutes > 0 {
		conv.IdleAt = now.Add(time.Duration(b.IdleMinutes) * time.Minute).UnixMilli()
	}
}

// IsPaused kiểm tra chat có đang bị pause không (lazy expiry:
// pause đã hết hạn được coi như không tồn tại, không cần sweep)
func (b *Bot) IsPaused(chatKey string, now time.Time) bool {
	for i := range b.PausedOn {
		p := &b.PausedOn[i]
		if p.ChatKey == chatKey {
			return !p.Expired(now)
		}
	}
	return false
}

// Pause ghi nhận pause cho chat (duration 0 = vô thời hạn)
// và đóng hội thoại đang chạy nếu có
func (b *Bot) Pause(chatKey string, duration time.Duration, now time.Time) {
	b.Unpause(chatKey)
	paused := PausedConversation{ChatKey: chatKey}
	if duration > 0 {
		expiresAt := now.Add(duration).UnixMilli()
		paused.ExpiresAt = &expiresAt
	}
	b.PausedOn = append(b.PausedOn, paused)
	b.CloseConversation(chatKey)
}

// Unpause xóa pause record của chat, trả về true nếu có xóa
func (b *Bot) Unpause(chatKey string) bool {
	for i := range b.PausedOn {
		if b.PausedOn[i].ChatKey == chatKey {
			b.PausedOn = append(b.PausedOn[:i], b.PausedOn[i+1:]...)
			return true
		}
	}
	return false
}

// BoundTo kiểm tra bot có lắng nghe channel instance này không
func (b *Bot) BoundTo(kind ChannelKind, instanceID uuid.UUID) bool {
	for _, binding := range b.Channels {
		if binding.Kind == kind && binding.InstanceID == instanceID {
			return true
		}
	}
	return false
}

// MarkMisconfiguredActions đánh dấu misconfigured mọi route action trỏ
// đến board đã bị xóa. Trả về true nếu có thay đổi cần save
func (b *Bot) MarkMisconfiguredActions(boardID uuid.UUID) bool {
	changed := false
	for i := range b.Flow.Nodes {
		node := &b.Flow.Nodes[i]
		for j := range node.Actions {
			action := &node.Actions[j]
			if action.Kind == ActionRouteChat && action.RouteChat != nil && action.RouteChat.BoardID == boardID {
				action.RouteChat = &RouteChatSettings{}
				action.Misconfigured = true
				changed = true
			}
		}
	}
	return changed
}
