package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatboard/internal/models"
)

// ===========================================================================
// MockAdapter là channel adapter dùng để testing
// Không cần bridge hay Cloud API thật, lưu lại mọi tin đã "gửi"
// ===========================================================================

// SentMessage một tin đã gửi qua mock adapter
type SentMessage struct {
	Ref      models.ChannelRef
	Text     string
	Media    *models.NodeMedia
	Caption  string
	Template *models.TemplateMessage
	SentAt   time.Time
}

// MockAdapter implement Adapter + TemplateSender cho mục đích testing
type MockAdapter struct {
	logger     *zap.Logger
	kind       models.ChannelKind
	instanceID uuid.UUID

	mu sync.Mutex

	// sent lưu các tin nhắn đã "gửi" (để verify trong tests)
	sent []SentMessage

	// History danh sách chats FetchHistory trả về
	History []models.Chat

	// FailSends khi true, mọi lệnh gửi trả về lỗi
	FailSends bool
}

// NewMockAdapter tạo một MockAdapter mới
func NewMockAdapter(kind models.ChannelKind, instanceID uuid.UUID, logger *zap.Logger) *MockAdapter {
	return &MockAdapter{
		logger:     logger,
		kind:       kind,
		instanceID: instanceID,
		sent:       make([]SentMessage, 0),
	}
}

// Kind trả về loại kênh được giả lập
func (m *MockAdapter) Kind() models.ChannelKind {
	return m.kind
}

// InstanceID trả về ID của channel instance
func (m *MockAdapter) InstanceID() string {
	return m.instanceID.String()
}

// SendText "gửi" tin text (chỉ log và lưu lại)
func (m *MockAdapter) SendText(ctx context.Context, ref models.ChannelRef, text string) (*SendResult, error) {
	return m.record(SentMessage{Ref: ref, Text: text})
}

// SendMedia "gửi" media (chỉ log và lưu lại)
func (m *MockAdapter) SendMedia(ctx context.Context, ref models.ChannelRef, media *models.NodeMedia, caption string) (*SendResult, error) {
	return m.record(SentMessage{Ref: ref, Media: media, Caption: caption})
}

// SendTemplate "gửi" template message (chỉ log và lưu lại)
func (m *MockAdapter) SendTemplate(ctx context.Context, msg models.TemplateMessage) (*SendResult, error) {
	tmpl := msg
	return m.record(SentMessage{
		Ref:      models.NewCloudRef(m.instanceID, msg.To),
		Template: &tmpl,
	})
}

// FetchHistory trả về danh sách chats đã cấu hình sẵn
func (m *MockAdapter) FetchHistory(ctx context.Context, unreadOnly bool) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSends {
		return nil, fmt.Errorf("mock adapter: history unavailable")
	}

	if !unreadOnly {
		return append([]models.Chat(nil), m.History...), nil
	}
	filtered := make([]models.Chat, 0, len(m.History))
	for _, chat := range m.History {
		if chat.UnreadCount > 0 {
			filtered = append(filtered, chat)
		}
	}
	return filtered, nil
}

// record lưu tin đã gửi và trả về kết quả giả
func (m *MockAdapter) record(msg SentMessage) (*SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSends {
		return nil, fmt.Errorf("mock adapter: send failed")
	}

	msg.SentAt = time.Now()
	m.sent = append(m.sent, msg)

	messageID := fmt.Sprintf("mock_sent_%d", len(m.sent))
	m.logger.Debug("mock adapter: đã gửi tin nhắn",
		zap.String("conversation", msg.Ref.ConversationKey()),
		zap.String("message_id", messageID),
	)

	return &SendResult{MessageID: messageID, Timestamp: msg.SentAt.UnixMilli()}, nil
}

// ===========================================================================
// Testing helpers
// ===========================================================================

// Sent trả về bản copy danh sách tin đã gửi
func (m *MockAdapter) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}

// LastSent trả về tin cuối cùng đã gửi, nil nếu chưa gửi gì
func (m *MockAdapter) LastSent() *SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	last := m.sent[len(m.sent)-1]
	return &last
}

// ClearSent xóa danh sách tin đã gửi
func (m *MockAdapter) ClearSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = m.sent[:0]
}
