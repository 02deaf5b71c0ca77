package channel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatboard/internal/models"
)

// ===========================================================================
// Web Channel
// Adapter nói chuyện với browser-automation bridge qua HTTP
// Bridge giữ phiên WhatsApp Web; adapter chỉ gửi lệnh và nhận danh sách chats
// Media phải inline base64 vì bridge không fetch URL ngoài
// ===========================================================================

// WebAdapter implements Adapter cho kênh WhatsApp Web
type WebAdapter struct {
	instance  *models.ChannelInstance
	staticDir string
	client    *http.Client
	logger    *zap.Logger
}

// NewWebAdapter tạo web adapter cho một instance
// staticDir là thư mục chứa media files đã upload (để inline base64)
func NewWebAdapter(instance *models.ChannelInstance, staticDir string, logger *zap.Logger) *WebAdapter {
	return &WebAdapter{
		instance:  instance,
		staticDir: staticDir,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// Kind trả về loại kênh
func (w *WebAdapter) Kind() models.ChannelKind {
	return models.ChannelWAWeb
}

// InstanceID trả về ID của channel instance
func (w *WebAdapter) InstanceID() string {
	return w.instance.ID.String()
}

// ===========================================================================
// Bridge payload structures
// ===========================================================================

// webSendRequest lệnh gửi tin cho bridge
type webSendRequest struct {
	ChatID string        `json:"chat_id"`
	Text   string        `json:"text,omitempty"`
	Media  *webMediaBody `json:"media,omitempty"`
}

// webMediaBody media inline base64
type webMediaBody struct {
	Data     string `json:"data"`
	MimeType string `json:"mimetype"`
	Name     string `json:"name,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// webSendResponse kết quả từ bridge
type webSendResponse struct {
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

// webChat một hội thoại trong danh sách của bridge
type webChat struct {
	ChatID      string `json:"chat_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	IsGroup     bool   `json:"is_group,omitempty"`
	ProfilePic  string `json:"profile_pic,omitempty"`
	UnreadCount int    `json:"unread_count"`
	LastMessage struct {
		ID        string `json:"id,omitempty"`
		Text      string `json:"text"`
		Author    string `json:"author,omitempty"`
		FromMe    bool   `json:"from_me,omitempty"`
		Timestamp int64  `json:"timestamp"`
	} `json:"last_message"`
}

// ===========================================================================
// Sending
// ===========================================================================

// SendText gửi tin nhắn text qua bridge
func (w *WebAdapter) SendText(ctx context.Context, ref models.ChannelRef, text string) (*SendResult, error) {
	return w.post(ctx, webSendRequest{ChatID: ref.ChatID, Text: text})
}

// SendMedia đọc file dưới static dir, inline base64 rồi gửi qua bridge
func (w *WebAdapter) SendMedia(ctx context.Context, ref models.ChannelRef, media *models.NodeMedia, caption string) (*SendResult, error) {
	data, err := w.inline(media.URL)
	if err != nil {
		return nil, fmt.Errorf("inline media: %w", err)
	}

	return w.post(ctx, webSendRequest{
		ChatID: ref.ChatID,
		Media: &webMediaBody{
			Data:     data,
			MimeType: media.MimeType,
			Name:     media.Name,
			Caption:  caption,
		},
	})
}

// inline đọc file local và encode base64
// Chỉ chấp nhận path nằm trong static dir, chặn path traversal
func (w *WebAdapter) inline(mediaURL string) (string, error) {
	rel := strings.TrimPrefix(mediaURL, "/static/")
	path := filepath.Join(w.staticDir, filepath.Clean("/"+rel))
	if !strings.HasPrefix(path, filepath.Clean(w.staticDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("media path ngoài static dir: %s", mediaURL)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// post gửi lệnh đến bridge /send
func (w *WebAdapter) post(ctx context.Context, payload webSendRequest) (*SendResult, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := strings.TrimRight(w.instance.Credentials.BridgeURL, "/") + "/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.instance.Credentials.BridgeToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		w.logger.Error("waweb send failed",
			zap.String("instance_id", w.InstanceID()),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("waweb bridge error: status %d", resp.StatusCode)
	}

	var parsed webSendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Timestamp == 0 {
		parsed.Timestamp = time.Now().UnixMilli()
	}

	w.logger.Debug("waweb message sent",
		zap.String("instance_id", w.InstanceID()),
		zap.String("chat_id", payload.ChatID),
		zap.String("message_id", parsed.MessageID),
	)

	return &SendResult{MessageID: parsed.MessageID, Timestamp: parsed.Timestamp}, nil
}

// ===========================================================================
// History
// ===========================================================================

// FetchHistory lấy danh sách hội thoại hiện có từ bridge
func (w *WebAdapter) FetchHistory(ctx context.Context, unreadOnly bool) ([]models.Chat, error) {
	endpoint := strings.TrimRight(w.instance.Credentials.BridgeURL, "/") + "/chats"
	if unreadOnly {
		endpoint += "?unread_only=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.instance.Credentials.BridgeToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("waweb bridge error: status %d, body %s", resp.StatusCode, string(body))
	}

	var raw []webChat
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal chats: %w", err)
	}

	chats := make([]models.Chat, 0, len(raw))
	for _, wc := range raw {
		phone := wc.Phone
		if phone == "" {
			phone = phoneFromChatID(wc.ChatID)
		}
		chats = append(chats, models.Chat{
			Name:        wc.Name,
			Phone:       phone,
			IsGroup:     wc.IsGroup,
			ProfilePic:  wc.ProfilePic,
			UnreadCount: wc.UnreadCount,
			LastMessage: models.MessageSnapshot{
				ID:        wc.LastMessage.ID,
				Text:      wc.LastMessage.Text,
				Author:    wc.LastMessage.Author,
				FromMe:    wc.LastMessage.FromMe,
				Timestamp: wc.LastMessage.Timestamp,
			},
			Channel: models.NewWebRef(w.instance.ID, wc.ChatID),
		})
	}

	w.logger.Info("waweb history fetched",
		zap.String("instance_id", w.InstanceID()),
		zap.Int("chats", len(chats)),
		zap.Bool("unread_only", unreadOnly),
	)

	return chats, nil
}

// phoneFromChatID tách số điện thoại từ chat ID dạng "5511999@c.us"
func phoneFromChatID(chatID string) string {
	if i := strings.IndexByte(chatID, '@'); i > 0 {
		return chatID[:i]
	}
	return chatID
}
