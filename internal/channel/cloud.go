package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatboard/internal/models"
)

// ===========================================================================
// Cloud Channel
// Adapter gửi tin nhắn qua WhatsApp Cloud API (Graph API)
// Media gửi dưới dạng hosted URL; lịch sử hội thoại không khả dụng trên
// API này nên FetchHistory trả về rỗng
// ===========================================================================

// CloudAdapter implements Adapter + TemplateSender cho WhatsApp Cloud API
type CloudAdapter struct {
	instance *models.ChannelInstance
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
}

// NewCloudAdapter tạo cloud adapter cho một instance
// baseURL là gốc Graph API (VD: "https://graph.facebook.com/v19.0")
func NewCloudAdapter(instance *models.ChannelInstance, baseURL string, logger *zap.Logger) *CloudAdapter {
	return &CloudAdapter{
		instance: instance,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

// Kind trả về loại kênh
func (c *CloudAdapter) Kind() models.ChannelKind {
	return models.ChannelCloud
}

// InstanceID trả về ID của channel instance
func (c *CloudAdapter) InstanceID() string {
	return c.instance.ID.String()
}

// ===========================================================================
// Graph API payload structures
// ===========================================================================

// cloudSendRequest request gửi tin qua /{phone_number_id}/messages
type cloudSendRequest struct {
	MessagingProduct string              `json:"messaging_product"`
	To               string              `json:"to"`
	Type             string              `json:"type"`
	Text             *cloudText          `json:"text,omitempty"`
	Image            *cloudMediaLink     `json:"image,omitempty"`
	Audio            *cloudMediaLink     `json:"audio,omitempty"`
	Video            *cloudMediaLink     `json:"video,omitempty"`
	Document         *cloudMediaLink     `json:"document,omitempty"`
	Template         *cloudTemplateBlock `json:"template,omitempty"`
}

type cloudText struct {
	Body string `json:"body"`
}

type cloudMediaLink struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type cloudTemplateBlock struct {
	Name       string          `json:"name"`
	Language   cloudLanguage   `json:"language"`
	Components json.RawMessage `json:"components,omitempty"`
}

type cloudLanguage struct {
	Code string `json:"code"`
}

// cloudSendResponse response từ Graph API
type cloudSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// ===========================================================================
// Sending
// ===========================================================================

// SendText gửi tin nhắn text
func (c *CloudAdapter) SendText(ctx context.Context, ref models.ChannelRef, text string) (*SendResult, error) {
	req := cloudSendRequest{
		MessagingProduct: "whatsapp",
		To:               ref.Phone,
		Type:             "text",
		Text:             &cloudText{Body: text},
	}
	return c.post(ctx, req)
}

// SendMedia gửi media dưới dạng hosted URL kèm caption
func (c *CloudAdapter) SendMedia(ctx context.Context, ref models.ChannelRef, media *models.NodeMedia, caption string) (*SendResult, error) {
	req := cloudSendRequest{
		MessagingProduct: "whatsapp",
		To:               ref.Phone,
	}
	link := &cloudMediaLink{Link: media.URL, Caption: caption}
	switch media.Type {
	case "image":
		req.Type, req.Image = "image", link
	case "audio":
		// Cloud API không nhận caption cho audio
		req.Type, req.Audio = "audio", &cloudMediaLink{Link: media.URL}
	case "video":
		req.Type, req.Video = "video", link
	default:
		req.Type, req.Document = "document", link
	}
	return c.post(ctx, req)
}

// SendTemplate gửi template message từ oven queue
func (c *CloudAdapter) SendTemplate(ctx context.Context, msg models.TemplateMessage) (*SendResult, error) {
	req := cloudSendRequest{
		MessagingProduct: "whatsapp",
		To:               msg.To,
		Type:             "template",
		Template: &cloudTemplateBlock{
			Name:       msg.TemplateName,
			Language:   cloudLanguage{Code: msg.Language},
			Components: msg.Components,
		},
	}
	return c.post(ctx, req)
}

// post gửi request đến /{phone_number_id}/messages và parse kết quả
func (c *CloudAdapter) post(ctx context.Context, payload cloudSendRequest) (*SendResult, error) {
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.instance.Credentials.PhoneNumberID)

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.instance.Credentials.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("cloud send failed",
			zap.String("instance_id", c.InstanceID()),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("cloud api error: status %d", resp.StatusCode)
	}

	var parsed cloudSendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result := &SendResult{Timestamp: time.Now().UnixMilli()}
	if len(parsed.Messages) > 0 {
		result.MessageID = parsed.Messages[0].ID
	}

	c.logger.Debug("cloud message sent",
		zap.String("instance_id", c.InstanceID()),
		zap.String("to", payload.To),
		zap.String("message_id", result.MessageID),
	)

	return result, nil
}

// ===========================================================================
// History
// ===========================================================================

// FetchHistory Cloud API không cung cấp lịch sử hội thoại; chats chỉ được
// tạo dần từ webhook inbound. Trả về rỗng, không lỗi
func (c *CloudAdapter) FetchHistory(ctx context.Context, unreadOnly bool) ([]models.Chat, error) {
	c.logger.Debug("cloud history not available, skipping import",
		zap.String("instance_id", c.InstanceID()),
	)
	return nil, nil
}

// ===========================================================================
// Verify - Xác thực webhook signature
// ===========================================================================

// Verify kiểm tra X-Hub-Signature-256 header (HMAC SHA-256 với app secret)
func (c *CloudAdapter) Verify(signature string, body []byte) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}

	expectedSig := signature[7:]

	mac := hmac.New(sha256.New, []byte(c.instance.Credentials.AppSecret))
	mac.Write(body)
	actualSig := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expectedSig), []byte(actualSig))
}
