package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"chatboard/internal/channel"
	"chatboard/internal/dto"
	apperrors "chatboard/internal/errors"
	"chatboard/internal/middleware"
	"chatboard/internal/models"
	"chatboard/internal/repositories"
	"chatboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Webhook Handler
// Nhận events từ hai nguồn: Cloud API webhook (Graph) và waweb bridge
// Events không được xử lý trực tiếp mà đưa vào inbound queue để
// serialize theo từng hội thoại
// ===========================================================================

// WebhookHandler xử lý webhook endpoints
type WebhookHandler struct {
	registry         *channel.Registry
	instanceRepo     repositories.ChannelInstanceRepository
	queue            *services.InboundQueue
	cloudVerifyToken string
	logger           *zap.Logger
}

// NewWebhookHandler tạo handler mới
func NewWebhookHandler(
	registry *channel.Registry,
	instanceRepo repositories.ChannelInstanceRepository,
	queue *services.InboundQueue,
	cloudVerifyToken string,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		registry:         registry,
		instanceRepo:     instanceRepo,
		queue:            queue,
		cloudVerifyToken: cloudVerifyToken,
		logger:           logger,
	}
}

// ===========================================================================
// Cloud API Webhook (Graph)
// ===========================================================================

// cloudWebhookPayload payload của Graph webhook
type cloudWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value cloudChangeValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// cloudChangeValue một change trong webhook entry
type cloudChangeValue struct {
	Metadata struct {
		PhoneNumberID string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []struct {
		From      string `json:"from"`
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
		Type      string `json:"type"`
		Text      struct {
			Body string `json:"body"`
		} `json:"text"`
	} `json:"messages"`
	Statuses []struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		RecipientID string `json:"recipient_id"`
	} `json:"statuses"`
}

// CloudVerify xử lý GET verification handshake
// GET /webhook/cloud
func (h *WebhookHandler) CloudVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.cloudVerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}

	c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Invalid verify token"))
}

// CloudWebhook nhận messages/statuses từ Graph webhook
// POST /webhook/cloud
func (h *WebhookHandler) CloudWebhook(c *gin.Context) {
	requestID := middleware.GetRequestID(c)
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("BAD_REQUEST", "Cannot read body"))
		return
	}

	var payload cloudWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("BAD_REQUEST", "Invalid JSON"))
		return
	}

	signature := c.GetHeader("X-Hub-Signature-256")

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			instance, err := h.instanceByPhoneNumberID(ctx, value.Metadata.PhoneNumberID)
			if err != nil {
				h.logger.Warn("cloud webhook: unknown phone_number_id",
					zap.String("request_id", requestID),
					zap.String("phone_number_id", value.Metadata.PhoneNumberID),
				)
				continue
			}

			// Chữ ký phải khớp app secret của instance
			if !h.verifySignature(instance.ID, signature, body) {
				h.logger.Warn("cloud webhook: signature mismatch",
					zap.String("request_id", requestID),
					zap.String("instance_id", instance.ID.String()),
				)
				continue
			}

			for _, ev := range h.eventsFromChange(instance.ID, value) {
				h.queue.Enqueue(ev)
			}
		}
	}

	// Graph yêu cầu luôn trả 200, kể cả khi có entry lỗi
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// instanceByPhoneNumberID tìm cloud instance theo phone_number_id của Graph
func (h *WebhookHandler) instanceByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.ChannelInstance, error) {
	if phoneNumberID == "" {
		return nil, apperrors.ErrNotFound
	}
	instances, err := h.instanceRepo.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	for i := range instances {
		if instances[i].IsCloud() && instances[i].Credentials.PhoneNumberID == phoneNumberID {
			return &instances[i], nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// verifySignature xác thực chữ ký webhook qua adapter của instance
func (h *WebhookHandler) verifySignature(instanceID uuid.UUID, signature string, body []byte) bool {
	adapter, err := h.registry.Get(instanceID)
	if err != nil {
		return false
	}
	verifier, ok := adapter.(channel.SignatureVerifier)
	if !ok {
		return false
	}
	return verifier.Verify(signature, body)
}

// eventsFromChange chuyển một change value thành các inbound events
func (h *WebhookHandler) eventsFromChange(instanceID uuid.UUID, value cloudChangeValue) []channel.InboundEvent {
	var events []channel.InboundEvent

	names := make(map[string]string, len(value.Contacts))
	for _, contact := range value.Contacts {
		names[contact.WaID] = contact.Profile.Name
	}

	for _, msg := range value.Messages {
		ts, _ := strconv.ParseInt(msg.Timestamp, 10, 64)
		events = append(events, channel.InboundEvent{
			Type:       channel.EventMessage,
			Channel:    models.NewCloudRef(instanceID, msg.From),
			MessageID:  msg.ID,
			SenderName: names[msg.From],
			Text:       msg.Text.Body,
			Timestamp:  ts * 1000,
		})
	}

	for _, status := range value.Statuses {
		events = append(events, channel.InboundEvent{
			Type:      channel.EventAck,
			Channel:   models.NewCloudRef(instanceID, status.RecipientID),
			MessageID: status.ID,
			AckStatus: status.Status,
		})
	}

	return events
}

// ===========================================================================
// WAWeb Bridge Events
// ===========================================================================

// webEventPayload event chuẩn hóa từ waweb bridge
type webEventPayload struct {
	Type       string                `json:"type"` // message | ack
	MessageID  string                `json:"message_id"`
	ChatID     string                `json:"chat_id"`
	SenderName string                `json:"sender_name"`
	Text       string                `json:"text"`
	FromMe     bool                  `json:"from_me"`
	IsGroup    bool                  `json:"is_group"`
	ProfilePic string                `json:"profile_pic"`
	Timestamp  int64                 `json:"timestamp"`
	AckStatus  string                `json:"ack_status"`
	Media      *channel.InboundMedia `json:"media"`
}

// WebEvent nhận event từ waweb bridge
// POST /events/waweb/:instance_id
func (h *WebhookHandler) WebEvent(c *gin.Context) {
	ctx := c.Request.Context()

	instanceID, err := uuid.Parse(c.Param("instance_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid instance id"))
		return
	}

	instance, err := h.instanceRepo.FindByID(ctx, instanceID)
	if err != nil || !instance.IsWeb() {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Instance không tồn tại"))
		return
	}

	// Bridge phải gửi đúng token của instance
	if instance.Credentials.BridgeToken != "" && bearerToken(c) != instance.Credentials.BridgeToken {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Invalid bridge token"))
		return
	}

	var payload webEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	ev := channel.InboundEvent{
		Channel:    models.NewWebRef(instanceID, payload.ChatID),
		MessageID:  payload.MessageID,
		SenderName: payload.SenderName,
		Text:       payload.Text,
		Media:      payload.Media,
		Timestamp:  payload.Timestamp,
		FromMe:     payload.FromMe,
		IsGroup:    payload.IsGroup,
		ProfilePic: payload.ProfilePic,
	}
	switch payload.Type {
	case "ack":
		ev.Type = channel.EventAck
		ev.AckStatus = payload.AckStatus
	default:
		ev.Type = channel.EventMessage
	}

	h.queue.Enqueue(ev)

	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// bearerToken lấy bearer token từ Authorization header
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// ===========================================================================
// Route Registration
// ===========================================================================

// RegisterRoutes đăng ký webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhook := rg.Group("/webhook")
	{
		webhook.GET("/cloud", h.CloudVerify)
		webhook.POST("/cloud", h.CloudWebhook)
	}

	events := rg.Group("/events")
	{
		events.POST("/waweb/:instance_id", h.WebEvent)
	}
}
