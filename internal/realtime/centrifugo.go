package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Centrifugo Client
// Publish realtime events to Centrifugo server
// Topics: board:{id}, room:{id}, chat:{key}, oven:{id}, sync:{board}:{instance}
// ===========================================================================

// Publisher interface for realtime events
type Publisher interface {
	// Publish sends an event payload to a topic
	Publish(topic string, event string, data interface{}) error
}

// ===========================================================================
// Topic helpers
// ===========================================================================

// BoardTopic topic cho cập nhật toàn board
func BoardTopic(boardID uuid.UUID) string {
	return fmt.Sprintf("board:%s", boardID)
}

// RoomTopic topic cho cập nhật một room
func RoomTopic(roomID uuid.UUID) string {
	return fmt.Sprintf("room:%s", roomID)
}

// ChatTopic topic cho sự kiện của một hội thoại (theo conversation key)
func ChatTopic(chatKey string) string {
	return fmt.Sprintf("chat:%s", chatKey)
}

// OvenTopic topic cho trạng thái một oven
func OvenTopic(ovenID uuid.UUID) string {
	return fmt.Sprintf("oven:%s", ovenID)
}

// SyncTopic topic cho tiến trình bulk sync board/instance
func SyncTopic(boardID, instanceID uuid.UUID) string {
	return fmt.Sprintf("sync:%s:%s", boardID, instanceID)
}

// ===========================================================================
// HTTP API client
// ===========================================================================

// CentrifugoClient implements Publisher
type CentrifugoClient struct {
	url    string
	apiKey string
	client *http.Client
	log    *zap.Logger
}

// NewCentrifugoClient creates a new Centrifugo client
func NewCentrifugoClient(url, apiKey string, log *zap.Logger) *CentrifugoClient {
	return &CentrifugoClient{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log,
	}
}

// publishRequest sends a request to Centrifugo API
type publishRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type publishParams struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

// envelope wraps every published payload with its event name
type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Publish sends an event payload to a topic
func (c *CentrifugoClient) Publish(topic string, event string, data interface{}) error {
	req := publishRequest{
		Method: "publish",
		Params: publishParams{
			Channel: topic,
			Data:    envelope{Event: event, Data: data},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", c.url+"/api", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "apikey "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Warn("centrifugo publish failed", zap.Error(err))
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("centrifugo publish bad status",
			zap.Int("status", resp.StatusCode),
			zap.String("topic", topic),
		)
		return fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	c.log.Debug("published to centrifugo",
		zap.String("topic", topic),
		zap.String("event", event),
	)

	return nil
}

// ===========================================================================
// Noop Publisher (for when Centrifugo is not configured)
// ===========================================================================

// NoopPublisher does nothing (used when realtime is disabled)
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (n *NoopPublisher) Publish(topic string, event string, data interface{}) error {
	return nil
}
