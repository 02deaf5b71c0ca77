package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// ChannelInstance (Kết nối kênh WhatsApp)
// Đại diện cho một kết nối: WhatsApp Web (browser automation) hoặc
// WhatsApp Cloud API. Mỗi company có thể có nhiều instances
// ===========================================================================

// InstanceCredentials thông tin xác thực cho từng loại kênh
// QUAN TRỌNG: Không bao giờ expose trong JSON response
type InstanceCredentials struct {
	// Cloud (Graph API) credentials
	AccessToken   string `json:"access_token,omitempty"`
	PhoneNumberID string `json:"phone_number_id,omitempty"`
	BusinessID    string `json:"business_id,omitempty"`
	AppSecret     string `json:"app_secret,omitempty"`

	// WAWeb bridge credentials
	BridgeURL   string `json:"bridge_url,omitempty"`
	BridgeToken string `json:"bridge_token,omitempty"`

	// Common
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Value implement driver.Valuer cho JSONB
func (c InstanceCredentials) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implement sql.Scanner cho JSONB
func (c *InstanceCredentials) Scan(value interface{}) error {
	if value == nil {
		*c = InstanceCredentials{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, c)
}

// ChannelInstance đại diện cho một kết nối kênh
type ChannelInstance struct {
	BaseModel

	// CompanyID ID company sở hữu instance
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`

	// Kind loại kênh (waweb/cloud)
	Kind ChannelKind `gorm:"size:20;not null" json:"kind"`

	// Name tên hiển thị (VD: "Atendimento principal")
	Name string `gorm:"size:255;not null" json:"name"`

	// Phone số điện thoại của instance
	Phone string `gorm:"size:50" json:"phone,omitempty"`

	// Credentials thông tin xác thực (KHÔNG expose trong JSON)
	Credentials InstanceCredentials `gorm:"type:jsonb;default:'{}'" json:"-"`

	// IsActive instance có đang active không
	IsActive bool `gorm:"default:true" json:"is_active"`

	// ConnectedAt thời điểm kết nối
	ConnectedAt *time.Time `json:"connected_at,omitempty"`

	// Relations
	Company Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

// TableName trả về tên bảng
func (ChannelInstance) TableName() string {
	return "channel_instances"
}

// IsWeb kiểm tra có phải kênh waweb không
func (c *ChannelInstance) IsWeb() bool { return c.Kind == ChannelWAWeb }

// IsCloud kiểm tra có phải kênh cloud không
func (c *ChannelInstance) IsCloud() bool { return c.Kind == ChannelCloud }

// SetConnected đánh dấu instance đã kết nối
func (c *ChannelInstance) SetConnected() {
	now := time.Now()
	c.ConnectedAt = &now
	c.IsActive = true
}
