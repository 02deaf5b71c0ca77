package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Oven (Lò nướng broadcast)
// Hàng đợi gửi template message theo batch cho một cloud channel instance
// Mỗi chu kỳ (frequency) lấy batch_size tin từ đầu queue đem "nướng" (gửi)
// ===========================================================================

// TemplateMessage một tin template đang chờ trong queue
type TemplateMessage struct {
	// To số điện thoại người nhận
	To string `json:"to"`

	// TemplateName tên template đã được duyệt
	TemplateName string `json:"template_name"`

	// Language mã ngôn ngữ template (VD: "pt_BR")
	Language string `json:"language"`

	// Components payload components của template (giữ nguyên raw)
	Components json.RawMessage `json:"components,omitempty"`
}

// OvenQueue hàng đợi cho JSONB
type OvenQueue []TemplateMessage

// Value implement driver.Valuer cho JSONB
func (q OvenQueue) Value() (driver.Value, error) {
	if q == nil {
		return json.Marshal([]TemplateMessage{})
	}
	return json.Marshal(q)
}

// Scan implement sql.Scanner cho JSONB
func (q *OvenQueue) Scan(value interface{}) error {
	if value == nil {
		*q = []TemplateMessage{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, q)
}

// BlacklistEntry một số điện thoại đã opt-out
type BlacklistEntry struct {
	// Number số điện thoại
	Number string `json:"number"`

	// Name tên người gửi tại thời điểm opt-out
	Name string `json:"name,omitempty"`

	// Timestamp thời điểm opt-out (unix ms)
	Timestamp int64 `json:"timestamp"`
}

// Blacklist danh sách opt-out cho JSONB
type Blacklist []BlacklistEntry

// Value implement driver.Valuer cho JSONB
func (b Blacklist) Value() (driver.Value, error) {
	if b == nil {
		return json.Marshal([]BlacklistEntry{})
	}
	return json.Marshal(b)
}

// Scan implement sql.Scanner cho JSONB
func (b *Blacklist) Scan(value interface{}) error {
	if value == nil {
		*b = []BlacklistEntry{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, b)
}

// Contains kiểm tra số có trong blacklist không
func (b Blacklist) Contains(number string) bool {
	for _, entry := range b {
		if entry.Number == number {
			return true
		}
	}
	return false
}

// SendRecord một dòng trong send log
type SendRecord struct {
	// To số điện thoại người nhận
	To string `json:"to"`

	// TemplateName template đã gửi
	TemplateName string `json:"template_name"`

	// Success gửi thành công hay không
	Success bool `json:"success"`

	// Skipped bị bỏ qua vì blacklist (không gửi, không phải lỗi)
	Skipped bool `json:"skipped,omitempty"`

	// Error thông điệp lỗi nếu thất bại
	Error string `json:"error,omitempty"`

	// Timestamp thời điểm gửi (unix ms)
	Timestamp int64 `json:"timestamp"`
}

// SendLog log gửi, bounded (giữ tối đa sendLogLimit dòng mới nhất)
type SendLog []SendRecord

// sendLogLimit giới hạn số dòng send log lưu trên model
const sendLogLimit = 500

// Value implement driver.Valuer cho JSONB
func (l SendLog) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]SendRecord{})
	}
	return json.Marshal(l)
}

// Scan implement sql.Scanner cho JSONB
func (l *SendLog) Scan(value interface{}) error {
	if value == nil {
		*l = []SendRecord{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, l)
}

// Oven hàng đợi broadcast gắn với một cloud channel instance
type Oven struct {
	BaseModel

	// CompanyID ID company sở hữu oven
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`

	// ChannelInstanceID cloud instance dùng để gửi
	ChannelInstanceID uuid.UUID `gorm:"type:uuid;not null;index" json:"channel_instance_id"`

	// Name tên hiển thị
	Name string `gorm:"size:255;not null" json:"name"`

	// BatchSize số tin gửi mỗi chu kỳ
	BatchSize int `gorm:"not null;default:10" json:"batch_size"`

	// FrequencyMinutes khoảng cách giữa hai chu kỳ (phút)
	FrequencyMinutes int `gorm:"not null;default:60" json:"frequency_minutes"`

	// Paused oven đang tạm dừng, sweep bỏ qua
	Paused bool `gorm:"not null;default:true" json:"paused"`

	// LastBakedAt thời điểm bake gần nhất (unix ms, 0 = chưa từng)
	LastBakedAt int64 `gorm:"not null;default:0" json:"last_baked_at"`

	// BlacklistTrigger từ khóa opt-out; tin inbound khớp sẽ vào blacklist
	BlacklistTrigger string `gorm:"size:100" json:"blacklist_trigger,omitempty"`

	// Queue hàng đợi template messages
	Queue OvenQueue `gorm:"type:jsonb;not null;default:'[]'" json:"queue"`

	// Blacklist danh sách opt-out
	Blacklist Blacklist `gorm:"type:jsonb;not null;default:'[]'" json:"blacklist"`

	// Log send log bounded
	Log SendLog `gorm:"type:jsonb;not null;default:'[]'" json:"log"`

	// Relations
	Company         Company         `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	ChannelInstance ChannelInstance `gorm:"foreignKey:ChannelInstanceID" json:"channel_instance,omitempty"`
}

// TableName trả về tên bảng
func (Oven) TableName() string {
	return "ovens"
}

// ShouldBake kiểm tra đã đến chu kỳ bake tiếp theo chưa
func (o *Oven) ShouldBake(now time.Time) bool {
	if o.Paused || len(o.Queue) == 0 {
		return false
	}
	if o.LastBakedAt == 0 {
		return true
	}
	next := time.UnixMilli(o.LastBakedAt).Add(time.Duration(o.FrequencyMinutes) * time.Minute)
	return !now.Before(next)
}

// NextBatch cắt batch_size tin từ đầu queue
func (o *Oven) NextBatch() []TemplateMessage {
	size := o.BatchSize
	if size <= 0 {
		size = 1
	}
	if size > len(o.Queue) {
		size = len(o.Queue)
	}
	batch := make([]TemplateMessage, size)
	copy(batch, o.Queue[:size])
	o.Queue = o.Queue[size:]
	return batch
}

// AddToBlacklist thêm số vào blacklist nếu chưa có, trả về true nếu mới
func (o *Oven) AddToBlacklist(number, name string, now time.Time) bool {
	if o.Blacklist.Contains(number) {
		return false
	}
	o.Blacklist = append(o.Blacklist, BlacklistEntry{
		Number:    number,
		Name:      name,
		Timestamp: now.UnixMilli(),
	})
	return true
}

// RemoveFromBlacklist xóa số khỏi blacklist, trả về true nếu có xóa
func (o *Oven) RemoveFromBlacklist(number string) bool {
	for i := range o.Blacklist {
		if o.Blacklist[i].Number == number {
			o.Blacklist = append(o.Blacklist[:i], o.Blacklist[i+1:]...)
			return true
		}
	}
	return false
}

// AppendLog thêm một dòng vào send log, cắt bớt dòng cũ khi vượt giới hạn
func (o *Oven) AppendLog(record SendRecord) {
	o.Log = append(o.Log, record)
	if len(o.Log) > sendLogLimit {
		o.Log = o.Log[len(o.Log)-sendLogLimit:]
	}
}
