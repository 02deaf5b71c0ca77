package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// ===========================================================================
// Company (Công ty / tenant)
// Đại diện cho một business trong hệ thống multi-tenant
// Tất cả boards, bots, channel instances đều thuộc về một company
// ===========================================================================

// CompanySettings cấu hình cho company
type CompanySettings struct {
	// Timezone múi giờ (VD: "America/Sao_Paulo")
	Timezone string `json:"timezone"`

	// Language ngôn ngữ mặc định (pt, en)
	Language string `json:"language"`
}

// Value implement driver.Valuer để lưu JSONB vào PostgreSQL
func (s CompanySettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implement sql.Scanner để đọc JSONB từ PostgreSQL
func (s *CompanySettings) Scan(value interface{}) error {
	if value == nil {
		*s = CompanySettings{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, s)
}

// Company đại diện cho một tenant
type Company struct {
	BaseModel

	// Name tên company
	Name string `gorm:"size:255;not null" json:"name"`

	// Slug URL-friendly identifier
	Slug string `gorm:"size:100;uniqueIndex;not null" json:"slug"`

	// Settings cấu hình company (JSONB)
	Settings CompanySettings `gorm:"type:jsonb;default:'{}'" json:"settings"`

	// IsActive company có đang hoạt động không
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Relations - Các quan hệ với bảng khác
	Users            []User            `gorm:"foreignKey:CompanyID" json:"users,omitempty"`
	ChannelInstances []ChannelInstance `gorm:"foreignKey:CompanyID" json:"channel_instances,omitempty"`
	Boards           []Board           `gorm:"foreignKey:CompanyID" json:"boards,omitempty"`
	Bots             []Bot             `gorm:"foreignKey:CompanyID" json:"bots,omitempty"`
	Ovens            []Oven            `gorm:"foreignKey:CompanyID" json:"ovens,omitempty"`
}

// TableName trả về tên bảng trong database
func (Company) TableName() string {
	return "companies"
}
