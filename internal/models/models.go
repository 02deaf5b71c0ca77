package models

// ===========================================================================
// Models Index
// Cung cấp danh sách tất cả models cho GORM AutoMigrate
// ===========================================================================

// AllModels trả về danh sách tất cả models
// Dùng cho database.AutoMigrate() để tự động tạo/update tables
func AllModels() []interface{} {
	return []interface{}{
		&Company{},         // Công ty (tenant)
		&User{},            // Người dùng hệ thống
		&ChannelInstance{}, // Kết nối kênh WhatsApp
		&Board{},           // Quadro kanban
		&Bot{},             // Flow bot
		&Oven{},            // Hàng đợi broadcast
	}
}
