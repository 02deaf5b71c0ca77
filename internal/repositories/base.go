package repositories

// ===========================================================================
// Shared repository types
// ===========================================================================

// FindOptions tùy chọn phân trang/sắp xếp cho các method list
type FindOptions struct {
	// Offset vị trí bắt đầu
	Offset int

	// Limit số records tối đa mỗi trang
	Limit int

	// OrderBy cột sắp xếp
	OrderBy string

	// OrderDir "asc" hoặc "desc"
	OrderDir string
}

// SetDefaults điền giá trị mặc định cho các field bỏ trống
func (o *FindOptions) SetDefaults() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.OrderBy == "" {
		o.OrderBy = "created_at"
	}
	if o.OrderDir != "asc" {
		o.OrderDir = "desc"
	}
}

// GetOrderClause chuỗi ORDER BY cho GORM
func (o *FindOptions) GetOrderClause() string {
	return o.OrderBy + " " + o.OrderDir
}
