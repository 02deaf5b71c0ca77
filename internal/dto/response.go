package dto

import "math"

// ===========================================================================
// Response envelope
// Mọi API trả về cùng một format: success + data hoặc error
// ===========================================================================

// Response envelope chuẩn cho tất cả API
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// APIError mã lỗi machine-readable + thông báo người đọc được
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta thông tin phân trang cho list API
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// Success response thành công
func Success(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// SuccessWithMeta response thành công kèm phân trang
func SuccessWithMeta(data interface{}, meta *Meta) Response {
	return Response{Success: true, Data: data, Meta: meta}
}

// Error response lỗi
func Error(code, message string) Response {
	return Response{Success: false, Error: &APIError{Code: code, Message: message}}
}

// NewMeta dựng Meta từ thông tin phân trang
func NewMeta(page, limit int, total int64) *Meta {
	if limit <= 0 {
		limit = 1
	}
	return &Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
}
