package channel

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	apperrors "chatboard/internal/errors"
)

// ===========================================================================
// Registry quản lý và lưu trữ các channel adapters
// Key theo instance ID: mỗi adapter giữ credentials của đúng một instance
// ===========================================================================

// Registry là container chứa tất cả adapters đã đăng ký
type Registry struct {
	// mu bảo vệ adapters map khỏi concurrent access
	mu sync.RWMutex

	// adapters map từ channel instance ID -> Adapter implementation
	adapters map[uuid.UUID]Adapter
}

// NewRegistry tạo một Registry mới
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[uuid.UUID]Adapter),
	}
}

// Register đăng ký adapter cho một instance
// Nếu instance đã có adapter, nó sẽ bị ghi đè
func (r *Registry) Register(instanceID uuid.UUID, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[instanceID] = adapter
}

// Get lấy adapter theo instance ID
// Trả về error nếu instance chưa được đăng ký
func (r *Registry) Get(instanceID uuid.UUID) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[instanceID]
	if !exists {
		return nil, fmt.Errorf("instance %s: %w", instanceID, apperrors.ErrChannelDisconnected)
	}

	return adapter, nil
}

// Remove gỡ adapter của một instance (khi instance bị ngắt kết nối)
func (r *Registry) Remove(instanceID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.adapters, instanceID)
}

// Has kiểm tra xem instance đã có adapter chưa
func (r *Registry) Has(instanceID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.adapters[instanceID]
	return exists
}

// Count trả về số lượng adapters đã đăng ký
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.adapters)
}
