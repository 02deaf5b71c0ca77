package handlers

import (
	"net/http"

	"chatboard/internal/channel"
	"chatboard/internal/config"
	"chatboard/internal/dto"
	"chatboard/internal/middleware"
	"chatboard/internal/models"
	"chatboard/internal/repositories"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Channel Instance Handler
// Quản lý channel instances; connect đăng ký adapter vào registry,
// disconnect gỡ adapter ra
// ===========================================================================

// InstanceHandler xử lý channel instance endpoints
type InstanceHandler struct {
	instanceRepo repositories.ChannelInstanceRepository
	registry     *channel.Registry
	channelCfg   config.ChannelConfig
	logger       *zap.Logger
}

// NewInstanceHandler tạo instance handler mới
func NewInstanceHandler(
	instanceRepo repositories.ChannelInstanceRepository,
	registry *channel.Registry,
	channelCfg config.ChannelConfig,
	logger *zap.Logger,
) *InstanceHandler {
	return &InstanceHandler{
		instanceRepo: instanceRepo,
		registry:     registry,
		channelCfg:   channelCfg,
		logger:       logger,
	}
}

// CreateInstanceRequest body tạo channel instance
type CreateInstanceRequest struct {
	Kind  string `json:"kind" binding:"required,oneof=waweb cloud"`
	Name  string `json:"name" binding:"required,min=1,max=255"`
	Phone string `json:"phone" binding:"max=50"`

	// Credentials của instance; field nào dùng tùy kind
	AccessToken   string `json:"access_token"`
	PhoneNumberID string `json:"phone_number_id"`
	BusinessID    string `json:"business_id"`
	AppSecret     string `json:"app_secret"`
	BridgeURL     string `json:"bridge_url"`
	BridgeToken   string `json:"bridge_token"`
}

// List lấy danh sách instances của company
// GET /api/v1/instances
func (h *InstanceHandler) List(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Chưa đăng nhập"))
		return
	}

	instances, err := h.instanceRepo.FindByCompany(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error("list instances failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(instances))
}

// Create tạo channel instance mới
// POST /api/v1/instances
func (h *InstanceHandler) Create(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Chưa đăng nhập"))
		return
	}

	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	instance := &models.ChannelInstance{
		CompanyID: companyID,
		Kind:      models.ChannelKind(req.Kind),
		Name:      req.Name,
		Phone:     req.Phone,
		IsActive:  true,
		Credentials: models.InstanceCredentials{
			AccessToken:   req.AccessToken,
			PhoneNumberID: req.PhoneNumberID,
			BusinessID:    req.BusinessID,
			AppSecret:     req.AppSecret,
			BridgeURL:     req.BridgeURL,
			BridgeToken:   req.BridgeToken,
		},
	}

	if err := h.instanceRepo.Create(c.Request.Context(), instance); err != nil {
		h.logger.Error("create instance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusCreated, dto.Success(instance))
}

// Connect đăng ký adapter cho instance vào registry
// POST /api/v1/instances/:id/connect
func (h *InstanceHandler) Connect(c *gin.Context) {
	instanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid instance id"))
		return
	}

	instance, err := h.instanceRepo.FindByID(c.Request.Context(), instanceID)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Instance không tồn tại"))
		return
	}

	if companyID, ok := middleware.GetCompanyID(c); !ok || instance.CompanyID != companyID {
		c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Không có quyền truy cập"))
		return
	}

	var adapter channel.Adapter
	switch {
	case instance.IsCloud():
		adapter = channel.NewCloudAdapter(instance, h.channelCfg.CloudAPIBaseURL, h.logger)
	default:
		adapter = channel.NewWebAdapter(instance, h.channelCfg.StaticDir, h.logger)
	}

	h.registry.Register(instance.ID, adapter)

	instance.SetConnected()
	if err := h.instanceRepo.Update(c.Request.Context(), instance); err != nil {
		h.logger.Warn("update connected_at failed", zap.Error(err))
	}

	h.logger.Info("channel instance connected",
		zap.String("instance_id", instance.ID.String()),
		zap.String("kind", string(instance.Kind)),
	)

	c.JSON(http.StatusOK, dto.Success(instance))
}

// Disconnect gỡ adapter của instance khỏi registry
// POST /api/v1/instances/:id/disconnect
func (h *InstanceHandler) Disconnect(c *gin.Context) {
	instanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid instance id"))
		return
	}

	h.registry.Remove(instanceID)

	c.JSON(http.StatusOK, dto.Success(gin.H{"connected": false}))
}

// Delete xóa instance và gỡ adapter
// DELETE /api/v1/instances/:id
func (h *InstanceHandler) Delete(c *gin.Context) {
	instanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid instance id"))
		return
	}

	h.registry.Remove(instanceID)

	if err := h.instanceRepo.Delete(c.Request.Context(), instanceID); err != nil {
		h.logger.Error("delete instance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"deleted": true}))
}

// ===========================================================================
// Route Registration
// ===========================================================================

// RegisterRoutes đăng ký routes cho channel instances
func (h *InstanceHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	instances := rg.Group("/instances", authMiddleware)
	{
		instances.GET("", h.List)
		instances.POST("", h.Create)
		instances.POST("/:id/connect", h.Connect)
		instances.POST("/:id/disconnect", h.Disconnect)
		instances.DELETE("/:id", h.Delete)
	}
}
