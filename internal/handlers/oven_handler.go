package handlers

import (
	"encoding/json"
	"net/http"

	"chatboard/internal/dto"
	"chatboard/internal/middleware"
	"chatboard/internal/models"
	"chatboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Oven Handler
// Quản lý broadcast queues: CRUD, nạp queue, pause/resume, blacklist
// ===========================================================================

// OvenHandler xử lý oven endpoints
type OvenHandler struct {
	ovenService services.OvenService
	logger      *zap.Logger
}

// NewOvenHandler tạo oven handler mới
func NewOvenHandler(ovenService services.OvenService, logger *zap.Logger) *OvenHandler {
	return &OvenHandler{
		ovenService: ovenService,
		logger:      logger,
	}
}

// List lấy danh sách ovens của company
// GET /api/v1/ovens
func (h *OvenHandler) List(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Chưa đăng nhập"))
		return
	}

	ovens, err := h.ovenService.ListOvens(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error("list ovens failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(ovens))
}

// Get lấy oven theo ID
// GET /api/v1/ovens/:id
func (h *OvenHandler) Get(c *gin.Context) {
	ovenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid oven id"))
		return
	}

	oven, err := h.ovenService.GetOven(c.Request.Context(), ovenID)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Oven không tồn tại"))
		return
	}

	if companyID, ok := middleware.GetCompanyID(c); !ok || oven.CompanyID != companyID {
		c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Không có quyền truy cập"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(oven))
}

// Create tạo oven mới (mặc định paused, chờ nạp queue)
// POST /api/v1/ovens
func (h *OvenHandler) Create(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Chưa đăng nhập"))
		return
	}

	var req dto.CreateOvenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	oven := &models.Oven{
		CompanyID:         companyID,
		ChannelInstanceID: req.ChannelInstanceID,
		Name:              req.Name,
		BatchSize:         req.BatchSize,
		FrequencyMinutes:  req.FrequencyMinutes,
		BlacklistTrigger:  req.BlacklistTrigger,
		Paused:            true,
	}

	if err := h.ovenService.CreateOven(c.Request.Context(), oven); err != nil {
		h.logger.Error("create oven failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusCreated, dto.Success(oven))
}

// Queue nạp template messages vào cuối queue
// POST /api/v1/ovens/:id/queue
func (h *OvenHandler) Queue(c *gin.Context) {
	ovenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid oven id"))
		return
	}

	var req dto.QueueMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	msgs := make([]models.TemplateMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, models.TemplateMessage{
			To:           m.To,
			TemplateName: m.TemplateName,
			Language:     m.Language,
			Components:   json.RawMessage(m.Components),
		})
	}

	if err := h.ovenService.QueueMessages(c.Request.Context(), ovenID, msgs); err != nil {
		h.logger.Error("queue messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"queued": len(msgs)}))
}

// SetPaused bật/tắt oven
// PUT /api/v1/ovens/:id/paused
func (h *OvenHandler) SetPaused(c *gin.Context) {
	ovenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid oven id"))
		return
	}

	var req dto.SetPausedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	if err := h.ovenService.SetPaused(c.Request.Context(), ovenID, *req.Paused); err != nil {
		h.logger.Error("set oven paused failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"paused": *req.Paused}))
}

// RemoveFromBlacklist gỡ một số khỏi blacklist
// DELETE /api/v1/ovens/:id/blacklist
func (h *OvenHandler) RemoveFromBlacklist(c *gin.Context) {
	ovenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid oven id"))
		return
	}

	var req dto.BlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	if err := h.ovenService.RemoveFromBlacklist(c.Request.Context(), ovenID, req.Number); err != nil {
		h.logger.Error("remove from blacklist failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"removed": true}))
}

// ===========================================================================
// Route Registration
// ===========================================================================

// RegisterRoutes đăng ký routes cho ovens
func (h *OvenHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	ovens := rg.Group("/ovens", authMiddleware)
	{
		ovens.GET("", h.List)
		ovens.POST("", h.Create)
		ovens.GET("/:id", h.Get)
		ovens.POST("/:id/queue", h.Queue)
		ovens.PUT("/:id/paused", h.SetPaused)
		ovens.DELETE("/:id/blacklist", h.RemoveFromBlacklist)
	}
}
