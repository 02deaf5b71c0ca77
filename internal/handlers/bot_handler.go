package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"chatboard/internal/bot"
	"chatboard/internal/dto"
	"chatboard/internal/middleware"
	"chatboard/internal/models"
	"chatboard/internal/repositories"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Bot Handler
// CRUD bots và điều khiển pause/unpause theo từng hội thoại
// ===========================================================================

// BotHandler xử lý bot endpoints
type BotHandler struct {
	botRepo repositories.BotRepository
	runtime *bot.Runtime
	logger  *zap.Logger
}

// NewBotHandler tạo bot handler mới
func NewBotHandler(botRepo repositories.BotRepository, runtime *bot.Runtime, logger *zap.Logger) *BotHandler {
	return &BotHandler{
		botRepo: botRepo,
		runtime: runtime,
		logger:  logger,
	}
}

// List lấy danh sách bots của company
// GET /api/v1/bots
func (h *BotHandler) List(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Chưa đăng nhập"))
		return
	}

	bots, err := h.botRepo.FindByCompany(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error("list bots failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(bots))
}

// Get lấy bot theo ID
// GET /api/v1/bots/:id
func (h *BotHandler) Get(c *gin.Context) {
	botID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid bot id"))
		return
	}

	b, err := h.botRepo.FindByID(c.Request.Context(), botID)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Bot không tồn tại"))
		return
	}

	if companyID, ok := middleware.GetCompanyID(c); !ok || b.CompanyID != companyID {
		c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Không có quyền truy cập"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(b))
}

// Create tạo bot mới
// POST /api/v1/bots
func (h *BotHandler) Create(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Chưa đăng nhập"))
		return
	}

	var req dto.CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	b, err := botFromRequest(companyID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	if err := h.botRepo.Create(c.Request.Context(), b); err != nil {
		h.logger.Error("create bot failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusCreated, dto.Success(b))
}

// Update cập nhật bot (whole-entity, last writer wins)
// PUT /api/v1/bots/:id
func (h *BotHandler) Update(c *gin.Context) {
	botID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid bot id"))
		return
	}

	existing, err := h.botRepo.FindByID(c.Request.Context(), botID)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Bot không tồn tại"))
		return
	}

	if companyID, ok := middleware.GetCompanyID(c); !ok || existing.CompanyID != companyID {
		c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Không có quyền truy cập"))
		return
	}

	var req dto.CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	updated, err := botFromRequest(existing.CompanyID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	// Giữ nguyên runtime state của bot đang chạy
	existing.Name = updated.Name
	existing.Trigger = updated.Trigger
	existing.FuzzyThreshold = updated.FuzzyThreshold
	existing.ExpiryMinutes = updated.ExpiryMinutes
	existing.IdleMinutes = updated.IdleMinutes
	existing.ExpiryMessage = updated.ExpiryMessage
	existing.IdleMessage = updated.IdleMessage
	existing.Flow = updated.Flow
	existing.Channels = updated.Channels

	if err := h.botRepo.Update(c.Request.Context(), existing); err != nil {
		h.logger.Error("update bot failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(existing))
}

// Delete xóa bot
// DELETE /api/v1/bots/:id
func (h *BotHandler) Delete(c *gin.Context) {
	botID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid bot id"))
		return
	}

	if err := h.botRepo.Delete(c.Request.Context(), botID); err != nil {
		h.logger.Error("delete bot failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"deleted": true}))
}

// Pause tạm dừng bot cho một hội thoại, đóng conversation đang active
// POST /api/v1/bots/:id/pause
func (h *BotHandler) Pause(c *gin.Context) {
	botID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid bot id"))
		return
	}

	var req dto.PauseBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	duration := time.Duration(req.CooldownMinutes) * time.Minute
	if err := h.runtime.Pause(c.Request.Context(), botID, req.ChatKey, duration); err != nil {
		h.logger.Error("pause bot failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"paused": true}))
}

// Unpause bật lại bot cho một hội thoại
// POST /api/v1/bots/:id/unpause
func (h *BotHandler) Unpause(c *gin.Context) {
	botID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid bot id"))
		return
	}

	var req dto.UnpauseBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	if err := h.runtime.Unpause(c.Request.Context(), botID, req.ChatKey); err != nil {
		h.logger.Error("unpause bot failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"paused": false}))
}

// botFromRequest dựng bot model từ request body
func botFromRequest(companyID uuid.UUID, req *dto.CreateBotRequest) (*models.Bot, error) {
	var flow models.FlowGraph
	if len(req.Flow) > 0 {
		if err := json.Unmarshal(req.Flow, &flow); err != nil {
			return nil, err
		}
	}

	channels := make(models.ChannelBindings, 0, len(req.Channels))
	for _, binding := range req.Channels {
		channels = append(channels, models.ChannelBinding{
			Kind:       models.ChannelKind(binding.Kind),
			InstanceID: binding.InstanceID,
		})
	}

	return &models.Bot{
		CompanyID:      companyID,
		Name:           req.Name,
		Trigger:        req.Trigger,
		FuzzyThreshold: req.FuzzyThreshold,
		ExpiryMinutes:  req.ExpiryMinutes,
		IdleMinutes:    req.IdleMinutes,
		ExpiryMessage:  req.ExpiryMessage,
		IdleMessage:    req.IdleMessage,
		Flow:           flow,
		Channels:       channels,
	}, nil
}

// ===========================================================================
// Route Registration
// ===========================================================================

// RegisterRoutes đăng ký routes cho bots
func (h *BotHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	bots := rg.Group("/bots", authMiddleware)
	{
		bots.GET("", h.List)
		bots.POST("", h.Create)
		bots.GET("/:id", h.Get)
		bots.PUT("/:id", h.Update)
		bots.DELETE("/:id", h.Delete)
		bots.POST("/:id/pause", h.Pause)
		bots.POST("/:id/unpause", h.Unpause)
	}
}
