package handlers

import (
	"net/http"

	"chatboard/internal/dto"
	apperrors "chatboard/internal/errors"
	"chatboard/internal/middleware"
	"chatboard/internal/models"
	"chatboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Board Handler
// CRUD boards/rooms, subscriptions, transfer chats
// ===========================================================================

// BoardHandler xử lý board endpoints
type BoardHandler struct {
	boardService services.BoardService
	logger       *zap.Logger
}

// NewBoardHandler tạo board handler mới
func NewBoardHandler(boardService services.BoardService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		boardService: boardService,
		logger:       logger,
	}
}

// List lấy danh sách boards của company
// GET /api/v1/boards
func (h *BoardHandler) List(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Chưa đăng nhập"))
		return
	}

	boards, err := h.boardService.ListBoards(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error("list boards failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(boards))
}

// Get lấy board theo ID
// GET /api/v1/boards/:id
func (h *BoardHandler) Get(c *gin.Context) {
	boardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid board id"))
		return
	}

	board, err := h.boardService.GetBoard(c.Request.Context(), boardID)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Board không tồn tại"))
		return
	}

	// Chỉ company sở hữu mới xem được
	if companyID, ok := middleware.GetCompanyID(c); !ok || board.CompanyID != companyID {
		c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Không có quyền truy cập"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(board))
}

// Create tạo board mới với entry room tự sinh
// POST /api/v1/boards
func (h *BoardHandler) Create(c *gin.Context) {
	companyID, ok := middleware.GetCompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Chưa đăng nhập"))
		return
	}

	var req dto.CreateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	board, err := h.boardService.CreateBoard(c.Request.Context(), companyID, req.Name)
	if err != nil {
		h.logger.Error("create board failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusCreated, dto.Success(board))
}

// Delete xóa board
// DELETE /api/v1/boards/:id
func (h *BoardHandler) Delete(c *gin.Context) {
	boardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid board id"))
		return
	}

	if err := h.boardService.DeleteBoard(c.Request.Context(), boardID); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Board không tồn tại"))
			return
		}
		h.logger.Error("delete board failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"deleted": true}))
}

// AddRoom thêm room vào board
// POST /api/v1/boards/:id/rooms
func (h *BoardHandler) AddRoom(c *gin.Context) {
	boardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid board id"))
		return
	}

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	board, err := h.boardService.AddRoom(c.Request.Context(), boardID, req.Name)
	if err != nil {
		h.logger.Error("add room failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusCreated, dto.Success(board))
}

// DeleteRoom xóa room (entry room không xóa được)
// DELETE /api/v1/boards/:id/rooms/:room_id
func (h *BoardHandler) DeleteRoom(c *gin.Context) {
	boardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid board id"))
		return
	}
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid room id"))
		return
	}

	if err := h.boardService.DeleteRoom(c.Request.Context(), boardID, roomID); err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", "Không thể xóa entry room"))
			return
		}
		h.logger.Error("delete room failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"deleted": true}))
}

// UpdateSubscriptions thay thế danh sách subscriptions của board
// Diff với danh sách cũ: unsync chats bị gỡ, bulk import cho mới thêm
// PUT /api/v1/boards/:id/subscriptions
func (h *BoardHandler) UpdateSubscriptions(c *gin.Context) {
	boardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid board id"))
		return
	}

	var req dto.UpdateSubscriptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	subs := make(models.Subscriptions, 0, len(req.Subscriptions))
	for _, input := range req.Subscriptions {
		subs = append(subs, models.ChannelSubscription{
			Kind:       models.ChannelKind(input.Kind),
			InstanceID: input.InstanceID,
			RoomID:     input.RoomID,
			UnreadOnly: input.UnreadOnly,
		})
	}

	if err := h.boardService.HandleSubscriptionChange(c.Request.Context(), boardID, subs); err != nil {
		h.logger.Error("update subscriptions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"updated": true}))
}

// TransferChat chuyển chat sang board/room khác
// POST /api/v1/boards/:id/chats/:chat_id/transfer
func (h *BoardHandler) TransferChat(c *gin.Context) {
	boardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid board id"))
		return
	}
	chatID, err := uuid.Parse(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Invalid chat id"))
		return
	}

	var req dto.TransferChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
		return
	}

	err = h.boardService.TransferChat(c.Request.Context(), boardID, chatID, req.TargetBoardID, req.TargetRoomID, req.KeepCopy)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Chat hoặc board không tồn tại"))
			return
		}
		h.logger.Error("transfer chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{"transferred": true}))
}

// ===========================================================================
// Route Registration
// ===========================================================================

// RegisterRoutes đăng ký routes cho boards
func (h *BoardHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	boards := rg.Group("/boards", authMiddleware)
	{
		boards.GET("", h.List)
		boards.POST("", h.Create)
		boards.GET("/:id", h.Get)
		boards.DELETE("/:id", h.Delete)
		boards.POST("/:id/rooms", h.AddRoom)
		boards.DELETE("/:id/rooms/:room_id", h.DeleteRoom)
		boards.PUT("/:id/subscriptions", h.UpdateSubscriptions)
		boards.POST("/:id/chats/:chat_id/transfer", h.TransferChat)
	}
}
