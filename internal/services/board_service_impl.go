package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"chatboard/internal/channel"
	apperrors "chatboard/internal/errors"
	"chatboard/internal/models"
	"chatboard/internal/realtime"
	"chatboard/internal/repositories"
)

// ===========================================================================
// Board Service Implementation
// ===========================================================================

// boardService triển khai BoardService
type boardService struct {
	boardRepo repositories.BoardRepository
	botRepo   repositories.BotRepository
	adapters  *channel.Registry
	publisher realtime.Publisher
	logger    *zap.Logger

	// syncGroup gom các bulk-sync trùng key (board:instance) vào một lần chạy
	syncGroup singleflight.Group
}

// NewBoardService tạo instance mới của BoardService
func NewBoardService(
	boardRepo repositories.BoardRepository,
	botRepo repositories.BotRepository,
	adapters *channel.Registry,
	publisher realtime.Publisher,
	logger *zap.Logger,
) BoardService {
	return &boardService{
		boardRepo: boardRepo,
		botRepo:   botRepo,
		adapters:  adapters,
		publisher: publisher,
		logger:    logger,
	}
}

// ===========================================================================
// CRUD
// ===========================================================================

// CreateBoard tạo board mới với một entry room tự sinh
func (s *boardService) CreateBoard(ctx context.Context, companyID uuid.UUID, name string) (*models.Board, error) {
	entry := models.Room{
		ID:         uuid.New(),
		Name:       "Entrada",
		EntryPoint: true,
		Chats:      []models.Chat{},
	}
	board := &models.Board{
		CompanyID:     companyID,
		Name:          name,
		EntryRoomID:   entry.ID,
		Rooms:         models.Rooms{entry},
		Subscriptions: models.Subscriptions{},
	}
	if err := s.boardRepo.Create(ctx, board); err != nil {
		return nil, err
	}
	return board, nil
}

// GetBoard lấy board theo ID
func (s *boardService) GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	return s.boardRepo.FindByID(ctx, id)
}

// ListBoards lấy danh sách boards của company
func (s *boardService) ListBoards(ctx context.Context, companyID uuid.UUID) ([]models.Board, error) {
	return s.boardRepo.FindByCompany(ctx, companyID)
}

// DeleteBoard xóa board và đánh dấu misconfigured các bot actions trỏ đến nó
// Automation hỏng phải trở thành inert, không bao giờ fault hội thoại
func (s *boardService) DeleteBoard(ctx context.Context, id uuid.UUID) error {
	board, err := s.boardRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.boardRepo.Delete(ctx, id); err != nil {
		return err
	}

	bots, err := s.botRepo.FindByCompany(ctx, board.CompanyID)
	if err != nil {
		s.logger.Error("board delete: load bots failed", zap.Error(err))
	} else {
		for i := range bots {
			if bots[i].MarkMisconfiguredActions(id) {
				if err := s.botRepo.Update(ctx, &bots[i]); err != nil {
					s.logger.Error("board delete: mark bot actions failed",
						zap.String("bot", bots[i].Name),
						zap.Error(err),
					)
				}
			}
		}
	}

	s.publish(realtime.BoardTopic(id), "board:deleted", map[string]interface{}{"board_id": id})
	return nil
}

// AddRoom thêm room vào board
func (s *boardService) AddRoom(ctx context.Context, boardID uuid.UUID, name string) (*models.Board, error) {
	board, err := s.boardRepo.FindByID(ctx, boardID)
	if err != nil {
		return nil, err
	}
	board.AddRoom(name)
	if err := s.boardRepo.Update(ctx, board); err != nil {
		return nil, err
	}
	s.publish(realtime.BoardTopic(boardID), "board:updated", board)
	return board, nil
}

// DeleteRoom xóa room (không cho xóa entry room)
func (s *boardService) DeleteRoom(ctx context.Context, boardID, roomID uuid.UUID) error {
	board, err := s.boardRepo.FindByID(ctx, boardID)
	if err != nil {
		return err
	}
	if !board.DeleteRoom(roomID) {
		return fmt.Errorf("room %s không xóa được (entry room hoặc không tồn tại): %w", roomID, apperrors.ErrInvalidInput)
	}
	if err := s.boardRepo.Update(ctx, board); err != nil {
		return err
	}
	s.publish(realtime.BoardTopic(boardID), "board:updated", board)
	return nil
}

// ===========================================================================
// Message placement
// ===========================================================================

// HandleMessage đặt/merge một chat snapshot vào board
func (s *boardService) HandleMessage(ctx context.Context, board *models.Board, incoming models.Chat) (*PlacementResult, error) {
	visited := map[uuid.UUID]bool{}
	result, err := s.place(ctx, board, incoming, nil, visited)
	if err != nil {
		return nil, err
	}
	if result.Placed {
		if err := s.boardRepo.Update(ctx, board); err != nil {
			return nil, err
		}
		s.publish(realtime.BoardTopic(board.ID), "board:message", map[string]interface{}{
			"room_id": result.RoomID,
			"chat_id": result.ChatID,
		})
	}
	return result, nil
}

// place đặt chat vào board đã load sẵn, đệ quy qua on_new_chat forwarding
// visited chặn forwarding cycle: board đã ghé không nhận lại lần hai
// roomOverride ép room đích (cho RouteChat/forward), nil = theo subscription
func (s *boardService) place(ctx context.Context, board *models.Board, incoming models.Chat, roomOverride *uuid.UUID, visited map[uuid.UUID]bool) (*PlacementResult, error) {
	if visited[board.ID] {
		s.logger.Warn("forwarding cycle detected, stopping delivery",
			zap.String("board_id", board.ID.String()),
		)
		return &PlacementResult{}, nil
	}
	visited[board.ID] = true

	ref := incoming.Channel

	// Chat đã tồn tại: cập nhật tại chỗ, move-to-front trong room của nó
	if room, existing := board.FindChat(ref); existing != nil {
		existing.ApplyMessage(incoming.LastMessage)
		if incoming.ProfilePic != "" {
			existing.ProfilePic = incoming.ProfilePic
		}
		if incoming.Name != "" {
			existing.Name = incoming.Name
		}
		room.MoveToFront(existing.ID)
		s.publish(realtime.RoomTopic(room.ID), "room:message", map[string]interface{}{
			"chat_id": existing.ID,
		})
		return &PlacementResult{Placed: true, RoomID: room.ID, ChatID: existing.ID}, nil
	}

	// Chat mới: cần room đích
	var room *models.Room
	if roomOverride != nil {
		room = board.ResolveRoom(roomOverride)
	} else {
		sub := board.SubscriptionFor(ref)
		if sub == nil {
			// Board chỉ nhận traffic nó subscribe; bỏ qua im lặng
			return &PlacementResult{}, nil
		}
		room = board.ResolveRoom(sub.RoomID)
	}
	if room == nil {
		return nil, fmt.Errorf("board %s không có room nào", board.ID)
	}

	chat := incoming
	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	room.PushFront(chat)
	s.publish(realtime.RoomTopic(room.ID), "room:new_chat", map[string]interface{}{
		"chat_id": chat.ID,
	})

	result := &PlacementResult{Placed: true, Created: true, RoomID: room.ID, ChatID: chat.ID}

	// Cross-board forwarding: gửi một bản copy sang board khác
	if room.OnNewChat != nil {
		if err := s.forward(ctx, room.OnNewChat, incoming, visited); err != nil {
			s.logger.Error("on_new_chat forwarding failed",
				zap.String("board_id", board.ID.String()),
				zap.String("room_id", room.ID.String()),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// forward giao một bản copy của chat sang board/room đích của forwarding rule
func (s *boardService) forward(ctx context.Context, rule *models.ChatForward, incoming models.Chat, visited map[uuid.UUID]bool) error {
	target, err := s.boardRepo.FindByID(ctx, rule.BoardID)
	if err != nil {
		return err
	}

	// Copy có ID riêng trong board đích
	clone := incoming
	clone.ID = uuid.Nil

	// Forward ép room đích: rule không có room thì dùng entry room,
	// subscription gate của board đích không áp dụng
	roomID := rule.RoomID
	if roomID == nil {
		entry := target.EntryRoom()
		if entry == nil {
			return fmt.Errorf("board %s không có room nào", target.ID)
		}
		roomID = &entry.ID
	}

	result, err := s.place(ctx, target, clone, roomID, visited)
	if err != nil {
		return err
	}
	if result.Placed {
		if err := s.boardRepo.Update(ctx, target); err != nil {
			return err
		}
		s.publish(realtime.BoardTopic(target.ID), "board:message", map[string]interface{}{
			"room_id": result.RoomID,
			"chat_id": result.ChatID,
		})
	}
	return nil
}

// ===========================================================================
// Subscription change (sync / unsync)
// ===========================================================================

// HandleSubscriptionChange diff subscriptions cũ/mới của board
func (s *boardService) HandleSubscriptionChange(ctx context.Context, boardID uuid.UUID, subs models.Subscriptions) error {
	board, err := s.boardRepo.FindByID(ctx, boardID)
	if err != nil {
		return err
	}

	// Unsync: gỡ chats của mọi subscription không còn trong danh sách mới
	for _, old := range board.Subscriptions {
		if !containsSubscription(subs, old) {
			removed := board.RemoveInstanceChats(old.InstanceID)
			s.logger.Info("subscription removed, chats unsynced",
				zap.String("board_id", boardID.String()),
				zap.String("instance_id", old.InstanceID.String()),
				zap.Int("removed", removed),
			)
		}
	}

	added := make([]models.ChannelSubscription, 0)
	for _, sub := range subs {
		if !containsSubscription(board.Subscriptions, sub) {
			added = append(added, sub)
		}
	}

	board.Subscriptions = subs
	if err := s.boardRepo.Update(ctx, board); err != nil {
		return err
	}
	s.publish(realtime.BoardTopic(boardID), "board:updated", board)

	// Sync: bulk import cho từng subscription mới, singleflight theo
	// (board, instance) để request lặp join vào lần import đang chạy
	for _, sub := range added {
		sub := sub
		key := fmt.Sprintf("%s:%s", boardID, sub.InstanceID)
		_, err, _ := s.syncGroup.Do(key, func() (interface{}, error) {
			return nil, s.syncSubscription(ctx, boardID, sub)
		})
		if err != nil {
			s.logger.Error("subscription sync failed",
				zap.String("board_id", boardID.String()),
				zap.String("instance_id", sub.InstanceID.String()),
				zap.Error(err),
			)
		}
	}

	return nil
}

// syncSubscription bulk import chats của một instance vào room đích
// Không atomic: inbound đồng thời có thể race với prepend của import,
// dedupe theo conversation key giữ board không bị duplicate
func (s *boardService) syncSubscription(ctx context.Context, boardID uuid.UUID, sub models.ChannelSubscription) error {
	s.publish(realtime.SyncTopic(boardID, sub.InstanceID), "sync:pending", nil)
	defer s.publish(realtime.SyncTopic(boardID, sub.InstanceID), "sync:done", nil)

	adapter, err := s.adapters.Get(sub.InstanceID)
	if err != nil {
		return err
	}

	chats, err := adapter.FetchHistory(ctx, sub.UnreadOnly)
	if err != nil {
		return err
	}

	// Load lại board: inbound trong lúc fetch có thể đã thay đổi nó
	board, err := s.boardRepo.FindByID(ctx, boardID)
	if err != nil {
		return err
	}
	room := board.ResolveRoom(sub.RoomID)
	if room == nil {
		return fmt.Errorf("board %s không có room nào", boardID)
	}

	imported := 0
	for _, chat := range chats {
		// Bỏ qua tin hệ thống/tin của chính instance
		if chat.LastMessage.FromMe || chat.Channel.ConversationKey() == "" {
			continue
		}
		if _, existing := board.FindChat(chat.Channel); existing != nil {
			continue
		}
		chat.ID = uuid.New()
		room.PushFront(chat)
		imported++
	}

	if err := s.boardRepo.Update(ctx, board); err != nil {
		return err
	}

	s.logger.Info("subscription synced",
		zap.String("board_id", boardID.String()),
		zap.String("instance_id", sub.InstanceID.String()),
		zap.Int("imported", imported),
	)
	s.publish(realtime.BoardTopic(boardID), "board:updated", board)
	return nil
}

// containsSubscription so khớp theo (kind, instance), bỏ qua room/filter
func containsSubscription(subs models.Subscriptions, target models.ChannelSubscription) bool {
	for _, sub := range subs {
		if sub.Kind == target.Kind && sub.InstanceID == target.InstanceID {
			return true
		}
	}
	return false
}

// ===========================================================================
// Transfer / clone / bot routing
// ===========================================================================

// TransferChat chuyển (hoặc clone) chat sang board/room khác
func (s *boardService) TransferChat(ctx context.Context, srcBoardID uuid.UUID, chatID uuid.UUID, dstBoardID uuid.UUID, dstRoomID *uuid.UUID, keepCopy bool) error {
	src, err := s.boardRepo.FindByID(ctx, srcBoardID)
	if err != nil {
		return err
	}

	var chat *models.Chat
	var srcRoom *models.Room
	for i := range src.Rooms {
		for j := range src.Rooms[i].Chats {
			if src.Rooms[i].Chats[j].ID == chatID {
				srcRoom = &src.Rooms[i]
				chat = &src.Rooms[i].Chats[j]
			}
		}
	}
	if chat == nil {
		return fmt.Errorf("chat %s không tồn tại trong board %s", chatID, srcBoardID)
	}

	moved := *chat

	if srcBoardID == dstBoardID {
		// Chuyển room trong cùng board
		dstRoom := src.ResolveRoom(dstRoomID)
		if dstRoom == nil {
			return fmt.Errorf("board %s không có room nào", dstBoardID)
		}
		if !keepCopy {
			srcRoom.RemoveChat(chatID)
		} else {
			moved.ID = uuid.New()
		}
		if dstRoom.ID != srcRoom.ID || keepCopy {
			dstRoom.PushFront(moved)
		}
		if err := s.boardRepo.Update(ctx, src); err != nil {
			return err
		}
		s.publish(realtime.BoardTopic(srcBoardID), "board:updated", src)
		return nil
	}

	dst, err := s.boardRepo.FindByID(ctx, dstBoardID)
	if err != nil {
		return err
	}

	// Đích có thể đã có chat cho hội thoại này: merge thay vì duplicate
	if room, existing := dst.FindChat(moved.Channel); existing != nil {
		existing.Merge(&moved)
		room.MoveToFront(existing.ID)
	} else {
		moved.ID = uuid.New()
		dstRoom := dst.ResolveRoom(dstRoomID)
		if dstRoom == nil {
			return fmt.Errorf("board %s không có room nào", dstBoardID)
		}
		dstRoom.PushFront(moved)
	}
	if err := s.boardRepo.Update(ctx, dst); err != nil {
		return err
	}
	s.publish(realtime.BoardTopic(dstBoardID), "board:updated", dst)

	if !keepCopy {
		srcRoom.RemoveChat(chatID)
		if err := s.boardRepo.Update(ctx, src); err != nil {
			return err
		}
		s.publish(realtime.BoardTopic(srcBoardID), "board:updated", src)
	}
	return nil
}

// RouteChat tạo/định tuyến hội thoại của ref vào board đích
// Được bot runtime gọi từ node action board:room:chat:new
func (s *boardService) RouteChat(ctx context.Context, boardID uuid.UUID, roomID *uuid.UUID, ref models.ChannelRef, senderName string) error {
	board, err := s.boardRepo.FindByID(ctx, boardID)
	if err != nil {
		return err
	}

	incoming := models.Chat{
		Name:    senderName,
		Phone:   ref.Phone,
		Channel: ref,
	}
	if incoming.Phone == "" {
		incoming.Phone = ref.ConversationKey()
	}

	// Bot action ép room đích: không room thì entry room, bỏ qua
	// subscription gate
	roomOverride := roomID
	if roomOverride == nil {
		entry := board.EntryRoom()
		if entry == nil {
			return fmt.Errorf("board %s không có room nào", boardID)
		}
		roomOverride = &entry.ID
	}

	visited := map[uuid.UUID]bool{}
	result, err := s.place(ctx, board, incoming, roomOverride, visited)
	if err != nil {
		return err
	}
	if result.Placed {
		if err := s.boardRepo.Update(ctx, board); err != nil {
			return err
		}
		s.publish(realtime.BoardTopic(boardID), "board:message", map[string]interface{}{
			"room_id": result.RoomID,
			"chat_id": result.ChatID,
		})
	}
	return nil
}

// publish phát realtime event, lỗi chỉ log
func (s *boardService) publish(topic, event string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(topic, event, data); err != nil {
		s.logger.Debug("realtime publish failed",
			zap.String("topic", topic),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
